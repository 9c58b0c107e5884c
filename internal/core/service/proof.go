package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

const proofIssuer = "certificate-system"

// ProofClaims binds a certificate id to the blob reference it was linked to.
type ProofClaims struct {
	BlobReference string `json:"ref"`
	jwt.RegisteredClaims
}

// ProofSigner issues and verifies shareable certificate proofs as HS256 JWTs.
type ProofSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewProofSigner returns nil when secret is empty, which disables proofs.
// A zero ttl issues proofs that never expire.
func NewProofSigner(secret string, ttl time.Duration) *ProofSigner {
	if secret == "" {
		return nil
	}
	return &ProofSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (p *ProofSigner) Issue(rec *domain.CertificateRecord) (string, error) {
	now := p.now().UTC()
	claims := ProofClaims{
		BlobReference: string(rec.BlobReference),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Issuer:   proofIssuer,
			Subject:  rec.CertificateID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if p.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(p.ttl))
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign proof: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and returns its claims.
func (p *ProofSigner) Verify(token string) (*ProofClaims, error) {
	claims := &ProofClaims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return p.secret, nil
	},
		jwt.WithIssuer(proofIssuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !tkn.Valid {
		if err == nil {
			err = errors.New("token not valid")
		}
		return nil, domain.Wrap(domain.ErrInvalidProof, err)
	}
	if claims.Subject == "" || claims.BlobReference == "" {
		return nil, fmt.Errorf("%w: incomplete claims", domain.ErrInvalidProof)
	}
	return claims, nil
}
