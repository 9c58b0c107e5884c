package ports

import (
	"context"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

// RegisterCertificateInput carries everything needed to issue a certificate.
type RegisterCertificateInput struct {
	CertificateID string
	StudentName   string
	CourseName    string
	IssueDate     string
	Image         []byte
	// IssuedBy is the teacher identity the record is issued under. Callers
	// never set it; the issuing path fills it in after the role check.
	IssuedBy domain.Identity
}

// RegisterCertificateResult exposes the reference so callers can embed it in
// a shareable proof.
type RegisterCertificateResult struct {
	CertificateID string
	BlobReference domain.BlobReference
	// Proof is a signed verification token, empty when proofs are disabled.
	Proof string
}

// CertificateService defines the registration and retrieval workflows.
type CertificateService interface {
	// Store validates and stores the image without linking it to a record.
	Store(ctx context.Context, input RegisterCertificateInput) (domain.BlobReference, error)
	Register(ctx context.Context, input RegisterCertificateInput) (*RegisterCertificateResult, error)
	Retrieve(ctx context.Context, ref domain.BlobReference) ([]byte, error)
	Lookup(ctx context.Context, certificateID string) (*domain.CertificateRecord, error)
	RetrieveByCertificate(ctx context.Context, certificateID string) (*domain.CertificateRecord, []byte, error)
	VerifyProof(ctx context.Context, token string) (*domain.CertificateRecord, error)
}

// CertificateIssuer registers certificates for an authenticated identity
// that holds the teacher role.
type CertificateIssuer interface {
	Issue(ctx context.Context, identity domain.Identity, input RegisterCertificateInput) (*RegisterCertificateResult, error)
}
