package ports

import (
	"context"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

// AuthorizationRegistry is the authorization side of the record contract.
type AuthorizationRegistry interface {
	// User returns the record for identity. An absent record is reported with
	// Exists=false and a nil error; errors mean the registry was unreachable.
	User(ctx context.Context, identity domain.Identity) (domain.AuthorizationRecord, error)
	// Login verifies secret against the commitment stored for from. It does
	// not mutate state. The returned role is whatever the record holds, even
	// if it is outside the known enumeration.
	Login(ctx context.Context, from domain.Identity, secret string) (bool, domain.Role, error)
	// RegisterUser creates the record for identity; domain.ErrUserExists if
	// one is already present.
	RegisterUser(ctx context.Context, identity domain.Identity, displayName, secret string, role domain.Role) error
}

// CertificateLedger is the certificate side of the record contract.
type CertificateLedger interface {
	// Create inserts rec if and only if no record exists for its id. The
	// backing store enforces this atomically; a lost race yields
	// domain.ErrDuplicateCertificate.
	Create(ctx context.Context, rec *domain.CertificateRecord) error
	FindByID(ctx context.Context, certificateID string) (*domain.CertificateRecord, error)
}

// Ledger is a backing store implementing both halves of the record contract.
type Ledger interface {
	AuthorizationRegistry
	CertificateLedger
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
