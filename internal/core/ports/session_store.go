package ports

import (
	"context"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

// SessionStore persists the advisory client session under well-known keys.
// Load returns (nil, nil) when nothing is stored.
type SessionStore interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, s domain.Session) error
	Clear(ctx context.Context) error
}
