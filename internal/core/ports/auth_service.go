package ports

import (
	"context"

	"github.com/99minutos/certificate-system/internal/core/domain"
)

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Success  bool
	Identity domain.Identity
	Role     domain.Role
	// Redirect is the landing page for Role.
	Redirect string
}

type AuthService interface {
	Login(ctx context.Context, identity domain.Identity, secret string) (*LoginResult, error)
	RegisterUser(ctx context.Context, identity domain.Identity, displayName, secret string, role domain.Role) (*domain.AuthorizationRecord, error)
}
