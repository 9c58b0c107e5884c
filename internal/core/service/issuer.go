package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

// Issuer registers certificates on behalf of an authenticated identity. The
// identity's role is read from the authorization registry on every call.
type Issuer struct {
	registry ports.AuthorizationRegistry
	certs    ports.CertificateService
	logger   zerolog.Logger
}

func NewIssuer(registry ports.AuthorizationRegistry, certs ports.CertificateService, logger zerolog.Logger) *Issuer {
	return &Issuer{registry: registry, certs: certs, logger: logger}
}

func (i *Issuer) Issue(ctx context.Context, identity domain.Identity, input ports.RegisterCertificateInput) (*ports.RegisterCertificateResult, error) {
	if err := requireTeacher(ctx, i.registry, identity); err != nil {
		i.logger.Info().Err(err).Str("identity", identity.String()).Str("certificate_id", input.CertificateID).Msg("certificate issue refused")
		return nil, err
	}
	input.IssuedBy = identity
	return i.certs.Register(ctx, input)
}

// requireTeacher fails unless identity holds the teacher role in registry.
func requireTeacher(ctx context.Context, registry ports.AuthorizationRegistry, identity domain.Identity) error {
	rec, err := registry.User(ctx, identity)
	if err != nil {
		return domain.AtStage(domain.StageAuthorization, domain.Wrap(domain.ErrGatewayUnavailable, err))
	}
	if !rec.Exists {
		return domain.AtStage(domain.StageAuthorization, domain.ErrUserNotFound)
	}
	if !rec.Role.Valid() {
		return domain.AtStage(domain.StageAuthorization, domain.ErrUnknownRole)
	}
	if rec.Role != domain.RoleTeacher {
		return domain.AtStage(domain.StageAuthorization, fmt.Errorf("%w: %s cannot issue certificates", domain.ErrForbidden, rec.Role))
	}
	return nil
}
