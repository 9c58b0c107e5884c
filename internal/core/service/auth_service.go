package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

// AuthService is the credential/authorization gateway. It checks that an
// identity has an authorization record before verifying its secret, so an
// unknown identity is never reported as a wrong secret.
type AuthService struct {
	registry ports.AuthorizationRegistry
	metrics  ports.Metrics
	log      zerolog.Logger
}

func NewAuthService(registry ports.AuthorizationRegistry, log zerolog.Logger) *AuthService {
	return &AuthService{registry: registry, metrics: nopMetrics{}, log: log}
}

// WithMetrics reports login outcomes to m.
func (s *AuthService) WithMetrics(m ports.Metrics) *AuthService {
	if m != nil {
		s.metrics = m
	}
	return s
}

func (s *AuthService) Login(ctx context.Context, identity domain.Identity, secret string) (*ports.LoginResult, error) {
	res, err := s.login(ctx, identity, secret)
	s.metrics.LoginAttempted(loginResult(err))
	return res, err
}

func (s *AuthService) login(ctx context.Context, identity domain.Identity, secret string) (*ports.LoginResult, error) {
	if identity == "" {
		return nil, domain.AtStage(domain.StageIdentity, domain.ErrNoAccounts)
	}

	rec, err := s.registry.User(ctx, identity)
	if err != nil {
		return nil, s.unavailable(identity, err)
	}
	if !rec.Exists {
		s.log.Info().Str("identity", identity.String()).Msg("login for unregistered identity")
		return nil, domain.AtStage(domain.StageAuthorization, domain.ErrUserNotFound)
	}

	ok, role, err := s.registry.Login(ctx, identity, secret)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.AtStage(domain.StageAuthorization, domain.ErrUserNotFound)
		}
		return nil, s.unavailable(identity, err)
	}
	if !ok {
		s.log.Info().Str("identity", identity.String()).Msg("login rejected: invalid secret")
		return nil, domain.AtStage(domain.StageAuthorization, domain.ErrInvalidSecret)
	}
	if !role.Valid() {
		s.log.Warn().Str("identity", identity.String()).Uint8("role", uint8(role)).Msg("login returned role outside enumeration")
		return nil, domain.AtStage(domain.StageAuthorization, domain.ErrUnknownRole)
	}

	s.log.Info().Str("identity", identity.String()).Str("role", role.String()).Msg("login succeeded")
	return &ports.LoginResult{
		Success:  true,
		Identity: identity,
		Role:     role,
		Redirect: role.Landing(),
	}, nil
}

// RegisterUser performs the administrative registration of an identity.
func (s *AuthService) RegisterUser(ctx context.Context, identity domain.Identity, displayName, secret string, role domain.Role) (*domain.AuthorizationRecord, error) {
	var missing []string
	if identity == "" {
		missing = append(missing, "identity")
	}
	if strings.TrimSpace(displayName) == "" {
		missing = append(missing, "displayName")
	}
	if secret == "" {
		missing = append(missing, "secret")
	}
	if len(missing) > 0 {
		return nil, domain.AtStage(domain.StageValidation, missingFields(missing))
	}
	if !role.Valid() {
		return nil, domain.AtStage(domain.StageValidation, domain.ErrUnknownRole)
	}

	if err := s.registry.RegisterUser(ctx, identity, displayName, secret, role); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, domain.AtStage(domain.StageAuthorization, domain.ErrUserExists)
		}
		return nil, s.unavailable(identity, err)
	}

	rec, err := s.registry.User(ctx, identity)
	if err != nil {
		return nil, s.unavailable(identity, err)
	}
	s.log.Info().Str("identity", identity.String()).Str("role", role.String()).Msg("user registered")
	return &rec, nil
}

func loginResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, domain.ErrInvalidSecret):
		return "invalid_secret"
	case errors.Is(err, domain.ErrUnknownRole):
		return "unknown_role"
	case errors.Is(err, domain.ErrNoAccounts):
		return "no_account"
	default:
		return "unavailable"
	}
}

func (s *AuthService) unavailable(identity domain.Identity, err error) error {
	s.log.Error().Err(err).Str("identity", identity.String()).Msg("authorization registry call failed")
	return domain.AtStage(domain.StageAuthorization, domain.Wrap(domain.ErrGatewayUnavailable, err))
}
