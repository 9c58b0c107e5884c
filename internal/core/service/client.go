package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/core/ports"
)

// ClientConfig wires the collaborators of a wallet-side Client.
type ClientConfig struct {
	Provider     ports.CredentialProvider
	Registry     ports.AuthorizationRegistry
	Auth         ports.AuthService
	Certificates ports.CertificateService
	Sessions     *SessionManager
	Chain        ports.ChainDescriptor
	Logger       zerolog.Logger
}

// Client is the explicit connection context for wallet-side workflows. The
// network check precedes every authorization or record operation, and
// privileged calls re-derive identity from the provider and role from the
// registry instead of trusting the cached session.
type Client struct {
	provider ports.CredentialProvider
	registry ports.AuthorizationRegistry
	auth     ports.AuthService
	certs    ports.CertificateService
	sessions *SessionManager
	guard    *NetworkGuard
	chain    ports.ChainDescriptor
	logger   zerolog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	chain := cfg.Chain
	if chain.ChainID == "" {
		chain = DefaultChain
	}
	return &Client{
		provider: cfg.Provider,
		registry: cfg.Registry,
		auth:     cfg.Auth,
		certs:    cfg.Certificates,
		sessions: cfg.Sessions,
		guard:    NewNetworkGuard(cfg.Provider, cfg.Logger),
		chain:    chain,
		logger:   cfg.Logger,
	}
}

// Connect asks the provider for accounts and puts it on the deployment
// network.
func (c *Client) Connect(ctx context.Context) (domain.Identity, error) {
	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		return "", domain.AtStage(domain.StageIdentity, domain.Wrap(domain.ErrGatewayUnavailable, err))
	}
	identity, err := firstIdentity(accounts)
	if err != nil {
		return "", err
	}
	if err := c.ensureNetwork(ctx); err != nil {
		return "", err
	}
	return identity, nil
}

// Login authenticates the connected identity with secret and records the
// advisory session.
func (c *Client) Login(ctx context.Context, secret string) (*ports.LoginResult, error) {
	if err := c.ensureNetwork(ctx); err != nil {
		return nil, err
	}
	identity, err := c.identity(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.auth.Login(ctx, identity, secret)
	if err != nil {
		c.logger.Info().Err(err).Str("stage", string(domain.StageOf(err))).Str("identity", identity.String()).Msg("login failed")
		return nil, err
	}
	if c.sessions != nil {
		if err := c.sessions.Establish(ctx, identity, res.Role); err != nil {
			// the session is advisory, a failed write does not undo the login
			c.logger.Warn().Err(err).Msg("failed to persist session")
		}
	}
	return res, nil
}

// IssueCertificate registers a certificate on behalf of the connected
// identity, which must hold the teacher role.
func (c *Client) IssueCertificate(ctx context.Context, input ports.RegisterCertificateInput) (*ports.RegisterCertificateResult, error) {
	if err := c.ensureNetwork(ctx); err != nil {
		return nil, err
	}
	identity, err := c.identity(ctx)
	if err != nil {
		return nil, err
	}

	if err := requireTeacher(ctx, c.registry, identity); err != nil {
		return nil, err
	}

	input.IssuedBy = identity
	res, err := c.certs.Register(ctx, input)
	if err != nil {
		c.logger.Info().Err(err).Str("stage", string(domain.StageOf(err))).Str("certificate_id", input.CertificateID).Msg("certificate issue failed")
		return nil, err
	}
	return res, nil
}

// RegisterUser performs the administrative registration through the
// connected provider's network.
func (c *Client) RegisterUser(ctx context.Context, identity domain.Identity, displayName, secret string, role domain.Role) (*domain.AuthorizationRecord, error) {
	if err := c.ensureNetwork(ctx); err != nil {
		return nil, err
	}
	return c.auth.RegisterUser(ctx, identity, displayName, secret, role)
}

// Retrieve is public: no network check and no authorization.
func (c *Client) Retrieve(ctx context.Context, ref domain.BlobReference) ([]byte, error) {
	return c.certs.Retrieve(ctx, ref)
}

func (c *Client) Lookup(ctx context.Context, certificateID string) (*domain.CertificateRecord, error) {
	return c.certs.Lookup(ctx, certificateID)
}

func (c *Client) ensureNetwork(ctx context.Context) error {
	ok, err := c.guard.EnsureNetwork(ctx, c.chain)
	if err != nil {
		return err
	}
	if !ok {
		return domain.AtStage(domain.StageNetwork, domain.ErrNetworkMismatch)
	}
	return nil
}

// identity re-reads the connected account from the provider.
func (c *Client) identity(ctx context.Context) (domain.Identity, error) {
	accounts, err := c.provider.Accounts(ctx)
	if err != nil {
		return "", domain.AtStage(domain.StageIdentity, domain.Wrap(domain.ErrGatewayUnavailable, err))
	}
	return firstIdentity(accounts)
}

func firstIdentity(accounts []string) (domain.Identity, error) {
	if len(accounts) == 0 {
		return "", domain.AtStage(domain.StageIdentity, domain.ErrNoAccounts)
	}
	identity, err := domain.NormalizeIdentity(accounts[0])
	if err != nil {
		return "", domain.AtStage(domain.StageIdentity, err)
	}
	return identity, nil
}
