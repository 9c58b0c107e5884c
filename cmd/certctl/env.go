package main

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/core/ports"
	"github.com/99minutos/certificate-system/internal/core/service"
	"github.com/99minutos/certificate-system/internal/infrastructure/blobstore"
	"github.com/99minutos/certificate-system/internal/infrastructure/chain"
	"github.com/99minutos/certificate-system/internal/infrastructure/db"
	"github.com/99minutos/certificate-system/internal/infrastructure/session"
	"github.com/99minutos/certificate-system/internal/pkg/config"
	"github.com/99minutos/certificate-system/pkg/logger"
)

// env opens backends on first use so that commands only touch what they
// need: lookup never dials the wallet, admin-token opens nothing.
type env struct {
	cfg *config.Config
	out io.Writer

	store    blobstore.Store
	ledger   ports.Ledger
	provider *chain.Provider
	sessions *service.SessionManager
	closers  []func()
}

func newEnv(cfg *config.Config, out io.Writer) *env {
	return &env{cfg: cfg, out: out}
}

func (e *env) log(component string) zerolog.Logger {
	return logger.Component(component)
}

func (e *env) blobStore(ctx context.Context) (blobstore.Store, error) {
	if e.store != nil {
		return e.store, nil
	}
	s, err := blobstore.New(ctx, e.cfg.Blob, e.log("blobstore"))
	if err != nil {
		return nil, err
	}
	e.store = s
	e.closers = append(e.closers, func() { _ = s.Close() })
	return s, nil
}

func (e *env) openLedger(ctx context.Context) (ports.Ledger, error) {
	if e.ledger != nil {
		return e.ledger, nil
	}
	l, err := db.OpenLedger(ctx, e.cfg, e.log("ledger"))
	if err != nil {
		return nil, err
	}
	e.ledger = l
	e.closers = append(e.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Close(ctx)
	})
	return l, nil
}

func (e *env) certificates(ctx context.Context) (*service.CertificateService, error) {
	store, err := e.blobStore(ctx)
	if err != nil {
		return nil, err
	}
	ledger, err := e.openLedger(ctx)
	if err != nil {
		return nil, err
	}
	proofs := service.NewProofSigner(e.cfg.ProofSecret, e.cfg.ProofTTL)
	return service.NewCertificateService(store, ledger, proofs, e.cfg.MaxImageBytes, e.log("certificates")), nil
}

func (e *env) sessionStore() ports.SessionStore {
	return session.NewFileStore(e.cfg.Session.File)
}

func (e *env) chainDescriptor() ports.ChainDescriptor {
	c := e.cfg.Chain
	return ports.ChainDescriptor{
		ChainID:   c.ChainID,
		ChainName: c.ChainName,
		NativeCurrency: ports.NativeCurrency{
			Name:     c.CurrencyName,
			Symbol:   c.CurrencySymbol,
			Decimals: c.CurrencyDec,
		},
		RPCURLs: []string{c.RPCURL},
	}
}

// client dials the credential provider and wires the full wallet-side
// coordinator.
func (e *env) client(ctx context.Context) (*service.Client, error) {
	certs, err := e.certificates(ctx)
	if err != nil {
		return nil, err
	}
	ledger, err := e.openLedger(ctx)
	if err != nil {
		return nil, err
	}

	if e.provider == nil {
		p, err := chain.Dial(ctx, e.cfg.Chain.ProviderURL, e.log("provider"))
		if err != nil {
			return nil, err
		}
		e.provider = p
		e.closers = append(e.closers, func() { _ = p.Close() })
	}
	if e.sessions == nil {
		e.sessions = service.NewSessionManager(e.sessionStore(), e.provider, e.log("session"))
		e.closers = append(e.closers, e.sessions.Close)
		if _, err := e.sessions.Restore(ctx); err != nil {
			log := e.log("session")
			log.Warn().Err(err).Msg("ignoring unreadable session file")
		}
	}

	return service.NewClient(service.ClientConfig{
		Provider:     e.provider,
		Registry:     ledger,
		Auth:         service.NewAuthService(ledger, e.log("auth")),
		Certificates: certs,
		Sessions:     e.sessions,
		Chain:        e.chainDescriptor(),
		Logger:       e.log("client"),
	}), nil
}

// close releases backends in reverse order of opening.
func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}
