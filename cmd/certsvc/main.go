// Command certsvc serves the certificate upload, retrieval and verification
// API.
//
// @title                       Certificate System API
// @version                     1.0
// @description                 Issue, store and verify academic certificates backed by a content-addressed blob store.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/api"
	"github.com/99minutos/certificate-system/internal/api/handler"
	"github.com/99minutos/certificate-system/internal/api/metrics"
	"github.com/99minutos/certificate-system/internal/api/middleware"
	"github.com/99minutos/certificate-system/internal/core/service"
	"github.com/99minutos/certificate-system/internal/infrastructure/blobstore"
	"github.com/99minutos/certificate-system/internal/infrastructure/db"
	"github.com/99minutos/certificate-system/internal/infrastructure/db/redis"
	"github.com/99minutos/certificate-system/internal/pkg/config"
	"github.com/99minutos/certificate-system/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.OptionsFor("certsvc", cfg.Env, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("certsvc stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := blobstore.New(ctx, cfg.Blob, logger.Component("blobstore"))
	if err != nil {
		return err
	}
	defer store.Close()

	ledger, err := db.OpenLedger(ctx, cfg, logger.Component("ledger"))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ledger.Close(closeCtx)
	}()

	checks := []handler.DependencyCheck{
		handler.LedgerCheck(ledger),
		handler.BlobStoreCheck(store),
	}

	var limiter middleware.Limiter = middleware.NewLocalLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:       cfg.Redis.Addr,
			Username:   cfg.Redis.Username,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			TLS:        cfg.Redis.TLS,
			ClientName: "certsvc-limiter",
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter = redis.NewRateLimiter(rdb, "upload", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		checks = append(checks, handler.RedisCheck(rdb))
	} else {
		log.Info().Msg("REDIS_ADDR not set, rate limiting in-process")
	}

	if cfg.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET not set, user registration and certificate issuing are disabled")
	}
	proofs := service.NewProofSigner(cfg.ProofSecret, cfg.ProofTTL)
	if proofs == nil {
		log.Info().Msg("PROOF_SECRET not set, certificate proofs are disabled")
	}

	recorder := metrics.Recorder{}
	certs := service.NewCertificateService(store, ledger, proofs, cfg.MaxImageBytes, logger.Component("certificates")).WithMetrics(recorder)
	auth := service.NewAuthService(ledger, logger.Component("auth")).WithMetrics(recorder)

	e := api.NewRouter(api.Dependencies{
		Certificates:  certs,
		Auth:          auth,
		Issuer:        service.NewIssuer(ledger, certs, logger.Component("issuer")),
		Limiter:       limiter,
		Checks:        checks,
		JWTSecret:     cfg.JWTSecret,
		TokenTTL:      cfg.TokenTTL,
		MaxImageBytes: cfg.MaxImageBytes,
		StaticDir:     cfg.StaticDir,
		Logger:        logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("certsvc listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
