// Package db selects the record ledger backend.
package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/99minutos/certificate-system/internal/core/ports"
	"github.com/99minutos/certificate-system/internal/infrastructure/db/mongo"
	"github.com/99minutos/certificate-system/internal/infrastructure/db/sqldb"
	"github.com/99minutos/certificate-system/internal/pkg/config"
)

const (
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// OpenLedger connects to the backend named by cfg.Ledger.Backend.
func OpenLedger(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (ports.Ledger, error) {
	backend := cfg.Ledger.Backend
	if backend == "" {
		backend = BackendSQLite
	}
	logger.Info().Str("backend", backend).Msg("opening ledger")

	var (
		ledger ports.Ledger
		err    error
	)
	switch backend {
	case BackendMongo:
		ledger, err = openMongo(ctx, cfg.Mongo)
	case BackendSQLite:
		ledger, err = openSQL(ctx, sqldb.SQLite, cfg.SQL.DSN)
	case BackendPostgres:
		ledger, err = openSQL(ctx, sqldb.Postgres, cfg.SQL.DSN)
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", backend, err)
	}
	return ledger, nil
}

func openMongo(ctx context.Context, cfg config.MongoConfig) (ports.Ledger, error) {
	l, err := mongo.NewLedger(ctx, mongo.Config{URI: cfg.URI, Database: cfg.Database, AppName: cfg.AppName})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func openSQL(ctx context.Context, dialect sqldb.Dialect, dsn string) (ports.Ledger, error) {
	if dsn == "" {
		return nil, fmt.Errorf("SQL_DSN is required")
	}
	l, err := sqldb.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	return l, nil
}
