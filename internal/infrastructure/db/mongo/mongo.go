package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultTimeout = 10 * time.Second

// Config locates the ledger database.
type Config struct {
	URI      string
	Database string
	// AppName is reported to the server and shows up in its logs.
	AppName string
	Timeout time.Duration
}

func (cfg Config) clientOptions() *options.ClientOptions {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(timeout).
		SetRetryWrites(true)
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	return opts
}

// Connect dials the ledger database and pings the primary. The ping shares
// the server selection timeout.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	opts := cfg.clientOptions()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, *opts.ServerSelectionTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("mongo ping %s: %w", cfg.Database, err)
	}

	return client, client.Database(cfg.Database), nil
}

// Ledger is the record contract backed by MongoDB: one collection of
// authorization records and one of certificate records, both keyed by _id.
type Ledger struct {
	*UserRepository
	*CertificateRepository
	client *mongo.Client
}

// NewLedger connects and ensures indexes.
func NewLedger(ctx context.Context, cfg Config) (*Ledger, error) {
	client, db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		UserRepository:        NewUserRepository(db),
		CertificateRepository: NewCertificateRepository(db),
		client:                client,
	}
	if err := l.CertificateRepository.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx, nil)
}

func (l *Ledger) Close(ctx context.Context) error {
	return l.client.Disconnect(ctx)
}
