// Package sqldb implements the record contract on a SQL database. SQLite
// (modernc.org/sqlite, no cgo) serves single-node deployments and tests;
// PostgreSQL (lib/pq) serves shared deployments.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/99minutos/certificate-system/internal/core/domain"
	"github.com/99minutos/certificate-system/internal/pkg/commitment"
)

const defaultTimeout = 10 * time.Second

// Dialect selects the driver and placeholder style.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Ledger stores authorization and certificate records in two tables keyed by
// identity and certificate id. Creates rely on the primary key and
// ON CONFLICT DO NOTHING, so concurrent creates for one id cannot both win.
type Ledger struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to dsn, verifies the connection and applies the schema.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Ledger, error) {
	if dialect != SQLite && dialect != Postgres {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if dialect == SQLite {
		// one writer keeps SQLITE_BUSY out of concurrent creates
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	l := New(db, dialect)
	if err := l.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return l, nil
}

// New wraps an already open database.
func New(db *sql.DB, dialect Dialect) *Ledger {
	return &Ledger{db: db, dialect: dialect}
}

func (l *Ledger) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			identity          TEXT PRIMARY KEY,
			display_name      TEXT NOT NULL,
			secret_commitment TEXT NOT NULL,
			role              INTEGER NOT NULL,
			created_at        BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS certificates (
			certificate_id TEXT PRIMARY KEY,
			student_name   TEXT NOT NULL,
			course_name    TEXT NOT NULL,
			issue_date     TEXT NOT NULL,
			blob_reference TEXT NOT NULL,
			issued_by      TEXT NOT NULL DEFAULT '',
			created_at     BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_blob ON certificates(blob_reference)`,
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) RegisterUser(ctx context.Context, identity domain.Identity, displayName, secret string, role domain.Role) error {
	commit, err := commitment.Commit(secret)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := l.db.ExecContext(ctx, l.rebind(
		`INSERT INTO users (identity, display_name, secret_commitment, role, created_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT (identity) DO NOTHING`),
		identity.String(), displayName, commit, int64(role), time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("insert user: %w", err)
	} else if n == 0 {
		return domain.ErrUserExists
	}
	return nil
}

// User returns Exists=false for an identity with no record.
func (l *Ledger) User(ctx context.Context, identity domain.Identity) (domain.AuthorizationRecord, error) {
	rec, err := l.findUser(ctx, identity)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.AuthorizationRecord{Identity: identity}, nil
	}
	if err != nil {
		return domain.AuthorizationRecord{}, err
	}
	return *rec, nil
}

func (l *Ledger) Login(ctx context.Context, from domain.Identity, secret string) (bool, domain.Role, error) {
	rec, err := l.findUser(ctx, from)
	if err != nil {
		return false, 0, err
	}
	ok, err := commitment.Verify(rec.SecretCommitment, secret)
	if err != nil {
		return false, 0, fmt.Errorf("verify secret: %w", err)
	}
	if !ok {
		return false, 0, nil
	}
	return true, rec.Role, nil
}

func (l *Ledger) findUser(ctx context.Context, identity domain.Identity) (*domain.AuthorizationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		rec     domain.AuthorizationRecord
		id      string
		role    int64
		created int64
	)
	err := l.db.QueryRowContext(ctx, l.rebind(
		`SELECT identity, display_name, secret_commitment, role, created_at FROM users WHERE identity = ?`),
		identity.String(),
	).Scan(&id, &rec.DisplayName, &rec.SecretCommitment, &role, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	rec.Identity = domain.Identity(id)
	rec.Role = domain.Role(role)
	rec.Exists = true
	rec.CreatedAt = time.Unix(created, 0).UTC()
	return &rec, nil
}

// Create inserts rec if no record exists for its id.
func (l *Ledger) Create(ctx context.Context, rec *domain.CertificateRecord) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := l.db.ExecContext(ctx, l.rebind(
		`INSERT INTO certificates (certificate_id, student_name, course_name, issue_date, blob_reference, issued_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (certificate_id) DO NOTHING`),
		rec.CertificateID, rec.StudentName, rec.CourseName, rec.IssueDate,
		rec.BlobReference.String(), rec.IssuedBy.String(), rec.CreatedAt.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	if n == 0 {
		return domain.ErrDuplicateCertificate
	}
	return nil
}

func (l *Ledger) FindByID(ctx context.Context, certificateID string) (*domain.CertificateRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		rec      domain.CertificateRecord
		ref      string
		issuedBy string
		created  int64
	)
	err := l.db.QueryRowContext(ctx, l.rebind(
		`SELECT certificate_id, student_name, course_name, issue_date, blob_reference, issued_by, created_at
		FROM certificates WHERE certificate_id = ?`),
		certificateID,
	).Scan(&rec.CertificateID, &rec.StudentName, &rec.CourseName, &rec.IssueDate, &ref, &issuedBy, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCertificateNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	rec.BlobReference = domain.BlobReference(ref)
	rec.IssuedBy = domain.Identity(issuedBy)
	rec.CreatedAt = time.Unix(created, 0).UTC()
	return &rec, nil
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func (l *Ledger) Close(context.Context) error {
	return l.db.Close()
}

// rebind rewrites ? placeholders as $N for PostgreSQL.
func (l *Ledger) rebind(query string) string {
	if l.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
