// Package audit keeps a Postgres record of pipeline outcomes.
package audit

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"healthinsight/internal/insight"
	"healthinsight/internal/logging"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("missing database dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	goose.SetTableName("schema_migrations")
	return goose.UpContext(ctx, db, "migrations")
}

type Run struct {
	ID             string
	Fingerprint    string
	Domain         string
	Provenance     string
	FallbackReason string
	Provider       string
	Duration       time.Duration
	CreatedAt      time.Time
}

func (s *Store) Record(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (id, fingerprint, domain, provenance, fallback_reason, provider, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)`,
		run.ID, run.Fingerprint, run.Domain, run.Provenance, run.FallbackReason, run.Provider,
		run.Duration.Milliseconds(), run.CreatedAt,
	)
	return err
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id::text, fingerprint, domain, provenance, COALESCE(fallback_reason, ''), COALESCE(provider, ''), duration_ms, created_at
		FROM pipeline_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var ms int64
		if err := rows.Scan(&r.ID, &r.Fingerprint, &r.Domain, &r.Provenance, &r.FallbackReason, &r.Provider, &ms, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// FallbackCounts returns the number of fallback runs per reason since t.
func (s *Store) FallbackCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fallback_reason, COUNT(*)
		FROM pipeline_runs
		WHERE provenance = 'fallback' AND created_at >= $1
		GROUP BY fallback_reason`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var reason sql.NullString
		var n int64
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason.String] += n
	}
	return out, rows.Err()
}

// Observer writes every pipeline outcome to the store. Write failures are
// logged and never reach the caller.
type Observer struct {
	store   *Store
	logger  *zap.Logger
	timeout time.Duration
}

func NewObserver(store *Store, logger *zap.Logger) *Observer {
	return &Observer{store: store, logger: logging.OrNop(logger), timeout: 2 * time.Second}
}

func (o *Observer) Observe(ctx context.Context, out insight.Outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)
	defer cancel()
	err := o.store.Record(ctx, Run{
		ID:             out.RequestID,
		Fingerprint:    out.Fingerprint,
		Domain:         string(out.Domain),
		Provenance:     string(out.Provenance),
		FallbackReason: string(out.FallbackReason),
		Provider:       out.Provider,
		Duration:       out.Duration,
		CreatedAt:      out.CreatedAt,
	})
	if err != nil {
		o.logger.Warn("audit write failed", zap.String("request_id", out.RequestID), zap.Error(err))
	}
}
