// Package postgres stores run history in Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/page-watcher/internal/watch"
)

// DefaultTable receives run rows when no table is configured.
const DefaultTable = "watch_runs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for run rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Recorder writes run rows into Postgres.
type Recorder struct {
	pool  execCloser
	table string
}

var _ watch.Recorder = (*Recorder)(nil)

// New creates a Postgres-backed Recorder using the provided config.
func New(ctx context.Context, cfg Config) (*Recorder, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	// A single run writes one row; a small pool is plenty.
	poolCfg.MaxConns = 2
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Recorder{pool: pool, table: table}, nil
}

// NewWithPool constructs a recorder from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table string) (*Recorder, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Recorder{pool: pool, table: table}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (r *Recorder) Close() {
	if r == nil || r.pool == nil {
		return
	}
	r.pool.Close()
}

// EnsureSchema creates the history table when it does not exist.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id      TEXT PRIMARY KEY,
	url         TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	fingerprint TEXT,
	summary     TEXT NOT NULL DEFAULT '',
	checked_at  TIMESTAMPTZ NOT NULL,
	attempts    INTEGER NOT NULL DEFAULT 0,
	error_text  TEXT,
	deliveries  JSONB NOT NULL DEFAULT '[]'::jsonb
)`, r.table)
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create history table: %w", err)
	}
	return nil
}

// Record inserts one run row.
func (r *Recorder) Record(ctx context.Context, record watch.RunRecord) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("history recorder is not configured")
	}
	if record.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	deliveries := record.Deliveries
	if deliveries == nil {
		deliveries = []watch.Delivery{}
	}
	deliveriesJSON, err := json.Marshal(deliveries)
	if err != nil {
		return fmt.Errorf("marshal deliveries: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	url,
	outcome,
	fingerprint,
	summary,
	checked_at,
	attempts,
	error_text,
	deliveries
) VALUES (
	$1,$2,$3,NULLIF($4, ''),$5,$6,$7,NULLIF($8, ''),$9
)`, r.table)

	args := []any{
		record.RunID,
		record.URL,
		string(record.Outcome),
		record.Fingerprint,
		record.Summary,
		record.CheckedAt.UTC(),
		record.Attempts,
		record.ErrorText,
		deliveriesJSON,
	}
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}
