package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/flashbots/ppcalc/metric"
	"github.com/flashbots/ppcalc/trace"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore implements Store with PostgreSQL persistence.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings. A non-empty DSN
// takes precedence over the individual fields.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`

	// ConnectAttempts bounds how often the initial ping is tried.
	ConnectAttempts uint `yaml:"connect_attempts"`
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresStore connects to PostgreSQL and creates the schema if needed.
func NewPostgresStore(ctx context.Context, config *PostgresConfig, log *slog.Logger) (*PostgresStore, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	attempts := config.ConnectAttempts
	if attempts == 0 {
		attempts = 5
	}
	err = retry.Do(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			log.Warn("database not ready", "attempt", attempt+1, "err", err)
		}),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		trace_digest VARCHAR(64) NOT NULL,
		min_window_ms BIGINT NOT NULL,
		max_window_ms BIGINT NOT NULL,
		messages INTEGER NOT NULL,
		sources INTEGER NOT NULL,
		deanonymized INTEGER NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS run_sets (
		run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		source_id BIGINT NOT NULL,
		position INTEGER NOT NULL,
		message_id BIGINT NOT NULL,
		destinations BIGINT[] NOT NULL,
		PRIMARY KEY (run_id, source_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_digest ON runs(trace_digest);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// saveTimeout bounds SaveRun, which copies one row per source message.
const saveTimeout = 5 * time.Minute

// SaveRun persists a run and its sets in one transaction, replacing any
// run with the same ID.
func (s *PostgresStore) SaveRun(ctx context.Context, run *Run) error {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs
		(id, trace_digest, min_window_ms, max_window_ms, messages, sources, deanonymized, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		trace_digest = EXCLUDED.trace_digest,
		min_window_ms = EXCLUDED.min_window_ms,
		max_window_ms = EXCLUDED.max_window_ms,
		messages = EXCLUDED.messages,
		sources = EXCLUDED.sources,
		deanonymized = EXCLUDED.deanonymized,
		created_at = EXCLUDED.created_at
	`,
		run.ID,
		run.TraceDigest,
		run.MinWindow,
		run.MaxWindow,
		run.Messages,
		run.Sources,
		run.Deanonymized,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_sets WHERE run_id = $1", run.ID); err != nil {
		return fmt.Errorf("clearing sets: %w", err)
	}

	// COPY streams all set rows in one round trip.
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("run_sets", "run_id", "source_id", "position", "message_id", "destinations"))
	if err != nil {
		return fmt.Errorf("preparing copy: %w", err)
	}
	defer stmt.Close()

	for source, entries := range run.Sets {
		for pos, e := range entries {
			dests := make([]int64, len(e.Destinations))
			for i, d := range e.Destinations {
				dests[i] = int64(d)
			}
			if _, err := stmt.ExecContext(ctx, run.ID, int64(source), pos, int64(e.Message), pq.Array(dests)); err != nil {
				return fmt.Errorf("copying set of source %d: %w", source, err)
			}
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("copying sets: %w", err)
	}

	return tx.Commit()
}

const runColumns = `id, trace_digest, min_window_ms, max_window_ms, messages, sources, deanonymized, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	err := row.Scan(
		&run.ID,
		&run.TraceDigest,
		&run.MinWindow,
		&run.MaxWindow,
		&run.Messages,
		&run.Sources,
		&run.Deanonymized,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = run.CreatedAt.UTC()
	return &run, nil
}

// GetRun loads a run including its sets.
func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	run, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, message_id, destinations
		FROM run_sets
		WHERE run_id = $1
		ORDER BY source_id, position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	run.Sets = make(map[trace.SourceID][]metric.SetEntry)
	for rows.Next() {
		var (
			source  int64
			message int64
			dests   []int64
		)
		if err := rows.Scan(&source, &message, pq.Array(&dests)); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}

		entry := metric.SetEntry{
			Message:      trace.MessageID(message),
			Destinations: make([]trace.DestinationID, len(dests)),
		}
		for i, d := range dests {
			entry.Destinations[i] = trace.DestinationID(d)
		}
		run.Sets[trace.SourceID(source)] = append(run.Sets[trace.SourceID(source)], entry)
	}

	return run, rows.Err()
}

// ListRuns returns all runs, newest first, without their sets.
func (s *PostgresStore) ListRuns(ctx context.Context) ([]*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its sets.
func (s *PostgresStore) DeleteRun(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
