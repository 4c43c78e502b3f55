// Package postgres provides a PostgreSQL journal backed by pgx/v5.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/journal"
)

// Store is a PostgreSQL-backed journal.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ journal.Store = (*Store)(nil)

const attemptColumns = `id, resolution_id, tenant_id, attempt, provider, model, position,
	temperature, token_budget, enriched, raw_text, reasoning, candidate, confidence,
	result, rejection, error_body, latency_ms, created_at`

// New connects to PostgreSQL and, when MigrateOnStart is set, applies
// migrations.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}
	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return s, nil
}

// Record inserts a.
func (s *Store) Record(ctx context.Context, a *journal.Attempt) error {
	journal.Prepare(ctx, a)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`,
		a.ID, a.ResolutionID, a.TenantID, a.Attempt, string(a.Provider), a.Model, a.Position,
		a.Temperature, a.TokenBudget, a.Enriched, a.RawText, a.Reasoning, a.Candidate, string(a.Confidence),
		a.Result, a.Rejection, a.ErrorBody, a.LatencyMS, a.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return journal.ErrConflict
		}
		return fmt.Errorf("inserting attempt: %w", err)
	}
	return nil
}

// ListAttempts returns a resolution's attempts ordered by attempt number.
func (s *Store) ListAttempts(ctx context.Context, resolutionID string) ([]*journal.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE resolution_id = $1`
	args := []any{resolutionID}
	if tenant := journal.GetTenant(ctx); tenant != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenant)
	}
	query += " ORDER BY attempt, created_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying attempts: %w", err)
	}
	defer rows.Close()

	var out []*journal.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attempts: %w", err)
	}
	if len(out) == 0 {
		return nil, journal.ErrNotFound
	}
	return out, nil
}

// Get returns one attempt.
func (s *Store) Get(ctx context.Context, id string) (*journal.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE id = $1`
	args := []any{id}
	if tenant := journal.GetTenant(ctx); tenant != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenant)
	}

	a, err := scanAttempt(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, journal.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanAttempt(row pgx.Row) (*journal.Attempt, error) {
	var a journal.Attempt
	var provider, confidence string
	err := row.Scan(
		&a.ID, &a.ResolutionID, &a.TenantID, &a.Attempt, &provider, &a.Model, &a.Position,
		&a.Temperature, &a.TokenBudget, &a.Enriched, &a.RawText, &a.Reasoning, &a.Candidate, &confidence,
		&a.Result, &a.Rejection, &a.ErrorBody, &a.LatencyMS, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning attempt: %w", err)
	}
	a.Provider = api.ProviderID(provider)
	a.Confidence = api.Confidence(confidence)
	return &a, nil
}

// isDuplicateKey reports a unique violation (SQLSTATE 23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
