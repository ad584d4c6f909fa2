package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/quantlab/stratbench/internal/regression"
	"github.com/quantlab/stratbench/internal/walkforward"
)

// PostgresBaselineStore persists baselines in the baselines table, one row
// per symbol, metrics as a JSONB snapshot.
type PostgresBaselineStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresBaselineStore creates a Postgres-backed baseline store
func NewPostgresBaselineStore(db *sqlx.DB, timeout time.Duration) *PostgresBaselineStore {
	return &PostgresBaselineStore{db: db, timeout: timeout}
}

// Load implements BaselineStore
func (s *PostgresBaselineStore) Load(ctx context.Context, symbol string) (*regression.Baseline, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var snapshot []byte
	query := `SELECT snapshot FROM baselines WHERE symbol = $1`
	if err := s.db.QueryRowxContext(ctx, query, symbol).Scan(&snapshot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load baseline for %s: %w", symbol, err)
	}
	return regression.ParseBaseline(snapshot)
}

// Save implements BaselineStore
func (s *PostgresBaselineStore) Save(ctx context.Context, baseline *regression.Baseline) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snapshot, err := baseline.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode baseline for %s: %w", baseline.Symbol, err)
	}

	query := `
		INSERT INTO baselines (symbol, established_at, snapshot)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol) DO UPDATE SET
			established_at = EXCLUDED.established_at,
			snapshot = EXCLUDED.snapshot`
	if _, err := s.db.ExecContext(ctx, query, baseline.Symbol, baseline.EstablishedAt, snapshot); err != nil {
		return fmt.Errorf("failed to save baseline for %s: %w", baseline.Symbol, err)
	}
	return nil
}

// PostgresWalkForwardStore persists walk-forward results in the
// walkforward_results table, one row per run, result as a JSONB snapshot.
type PostgresWalkForwardStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresWalkForwardStore creates a Postgres-backed walk-forward store
func NewPostgresWalkForwardStore(db *sqlx.DB, timeout time.Duration) *PostgresWalkForwardStore {
	return &PostgresWalkForwardStore{db: db, timeout: timeout}
}

// Save implements WalkForwardStore
func (s *PostgresWalkForwardStore) Save(ctx context.Context, result *walkforward.Result) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snapshot, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode walk-forward result: %w", err)
	}

	id := uuid.NewString()
	query := `
		INSERT INTO walkforward_results (id, symbol, created_at, snapshot)
		VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, id, result.Symbol, result.GeneratedAt, snapshot); err != nil {
		return "", fmt.Errorf("failed to save walk-forward result: %w", err)
	}
	return id, nil
}

// Load implements WalkForwardStore
func (s *PostgresWalkForwardStore) Load(ctx context.Context, id string) (*walkforward.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var snapshot []byte
	query := `SELECT snapshot FROM walkforward_results WHERE id = $1`
	if err := s.db.QueryRowxContext(ctx, query, id).Scan(&snapshot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load walk-forward result %s: %w", id, err)
	}

	var result walkforward.Result
	if err := json.Unmarshal(snapshot, &result); err != nil {
		return nil, fmt.Errorf("malformed walk-forward result %s: %w", id, err)
	}
	return &result, nil
}
