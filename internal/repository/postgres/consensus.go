package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"consilium/internal/domain/consensus"
	"consilium/pkg/errors"
)

// Compile-time check
var _ consensus.Repository = (*ConsensusRepository)(nil)

// ConsensusRepository implements consensus.Repository using sqlx
type ConsensusRepository struct {
	db *sqlx.DB
}

// NewConsensusRepository creates a new consensus history repository
func NewConsensusRepository(db *sqlx.DB) *ConsensusRepository {
	return &ConsensusRepository{db: db}
}

// Insert persists one consensus run
func (r *ConsensusRepository) Insert(ctx context.Context, record *consensus.Record) error {
	query := `
		INSERT INTO consensus_runs (
			id, symbol, final_score, signal, total_uncertainty,
			signal_strength, consensus_strength, modules_used,
			conflict_count, fallback_count, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.Symbol, record.FinalScore, record.Signal,
		record.TotalUncertainty, record.SignalStrength, record.ConsensusStrength,
		record.ModulesUsed, record.ConflictCount, record.FallbackCount,
		record.CreatedAt,
	)

	return err
}

// GetByID retrieves one consensus run
func (r *ConsensusRepository) GetByID(ctx context.Context, id uuid.UUID) (*consensus.Record, error) {
	var record consensus.Record

	query := `SELECT * FROM consensus_runs WHERE id = $1`

	err := r.db.GetContext(ctx, &record, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "consensus run %s", id)
		}
		return nil, err
	}

	return &record, nil
}

// ListRecent returns the latest runs for a symbol, newest first
func (r *ConsensusRepository) ListRecent(ctx context.Context, symbol string, limit int) ([]consensus.Record, error) {
	var records []consensus.Record

	query := `
		SELECT * FROM consensus_runs
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &records, query, symbol, limit)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Summarize aggregates run statistics for a symbol since a point in time
func (r *ConsensusRepository) Summarize(ctx context.Context, symbol string, since time.Time) (*consensus.Summary, error) {
	var summary consensus.Summary

	query := `
		SELECT
			$1::text AS symbol,
			COUNT(*) AS total_runs,
			COUNT(*) FILTER (WHERE signal = 'bullish') AS bullish_runs,
			COUNT(*) FILTER (WHERE signal = 'bearish') AS bearish_runs,
			COUNT(*) FILTER (WHERE signal = 'neutral') AS neutral_runs,
			COALESCE(AVG(final_score), 0) AS avg_score,
			COALESCE(AVG(1 - total_uncertainty), 0) AS avg_confidence
		FROM consensus_runs
		WHERE symbol = $1 AND created_at >= $2`

	err := r.db.GetContext(ctx, &summary, query, symbol, since)
	if err != nil {
		return nil, err
	}

	return &summary, nil
}
