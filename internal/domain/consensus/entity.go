package consensus

import (
	"time"

	"github.com/google/uuid"
)

// Record is one persisted consensus run: the decision plus the diagnostics a
// dashboard needs, without the full opinion set.
type Record struct {
	ID                uuid.UUID `db:"id"`
	Symbol            string    `db:"symbol"`
	FinalScore        float64   `db:"final_score"`
	Signal            string    `db:"signal"`
	TotalUncertainty  float64   `db:"total_uncertainty"`
	SignalStrength    float64   `db:"signal_strength"`
	ConsensusStrength float64   `db:"consensus_strength"`
	ModulesUsed       int       `db:"modules_used"`
	ConflictCount     int       `db:"conflict_count"`
	FallbackCount     int       `db:"fallback_count"`
	CreatedAt         time.Time `db:"created_at"`
}

// Summary aggregates recent runs for a symbol.
type Summary struct {
	Symbol        string  `db:"symbol"`
	TotalRuns     int     `db:"total_runs"`
	BullishRuns   int     `db:"bullish_runs"`
	BearishRuns   int     `db:"bearish_runs"`
	NeutralRuns   int     `db:"neutral_runs"`
	AvgScore      float64 `db:"avg_score"`
	AvgConfidence float64 `db:"avg_confidence"` // 1 - avg total uncertainty
}
