package consensus

import (
	"fmt"
	"math"

	"consilium/internal/domain/opinion"
	"consilium/pkg/errors"
)

// Signal is the caller-facing decision band derived from the final score.
// Pure function of the score; never feeds back into the result fields.
type Signal string

const (
	SignalBullish Signal = "bullish"
	SignalBearish Signal = "bearish"
	SignalNeutral Signal = "neutral"
)

// Config holds the engine's fixed aggregation thresholds.
type Config struct {
	// ConflictScoreGap is the divergence from the weighted mean, in score
	// points, beyond which a confident opinion is flagged as a conflict.
	ConflictScoreGap float64

	// ConflictMaxDoubt is the uncertainty ceiling for conflict flagging:
	// divergence from a maximally-doubtful module is noise, not conflict.
	ConflictMaxDoubt float64

	// BullishThreshold / BearishThreshold band the final score.
	BullishThreshold float64
	BearishThreshold float64
}

// DefaultConfig returns the calibrated default thresholds.
func DefaultConfig() Config {
	return Config{
		ConflictScoreGap: 25.0,
		ConflictMaxDoubt: 0.5,
		BullishThreshold: 65.0,
		BearishThreshold: 35.0,
	}
}

// dispersionScale normalizes score standard deviation into [0,1] for the
// consensus-strength metric. Opinions spread across one full decision band
// (25 points of deviation) count as zero consensus.
const dispersionScale = 25.0

// Result is the ephemeral output of one aggregation. Not persisted by the
// engine; callers snapshot what they need.
type Result struct {
	FinalScore        float64            `json:"final_score"`        // [0,100]
	TotalUncertainty  float64            `json:"total_uncertainty"`  // [0,1]
	SignalStrength    float64            `json:"signal_strength"`    // [0,1], distance from neutral
	ConsensusStrength float64            `json:"consensus_strength"` // [0,1], opinion agreement
	ModuleWeights     map[string]float64 `json:"module_weights"`     // module name -> normalized weight
	Conflicts         []string           `json:"conflicts"`
	Explanations      []string           `json:"explanations"`
}

// Engine aggregates a complete set of opinions into one weighted decision.
// Stateless: every call re-derives everything from its inputs.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine with the given thresholds.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Signal bands a final score into the caller-facing decision.
func (e *Engine) Signal(finalScore float64) Signal {
	switch {
	case finalScore > e.cfg.BullishThreshold:
		return SignalBullish
	case finalScore < e.cfg.BearishThreshold:
		return SignalBearish
	default:
		return SignalNeutral
	}
}

// Analyze combines opinions into a consensus result. The opinion set must
// contain exactly one record per mandatory module: any other cardinality,
// short or long, fails with errors.ErrIncompleteConsensus rather than
// silently computing a partial consensus.
func (e *Engine) Analyze(opinions []*opinion.Opinion, mandatory int) (*Result, error) {
	if len(opinions) == 0 {
		return nil, errors.ErrNoOpinions
	}
	if len(opinions) != mandatory {
		return nil, errors.Wrapf(errors.ErrIncompleteConsensus,
			"got %d opinions, mandatory %d", len(opinions), mandatory)
	}

	n := len(opinions)

	// Defensive re-clamp; modules are required to clamp before publishing,
	// but the engine must not propagate an out-of-range record.
	scores := make([]float64, n)
	doubts := make([]float64, n)
	for i, op := range opinions {
		scores[i] = opinion.ClampScore(op.Score)
		doubts[i] = opinion.ClampUncertainty(op.Uncertainty)
	}

	weights, degenerate := normalizeWeights(doubts)

	var finalScore, totalUncertainty float64
	moduleWeights := make(map[string]float64, n)
	for i, op := range opinions {
		finalScore += scores[i] * weights[i]
		totalUncertainty += doubts[i] * weights[i]
		moduleWeights[op.ProducedBy.Name] = weights[i]
	}
	finalScore = opinion.ClampScore(finalScore)
	totalUncertainty = opinion.ClampUncertainty(totalUncertainty)

	signalStrength := clamp01(math.Abs(finalScore-opinion.NeutralScore) / opinion.NeutralScore)
	consensusStrength := consensusStrength(scores, weights, finalScore)

	conflicts := e.detectConflicts(opinions, scores, doubts, finalScore)

	result := &Result{
		FinalScore:        finalScore,
		TotalUncertainty:  totalUncertainty,
		SignalStrength:    signalStrength,
		ConsensusStrength: consensusStrength,
		ModuleWeights:     moduleWeights,
		Conflicts:         conflicts,
	}
	result.Explanations = e.explain(opinions, weights, degenerate, result)

	return result, nil
}

// normalizeWeights converts uncertainties into normalized voting weights.
// Raw weight is 1-uncertainty; an all-zero weight set (every module fully
// uncertain) degenerates to an equal split instead of dividing by zero.
func normalizeWeights(doubts []float64) (weights []float64, degenerate bool) {
	n := len(doubts)
	weights = make([]float64, n)

	var total float64
	for i, d := range doubts {
		weights[i] = 1 - d
		total += weights[i]
	}

	if total == 0 {
		equal := 1.0 / float64(n)
		for i := range weights {
			weights[i] = equal
		}
		return weights, true
	}

	for i := range weights {
		weights[i] /= total
	}
	return weights, false
}

// consensusStrength measures how tightly the individual scores cluster around
// the weighted mean: 1 - normalized weighted standard deviation, clamped.
func consensusStrength(scores, weights []float64, mean float64) float64 {
	if len(scores) < 2 {
		return 1.0
	}

	var variance float64
	for i, s := range scores {
		dev := s - mean
		variance += weights[i] * dev * dev
	}
	std := math.Sqrt(variance)

	return clamp01(1 - std/dispersionScale)
}

// detectConflicts flags confident opinions that diverge from the weighted
// mean beyond the configured gap, plus a directional note when confident
// bullish and bearish voters coexist. Notes are emitted in input order, so
// output is deterministic for a given opinion list.
func (e *Engine) detectConflicts(opinions []*opinion.Opinion, scores, doubts []float64, mean float64) []string {
	var conflicts []string

	var bulls, bears []string
	for i, op := range opinions {
		if doubts[i] > e.cfg.ConflictMaxDoubt {
			continue // divergence from a doubtful module is just noise
		}

		if gap := math.Abs(scores[i] - mean); gap > e.cfg.ConflictScoreGap {
			conflicts = append(conflicts, fmt.Sprintf(
				"module %s diverges from weighted mean %.1f by %.1f points (score %.1f, uncertainty %.2f)",
				op.ProducedBy.Name, mean, gap, scores[i], doubts[i],
			))
		}

		switch {
		case scores[i] > e.cfg.BullishThreshold:
			bulls = append(bulls, op.ProducedBy.Name)
		case scores[i] < e.cfg.BearishThreshold:
			bears = append(bears, op.ProducedBy.Name)
		}
	}

	if len(bulls) > 0 && len(bears) > 0 {
		conflicts = append(conflicts, fmt.Sprintf(
			"directional conflict: %d bullish (%v) vs %d bearish (%v) modules",
			len(bulls), bulls, len(bears), bears,
		))
	}

	return conflicts
}

// explain builds the ordered human-readable trail from the numbers already
// computed; it never derives new ones.
func (e *Engine) explain(opinions []*opinion.Opinion, weights []float64, degenerate bool, r *Result) []string {
	notes := make([]string, 0, 4+len(r.Conflicts))

	notes = append(notes, fmt.Sprintf(
		"aggregated %d opinions into final score %.1f (%s) with total uncertainty %.2f",
		len(opinions), r.FinalScore, e.Signal(r.FinalScore), r.TotalUncertainty,
	))

	if degenerate {
		notes = append(notes, "all modules fully uncertain; fell back to an equal-weight split")
	} else {
		dominant := 0
		for i := range weights {
			if weights[i] > weights[dominant] {
				dominant = i
			}
		}
		notes = append(notes, fmt.Sprintf(
			"dominant module %s carries weight %.2f",
			opinions[dominant].ProducedBy.Name, weights[dominant],
		))
	}

	notes = append(notes, fmt.Sprintf(
		"consensus strength %.2f, signal strength %.2f",
		r.ConsensusStrength, r.SignalStrength,
	))

	notes = append(notes, r.Conflicts...)

	fallbacks := 0
	for _, op := range opinions {
		if op.IsFallback() {
			fallbacks++
		}
	}
	if fallbacks > 0 {
		notes = append(notes, fmt.Sprintf("%d module(s) degraded to fallback opinions", fallbacks))
	}

	return notes
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
