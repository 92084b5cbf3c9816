package opinion

import (
	"math"
	"time"
)

// NeutralScore is the midpoint of the score scale. Scores above lean bullish,
// scores below lean bearish.
const NeutralScore = 50.0

// ConfidenceLevel is derived from uncertainty via fixed thresholds, never set
// directly by a module.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Confidence level thresholds on the uncertainty scale
const (
	highConfidenceMaxUncertainty   = 0.2
	mediumConfidenceMaxUncertainty = 0.5
)

// TagFallback marks an opinion produced by a module's failure path.
const TagFallback = "fallback"

// TagNeutral is emitted when a module detects no signal; tag lists are never empty.
const TagNeutral = "neutral"

// Producer identifies the module that created an opinion.
type Producer struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (p Producer) String() string {
	return p.Name + "@" + p.Version
}

// Opinion is the standardized output of one expert module for one analysis
// request. Immutable once created.
type Opinion struct {
	Score               float64            `json:"score"`             // [0,100], 50 neutral
	Uncertainty         float64            `json:"uncertainty"`       // [0,1], 1 = no information value
	SignalTags          []string           `json:"signal_tags"`       // non-empty
	Explanation         string             `json:"explanation"`       // non-empty
	ContributingFactors map[string]float64 `json:"contributing_factors"`
	ConfidenceLevel     ConfidenceLevel    `json:"confidence_level"` // derived from uncertainty
	Timestamp           time.Time          `json:"timestamp"`        // creation time of the opinion
	ProducedBy          Producer           `json:"produced_by"`
}

// New creates a validated opinion. Score and uncertainty are clamped into
// their closed ranges, an empty tag list becomes a single neutral tag, and the
// confidence level is derived from the clamped uncertainty.
func New(by Producer, score, uncertainty float64, tags []string, explanation string, factors map[string]float64) *Opinion {
	if len(tags) == 0 {
		tags = []string{TagNeutral}
	}
	if explanation == "" {
		explanation = "no explanation provided"
	}
	if factors == nil {
		factors = map[string]float64{}
	}

	uncertainty = ClampUncertainty(uncertainty)

	return &Opinion{
		Score:               ClampScore(score),
		Uncertainty:         uncertainty,
		SignalTags:          tags,
		Explanation:         explanation,
		ContributingFactors: factors,
		ConfidenceLevel:     LevelFor(uncertainty),
		Timestamp:           time.Now().UTC(),
		ProducedBy:          by,
	}
}

// Fallback builds the maximally-uncertain neutral opinion a module emits when
// its inference fails internally. Keeps aggregation safe: a broken module
// looks like a voter with zero weight rather than an error the engine must
// branch on.
func Fallback(by Producer, cause string) *Opinion {
	if cause == "" {
		cause = "unknown failure"
	}
	return New(
		by,
		NeutralScore,
		1.0,
		[]string{TagFallback},
		"module fallback activated: "+cause,
		map[string]float64{TagFallback: 1.0},
	)
}

// IsFallback reports whether the opinion came from a module's failure path.
func (o *Opinion) IsFallback() bool {
	for _, tag := range o.SignalTags {
		if tag == TagFallback {
			return true
		}
	}
	return false
}

// LevelFor derives the confidence label from uncertainty using fixed thresholds.
func LevelFor(uncertainty float64) ConfidenceLevel {
	switch {
	case uncertainty <= highConfidenceMaxUncertainty:
		return ConfidenceHigh
	case uncertainty <= mediumConfidenceMaxUncertainty:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ClampScore clamps a score into [0,100]. NaN maps to the neutral score.
func ClampScore(score float64) float64 {
	if math.IsNaN(score) {
		return NeutralScore
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ClampUncertainty clamps an uncertainty into [0,1]. NaN maps to full uncertainty.
func ClampUncertainty(u float64) float64 {
	if math.IsNaN(u) {
		return 1
	}
	if u < 0 {
		return 0
	}
	if u > 1 {
		return 1
	}
	return u
}
