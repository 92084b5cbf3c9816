package opinion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProducer = Producer{Name: "technical", Version: "1.2.0"}

func TestNew_ClampsAndDefaults(t *testing.T) {
	tests := []struct {
		name            string
		score           float64
		uncertainty     float64
		tags            []string
		explanation     string
		wantScore       float64
		wantUncertainty float64
		wantTags        []string
		wantConfidence  ConfidenceLevel
	}{
		{
			name:            "in range passes through",
			score:           72.5,
			uncertainty:     0.3,
			tags:            []string{"bullish", "momentum"},
			explanation:     "momentum building",
			wantScore:       72.5,
			wantUncertainty: 0.3,
			wantTags:        []string{"bullish", "momentum"},
			wantConfidence:  ConfidenceMedium,
		},
		{
			name:            "score clamped high, uncertainty clamped low",
			score:           140,
			uncertainty:     -0.2,
			tags:            []string{"bullish"},
			explanation:     "overflow",
			wantScore:       100,
			wantUncertainty: 0,
			wantTags:        []string{"bullish"},
			wantConfidence:  ConfidenceHigh,
		},
		{
			name:            "score clamped low, uncertainty clamped high",
			score:           -5,
			uncertainty:     3,
			tags:            []string{"bearish"},
			explanation:     "underflow",
			wantScore:       0,
			wantUncertainty: 1,
			wantTags:        []string{"bearish"},
			wantConfidence:  ConfidenceLow,
		},
		{
			name:            "empty tags become neutral",
			score:           50,
			uncertainty:     0.5,
			tags:            nil,
			explanation:     "nothing to report",
			wantScore:       50,
			wantUncertainty: 0.5,
			wantTags:        []string{TagNeutral},
			wantConfidence:  ConfidenceMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := New(testProducer, tt.score, tt.uncertainty, tt.tags, tt.explanation, nil)

			assert.Equal(t, tt.wantScore, op.Score)
			assert.Equal(t, tt.wantUncertainty, op.Uncertainty)
			assert.Equal(t, tt.wantTags, op.SignalTags)
			assert.Equal(t, tt.wantConfidence, op.ConfidenceLevel)
			assert.Equal(t, testProducer, op.ProducedBy)
			assert.NotNil(t, op.ContributingFactors)
			assert.False(t, op.Timestamp.IsZero())
		})
	}
}

func TestNew_EmptyExplanationGetsPlaceholder(t *testing.T) {
	op := New(testProducer, 50, 0.5, []string{"neutral"}, "", nil)
	assert.Equal(t, "no explanation provided", op.Explanation)
}

func TestLevelFor_Thresholds(t *testing.T) {
	tests := []struct {
		uncertainty float64
		want        ConfidenceLevel
	}{
		{0, ConfidenceHigh},
		{0.2, ConfidenceHigh},
		{0.21, ConfidenceMedium},
		{0.5, ConfidenceMedium},
		{0.51, ConfidenceLow},
		{1, ConfidenceLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.uncertainty), "uncertainty %.2f", tt.uncertainty)
	}
}

func TestFallback_Shape(t *testing.T) {
	op := Fallback(testProducer, "feature store timeout")

	require.NotNil(t, op)
	assert.Equal(t, NeutralScore, op.Score)
	assert.Equal(t, 1.0, op.Uncertainty)
	assert.Equal(t, []string{TagFallback}, op.SignalTags)
	assert.Contains(t, op.Explanation, "feature store timeout")
	assert.Equal(t, ConfidenceLow, op.ConfidenceLevel)
	assert.True(t, op.IsFallback())
}

func TestFallback_EmptyCause(t *testing.T) {
	op := Fallback(testProducer, "")
	assert.Contains(t, op.Explanation, "unknown failure")
}

func TestIsFallback(t *testing.T) {
	regular := New(testProducer, 60, 0.3, []string{"bullish"}, "trend up", nil)
	assert.False(t, regular.IsFallback())

	tagged := New(testProducer, 50, 1, []string{"stale_data", TagFallback}, "degraded", nil)
	assert.True(t, tagged.IsFallback())
}

func TestClamp_NaN(t *testing.T) {
	assert.Equal(t, NeutralScore, ClampScore(math.NaN()))
	assert.Equal(t, 1.0, ClampUncertainty(math.NaN()))
}
