package modules

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consilium/internal/experts"
	"consilium/pkg/errors"
)

// geometricSeries builds n closes growing (or shrinking) by rate per candle.
func geometricSeries(n int, start, rate float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start * math.Pow(1+rate, float64(i))
	}
	return out
}

func TestTechnical_BullishTrend(t *testing.T) {
	m := NewTechnical()

	raw := experts.RawInput{
		"symbol": "BTC-USDT",
		"closes": geometricSeries(60, 100, 0.01),
	}

	op, err := experts.SafeInfer(context.Background(), m, raw)
	require.NoError(t, err)
	require.NotNil(t, op)

	assert.Greater(t, op.Score, 70.0)
	assert.Contains(t, op.SignalTags, "strong_bullish")
	assert.Contains(t, op.SignalTags, "overbought")
	assert.InDelta(t, 0.2, op.Uncertainty, 1e-9, "aligned indicators keep uncertainty at the floor")
	assert.Contains(t, op.Explanation, "bullish cross")
}

func TestTechnical_BearishTrend(t *testing.T) {
	m := NewTechnical()

	raw := experts.RawInput{
		"symbol": "BTC-USDT",
		"closes": geometricSeries(60, 100, -0.01),
	}

	op, err := experts.SafeInfer(context.Background(), m, raw)
	require.NoError(t, err)

	assert.Less(t, op.Score, 30.0)
	assert.Contains(t, op.SignalTags, "strong_bearish")
	assert.Contains(t, op.SignalTags, "oversold")
}

func TestTechnical_SimulatedDataRaisesUncertainty(t *testing.T) {
	m := NewTechnical()

	raw := experts.RawInput{
		"symbol":    "BTC-USDT",
		"closes":    geometricSeries(60, 100, 0.01),
		"simulated": true,
	}

	op, err := experts.SafeInfer(context.Background(), m, raw)
	require.NoError(t, err)

	assert.InDelta(t, 0.3, op.Uncertainty, 1e-9)
	assert.Contains(t, op.SignalTags, "simulated_data")
}

func TestTechnical_ShortSeriesDegradesToFallback(t *testing.T) {
	m := NewTechnical()

	raw := experts.RawInput{
		"symbol": "BTC-USDT",
		"closes": geometricSeries(10, 100, 0.01),
	}

	op, err := experts.SafeInfer(context.Background(), m, raw)
	require.NoError(t, err)
	require.NotNil(t, op)

	assert.True(t, op.IsFallback())
	assert.Contains(t, op.Explanation, "candles")
}

func TestTechnical_NonNumericSeriesRejected(t *testing.T) {
	m := NewTechnical()

	_, err := m.PrepareFeatures(context.Background(), experts.RawInput{
		"symbol": "BTC-USDT",
		"closes": "not a series",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestTechnical_MissingClosesAborts(t *testing.T) {
	m := NewTechnical()

	op, err := experts.SafeInfer(context.Background(), m, experts.RawInput{"symbol": "BTC-USDT"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingInput)
	assert.Nil(t, op)
}

func TestTechnical_NotTrainable(t *testing.T) {
	m := NewTechnical()

	_, err := m.Retrain(context.Background(), nil, nil)
	assert.ErrorIs(t, err, errors.ErrNotTrainable)
}
