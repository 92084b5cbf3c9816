package modules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consilium/internal/experts"
	"consilium/pkg/errors"
)

func TestCycles_Deterministic(t *testing.T) {
	m := NewCycles()
	ctx := context.Background()

	raw := experts.RawInput{
		"symbol":    "BTC-USDT",
		"timestamp": time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
	}

	first, err := experts.SafeInfer(ctx, m, raw)
	require.NoError(t, err)
	second, err := experts.SafeInfer(ctx, m, raw)
	require.NoError(t, err)

	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.SignalTags, second.SignalTags)
	assert.Equal(t, first.Explanation, second.Explanation)
}

func TestCycles_FixedUncertainty(t *testing.T) {
	m := NewCycles()

	op, err := experts.SafeInfer(context.Background(), m, experts.RawInput{
		"symbol":    "BTC-USDT",
		"timestamp": time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.6, op.Uncertainty, 1e-9, "calendar signals never claim confidence")
}

func TestCycles_SeventhYear(t *testing.T) {
	m := NewCycles()

	// 2029 % 7 == 6: final year of the cycle
	op, err := experts.SafeInfer(context.Background(), m, experts.RawInput{
		"symbol":    "BTC-USDT",
		"timestamp": time.Date(2029, 1, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Contains(t, op.SignalTags, "seventh_year")
	assert.Contains(t, op.SignalTags, "cycle_adverse")
	assert.Less(t, op.Score, 45.0)
}

func TestCycles_EarlyCycleFavorable(t *testing.T) {
	m := NewCycles()

	// 2023 % 7 == 0: early cycle, plus strong November seasonality
	op, err := experts.SafeInfer(context.Background(), m, experts.RawInput{
		"symbol":    "BTC-USDT",
		"timestamp": time.Date(2023, 11, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Contains(t, op.SignalTags, "cycle_favorable")
	assert.Greater(t, op.Score, 55.0)
}

func TestCycles_TimestampFormats(t *testing.T) {
	m := NewCycles()
	ctx := context.Background()

	t.Run("RFC3339 string accepted", func(t *testing.T) {
		features, err := m.PrepareFeatures(ctx, experts.RawInput{
			"symbol":    "BTC-USDT",
			"timestamp": "2026-08-28T12:00:00Z",
		})
		require.NoError(t, err)

		phase := features.Get("lunar_phase", -1)
		assert.GreaterOrEqual(t, phase, 0.0)
		assert.Less(t, phase, 1.0)
	})

	t.Run("unparseable timestamp degrades to fallback", func(t *testing.T) {
		op, err := experts.SafeInfer(ctx, m, experts.RawInput{
			"symbol":    "BTC-USDT",
			"timestamp": "yesterday",
		})
		require.NoError(t, err)
		assert.True(t, op.IsFallback())
	})

	t.Run("absent timestamp aborts", func(t *testing.T) {
		_, err := experts.SafeInfer(ctx, m, experts.RawInput{"symbol": "BTC-USDT"})
		assert.ErrorIs(t, err, errors.ErrMissingInput)
	})
}

func TestCycles_NotTrainable(t *testing.T) {
	m := NewCycles()

	_, err := m.Retrain(context.Background(), nil, nil)
	assert.ErrorIs(t, err, errors.ErrNotTrainable)
}
