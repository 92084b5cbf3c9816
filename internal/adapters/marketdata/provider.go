package marketdata

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"consilium/internal/experts"
)

// Provider supplies the raw input record for one analysis request. The core
// contract is agnostic to whether the data is live, cached or simulated.
type Provider interface {
	Snapshot(ctx context.Context, symbol string) (experts.RawInput, error)
}

// Simulated generates deterministic synthetic market snapshots: a seeded
// random walk per symbol and hour. Snapshots carry a "simulated" flag so
// modules can disclose the data source in their opinions.
type Simulated struct {
	candles int
}

// NewSimulated creates a simulated provider.
func NewSimulated() *Simulated {
	return &Simulated{candles: 120}
}

// Snapshot builds a synthetic raw input for a symbol. Deterministic for a
// given symbol within the same hour.
func (s *Simulated) Snapshot(ctx context.Context, symbol string) (experts.RawInput, error) {
	now := time.Now().UTC()
	rng := rand.New(rand.NewSource(seed(symbol, now)))

	base := 10 + rng.Float64()*50000
	drift := (rng.Float64() - 0.5) * 0.004 // per-candle trend bias

	closes := make([]float64, s.candles)
	highs := make([]float64, s.candles)
	lows := make([]float64, s.candles)

	price := base
	for i := 0; i < s.candles; i++ {
		price *= 1 + drift + (rng.Float64()-0.5)*0.02
		if price <= 0 {
			price = base
		}
		spread := price * (0.001 + rng.Float64()*0.008)
		closes[i] = price
		highs[i] = price + spread
		lows[i] = math.Max(price-spread, 0.01)
	}

	return experts.RawInput{
		"symbol":           symbol,
		"timestamp":        now,
		"closes":           closes,
		"highs":            highs,
		"lows":             lows,
		"news_sentiment":   rng.Float64()*2 - 1, // [-1,1]
		"social_sentiment": rng.Float64()*2 - 1,
		"fear_greed":       math.Floor(rng.Float64() * 101), // [0,100]
		"simulated":        true,
	}, nil
}

// seed derives a stable per-symbol, per-hour seed.
func seed(symbol string, now time.Time) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return int64(h.Sum64()^uint64(now.Truncate(time.Hour).Unix())) & math.MaxInt64
}
