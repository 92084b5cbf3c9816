package modules

import (
	"context"
	"fmt"

	"github.com/markcheno/go-talib"

	"consilium/internal/domain/opinion"
	"consilium/internal/experts"
	"consilium/pkg/errors"
)

// Minimum candle history for the slowest indicator (MACD 26+9)
const minCandles = 40

// Technical scores momentum and trend from price candles using RSI, MACD,
// EMA alignment and rate of change.
type Technical struct {
	experts.Base
}

// NewTechnical creates the technical analysis expert.
func NewTechnical() *Technical {
	return &Technical{
		Base: experts.NewBase(experts.Descriptor{
			Name:           "technical",
			Version:        "1.0.0",
			Description:    "Momentum and trend scoring from price candles (RSI, MACD, EMA, ROC)",
			RequiredFields: []string{"symbol", "closes"},
			Dependencies:   []string{"go-talib"},
		}),
	}
}

// PrepareFeatures computes indicator values from the closing-price series.
func (t *Technical) PrepareFeatures(ctx context.Context, raw experts.RawInput) (experts.Features, error) {
	closes, ok := raw.Floats("closes")
	if !ok {
		return nil, errors.Wrap(errors.ErrInvalidInput, "closes must be a numeric series")
	}
	if len(closes) < minCandles {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "need at least %d candles, got %d", minCandles, len(closes))
	}

	rsi := talib.Rsi(closes, 14)
	_, _, hist := talib.Macd(closes, 12, 26, 9)
	emaFast := talib.Ema(closes, 9)
	emaSlow := talib.Ema(closes, 21)
	roc := talib.Roc(closes, 12)

	last := len(closes) - 1

	features := experts.Features{
		"rsi":        rsi[last],
		"macd_hist":  hist[last],
		"ema_fast":   emaFast[last],
		"ema_slow":   emaSlow[last],
		"roc":        roc[last],
		"last_close": closes[last],
	}
	if raw.Bool("simulated") {
		features["simulated"] = 1
	}

	return features, nil
}

// Infer maps the indicator snapshot onto the score scale.
func (t *Technical) Infer(ctx context.Context, features experts.Features) *opinion.Opinion {
	rsi := features.Get("rsi", 50)
	hist := features.Get("macd_hist", 0)
	emaFast := features.Get("ema_fast", 0)
	emaSlow := features.Get("ema_slow", 0)
	roc := features.Get("roc", 0)
	simulated := features.Get("simulated", 0) > 0

	rsiShift := (rsi - 50) * 0.3 // +-15

	macdShift := 0.0
	if hist > 0 {
		macdShift = 8
	} else if hist < 0 {
		macdShift = -8
	}

	trendShift := 0.0
	bullishIndicators := 0
	bearishIndicators := 0
	if emaFast > emaSlow {
		trendShift = 12
		bullishIndicators++
	} else if emaFast < emaSlow {
		trendShift = -12
		bearishIndicators++
	}
	if rsi > 50 {
		bullishIndicators++
	} else if rsi < 50 {
		bearishIndicators++
	}
	if hist > 0 {
		bullishIndicators++
	} else if hist < 0 {
		bearishIndicators++
	}

	rocShift := roc
	if rocShift > 10 {
		rocShift = 10
	} else if rocShift < -10 {
		rocShift = -10
	}

	score := opinion.ClampScore(50 + rsiShift + macdShift + trendShift + rocShift*0.5)

	// Disagreement among indicators raises uncertainty
	uncertainty := 0.2
	if bullishIndicators > 0 && bearishIndicators > 0 {
		uncertainty += 0.15
	}
	if simulated {
		uncertainty += 0.1
	}

	tags := directionTags(score)
	if rsi > 70 {
		tags = append(tags, "overbought")
	} else if rsi < 30 {
		tags = append(tags, "oversold")
	}

	factors := map[string]float64{
		"rsi":       0.35,
		"macd":      0.25,
		"ema_trend": 0.25,
		"roc":       0.15,
	}
	if simulated {
		tags = append(tags, "simulated_data")
		factors["simulated_data"] = 1
	}

	explanation := fmt.Sprintf(
		"RSI %.1f, MACD histogram %+.4f, EMA9/EMA21 %s, ROC %+.2f%% -> score %.1f",
		rsi, hist, trendWord(emaFast, emaSlow), roc, score,
	)

	return opinion.New(t.Producer(), score, uncertainty, tags, explanation, factors)
}

func trendWord(fast, slow float64) string {
	switch {
	case fast > slow:
		return "bullish cross"
	case fast < slow:
		return "bearish cross"
	default:
		return "flat"
	}
}

// directionTags bands a score into the shared signal tag vocabulary.
func directionTags(score float64) []string {
	switch {
	case score >= 70:
		return []string{"strong_bullish"}
	case score > 55:
		return []string{"bullish"}
	case score < 30:
		return []string{"strong_bearish"}
	case score < 45:
		return []string{"bearish"}
	default:
		return []string{opinion.TagNeutral}
	}
}
