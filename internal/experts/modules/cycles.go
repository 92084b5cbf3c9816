package modules

import (
	"context"
	"fmt"
	"math"
	"time"

	"consilium/internal/domain/opinion"
	"consilium/internal/experts"
	"consilium/pkg/errors"
)

// Reference new moon for lunar phase computation (2000-01-06 18:14 UTC)
var lunarEpoch = time.Date(2000, 1, 6, 18, 14, 0, 0, time.UTC)

const lunarCycleDays = 29.530588853

// Seasonality score shifts per month (January = index 0)
var seasonalShift = [12]float64{3, 2, 1, 2, -4, -3, -2, -2, -1, 2, 4, 5}

// Cycles scores long-horizon calendar cycles: a seven-year cycle position,
// the lunar phase and monthly seasonality. Deliberately high uncertainty;
// this is a speculative alternative view, never a dominant voter.
type Cycles struct {
	experts.Base
}

// NewCycles creates the calendar-cycle expert.
func NewCycles() *Cycles {
	return &Cycles{
		Base: experts.NewBase(experts.Descriptor{
			Name:           "cycles",
			Version:        "1.0.0",
			Description:    "Calendar cycle scoring: seven-year cycle, lunar phase, monthly seasonality",
			RequiredFields: []string{"symbol", "timestamp"},
		}),
	}
}

// PrepareFeatures derives cycle positions from the analyzed timestamp.
func (c *Cycles) PrepareFeatures(ctx context.Context, raw experts.RawInput) (experts.Features, error) {
	ts, ok := raw.Time("timestamp")
	if !ok {
		return nil, errors.Wrap(errors.ErrInvalidInput, "timestamp must be time.Time or RFC3339")
	}

	days := ts.Sub(lunarEpoch).Hours() / 24
	phase := math.Mod(days/lunarCycleDays, 1)
	if phase < 0 {
		phase++
	}

	return experts.Features{
		"cycle_year":  float64(ts.Year() % 7),
		"lunar_phase": phase,
		"month":       float64(int(ts.Month()) - 1),
	}, nil
}

// Infer maps cycle positions onto the score scale.
func (c *Cycles) Infer(ctx context.Context, features experts.Features) *opinion.Opinion {
	cycleYear := int(features.Get("cycle_year", 0))
	phase := features.Get("lunar_phase", 0.5)
	month := int(features.Get("month", 0))
	if month < 0 || month > 11 {
		month = 0
	}

	cycleShift := 0.0
	switch cycleYear {
	case 6: // final year of the seven-year cycle
		cycleShift = -15
	case 0, 1: // early cycle
		cycleShift = 8
	}

	lunarShift := 5.0
	if phase >= 0.5 { // waning
		lunarShift = -5
	}

	score := opinion.ClampScore(50 + cycleShift + lunarShift + seasonalShift[month])

	tags := []string{opinion.TagNeutral}
	if score > 55 {
		tags = []string{"cycle_favorable"}
	} else if score < 45 {
		tags = []string{"cycle_adverse"}
	}
	if cycleYear == 6 {
		tags = append(tags, "seventh_year")
	}

	explanation := fmt.Sprintf(
		"cycle year %d/7, lunar phase %.2f, month shift %+.0f -> score %.1f",
		cycleYear, phase, seasonalShift[month], score,
	)

	// Long-horizon calendar signals carry little per-request information
	return opinion.New(c.Producer(), score, 0.6, tags, explanation, map[string]float64{
		"seven_year_cycle": 0.5,
		"seasonality":      0.3,
		"lunar_phase":      0.2,
	})
}
