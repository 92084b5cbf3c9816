package modules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"consilium/internal/domain/opinion"
	"consilium/internal/experts"
	"consilium/pkg/errors"
)

// Sentiment scores market mood from news, social and fear/greed inputs. All
// context fields are optional; the module defaults them to neutral and raises
// its uncertainty for every default it had to use.
type Sentiment struct {
	experts.Base

	mu   sync.RWMutex
	bias float64 // learned score offset from retraining
}

// NewSentiment creates the sentiment analysis expert.
func NewSentiment() *Sentiment {
	return &Sentiment{
		Base: experts.NewBase(experts.Descriptor{
			Name:           "sentiment",
			Version:        "1.0.0",
			Description:    "Market mood scoring from news, social and fear/greed inputs",
			RequiredFields: []string{"symbol"},
			Dependencies:   []string{"news feed", "social feed"},
		}),
	}
}

// PrepareFeatures reads the optional mood fields, defaulting absent ones to
// neutral and counting how many defaults were applied.
func (s *Sentiment) PrepareFeatures(ctx context.Context, raw experts.RawInput) (experts.Features, error) {
	defaults := 0.0
	read := func(field, feature string, def float64, features experts.Features) {
		if v, ok := raw.Float(field); ok {
			features[feature] = v
		} else {
			features[feature] = def
			defaults++
		}
	}

	features := experts.Features{}
	read("news_sentiment", "news", 0, features)     // [-1,1]
	read("social_sentiment", "social", 0, features) // [-1,1]
	read("fear_greed", "fear_greed", 50, features)  // [0,100]
	features["defaults_used"] = defaults

	if raw.Bool("simulated") {
		features["simulated"] = 1
	}

	return features, nil
}

// Infer maps mood inputs onto the score scale.
func (s *Sentiment) Infer(ctx context.Context, features experts.Features) *opinion.Opinion {
	news := clampSigned(features.Get("news", 0))
	social := clampSigned(features.Get("social", 0))
	fearGreed := features.Get("fear_greed", 50)
	defaults := features.Get("defaults_used", 0)
	simulated := features.Get("simulated", 0) > 0

	s.mu.RLock()
	bias := s.bias
	s.mu.RUnlock()

	score := opinion.ClampScore(s.rawScore(news, social, fearGreed) + bias)

	// Every defaulted input is information the module did not have
	uncertainty := 0.2 + 0.15*defaults
	if simulated {
		uncertainty += 0.05
	}

	tags := directionTags(score)
	if fearGreed >= 75 {
		tags = append(tags, "extreme_greed")
	} else if fearGreed <= 25 {
		tags = append(tags, "extreme_fear")
	}

	factors := map[string]float64{
		"news":       0.45,
		"social":     0.3,
		"fear_greed": 0.25,
	}
	if simulated {
		tags = append(tags, "simulated_data")
		factors["simulated_data"] = 1
	}

	explanation := fmt.Sprintf(
		"news %+.2f, social %+.2f, fear/greed %.0f (%.0f input(s) defaulted) -> score %.1f",
		news, social, fearGreed, defaults, score,
	)

	return opinion.New(s.Producer(), score, uncertainty, tags, explanation, factors)
}

// Retrain recalibrates the score offset against realized outcome scores. The
// learned bias is the damped mean residual between labels and raw scores,
// bounded so one bad batch cannot swing the module across a decision band.
func (s *Sentiment) Retrain(ctx context.Context, data []experts.RawInput, labels []float64) (*experts.RetrainReport, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "no training samples")
	}
	if len(labels) != len(data) {
		return nil, errors.Wrapf(errors.ErrInvalidInput,
			"got %d labels for %d samples", len(labels), len(data))
	}

	var residual float64
	for i, raw := range data {
		features, err := s.PrepareFeatures(ctx, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "sample %d", i)
		}
		predicted := s.rawScore(
			clampSigned(features.Get("news", 0)),
			clampSigned(features.Get("social", 0)),
			features.Get("fear_greed", 50),
		)
		residual += opinion.ClampScore(labels[i]) - predicted
	}

	bias := residual / float64(len(data)) * 0.5
	if bias > 10 {
		bias = 10
	} else if bias < -10 {
		bias = -10
	}

	s.mu.Lock()
	s.bias = bias
	s.mu.Unlock()

	return &experts.RetrainReport{
		Module:      s.Descriptor().Name,
		Status:      experts.RetrainStatusSuccess,
		SamplesUsed: len(data),
		Message:     fmt.Sprintf("score bias recalibrated to %+.2f", bias),
		TrainedAt:   time.Now().UTC(),
	}, nil
}

// rawScore is the uncalibrated sentiment score
func (s *Sentiment) rawScore(news, social, fearGreed float64) float64 {
	return 50 + 25*news + 15*social + 0.2*(fearGreed-50)
}

func clampSigned(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
