package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "consilium/internal/consensus"
	"consilium/internal/domain/opinion"
	"consilium/internal/experts"
	"consilium/pkg/errors"
)

// fixedModule emits a predetermined opinion, optionally after a delay or via
// a panic, so tests can script every degradation path.
type fixedModule struct {
	experts.Base
	score       float64
	uncertainty float64
	delay       time.Duration
	explode     bool
}

func newFixed(name string, score, uncertainty float64, required ...string) *fixedModule {
	return &fixedModule{
		Base: experts.NewBase(experts.Descriptor{
			Name:           name,
			Version:        "0.1.0",
			RequiredFields: required,
		}),
		score:       score,
		uncertainty: uncertainty,
	}
}

func (f *fixedModule) PrepareFeatures(ctx context.Context, raw experts.RawInput) (experts.Features, error) {
	return experts.Features{}, nil
}

func (f *fixedModule) Infer(ctx context.Context, features experts.Features) *opinion.Opinion {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.explode {
		panic("scripted failure")
	}
	return opinion.New(f.Producer(), f.score, f.uncertainty, []string{"test"}, "fixed opinion", nil)
}

// trainableModule adds a scripted retrain hook on top of fixedModule.
type trainableModule struct {
	*fixedModule
}

func (m *trainableModule) Retrain(ctx context.Context, data []experts.RawInput, labels []float64) (*experts.RetrainReport, error) {
	return &experts.RetrainReport{
		Module:      m.Descriptor().Name,
		Status:      experts.RetrainStatusSuccess,
		SamplesUsed: len(data),
		TrainedAt:   time.Now().UTC(),
	}, nil
}

func newService(t *testing.T, cfg Config, modules ...experts.Module) *Service {
	t.Helper()

	registry := experts.NewRegistry()
	for _, m := range modules {
		require.NoError(t, registry.Register(m))
	}

	return NewService(cfg, Deps{
		Registry: registry,
		Engine:   core.NewEngine(core.DefaultConfig()),
	})
}

func TestService_Run(t *testing.T) {
	svc := newService(t, Config{Parallel: false},
		newFixed("technical", 70, 0.1),
		newFixed("sentiment", 60, 0.2),
		newFixed("cycles", 50, 0.3),
	)

	run, err := svc.Run(context.Background(), experts.RawInput{"symbol": "BTC-USDT"})
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, "BTC-USDT", run.Symbol)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	require.Len(t, run.Opinions, 3)
	assert.Equal(t, "technical", run.Opinions[0].ProducedBy.Name)
	assert.Equal(t, "sentiment", run.Opinions[1].ProducedBy.Name)
	assert.Equal(t, "cycles", run.Opinions[2].ProducedBy.Name)

	require.NotNil(t, run.Result)
	assert.Greater(t, run.Result.FinalScore, 50.0)
	assert.Equal(t, svc.deps.Engine.Signal(run.Result.FinalScore), run.Signal)
}

func TestService_RunParallelPreservesRegistrationOrder(t *testing.T) {
	slow := newFixed("slow", 70, 0.1)
	slow.delay = 30 * time.Millisecond
	mid := newFixed("mid", 60, 0.1)
	mid.delay = 10 * time.Millisecond

	svc := newService(t, Config{Parallel: true}, slow, mid, newFixed("fast", 50, 0.1))

	run, err := svc.Run(context.Background(), experts.RawInput{"symbol": "BTC-USDT"})
	require.NoError(t, err)

	require.Len(t, run.Opinions, 3)
	assert.Equal(t, "slow", run.Opinions[0].ProducedBy.Name)
	assert.Equal(t, "mid", run.Opinions[1].ProducedBy.Name)
	assert.Equal(t, "fast", run.Opinions[2].ProducedBy.Name)
}

func TestService_RunMissingRequiredInputAborts(t *testing.T) {
	svc := newService(t, Config{Parallel: false},
		newFixed("technical", 70, 0.1, "symbol", "closes"),
		newFixed("sentiment", 60, 0.2, "symbol"),
	)

	run, err := svc.Run(context.Background(), experts.RawInput{"symbol": "BTC-USDT"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingInput)
	assert.Nil(t, run)
}

func TestService_RunBrokenModuleContributesFallback(t *testing.T) {
	broken := newFixed("broken", 0, 0)
	broken.explode = true

	svc := newService(t, Config{Parallel: false},
		newFixed("technical", 70, 0.1),
		broken,
	)

	run, err := svc.Run(context.Background(), experts.RawInput{"symbol": "BTC-USDT"})
	require.NoError(t, err, "an analytic failure must not abort the run")

	require.Len(t, run.Opinions, 2)
	assert.False(t, run.Opinions[0].IsFallback())
	assert.True(t, run.Opinions[1].IsFallback())
	assert.Equal(t, 0.0, run.Result.ModuleWeights["broken"], "fallback votes carry no weight")
	assert.Contains(t, run.Result.Explanations[len(run.Result.Explanations)-1], "fallback")
}

func TestService_RunModuleTimeoutDegradesToFallback(t *testing.T) {
	stuck := newFixed("stuck", 90, 0.1)
	stuck.delay = 200 * time.Millisecond

	svc := newService(t, Config{Parallel: true, ModuleTimeout: 30 * time.Millisecond},
		newFixed("technical", 70, 0.1),
		stuck,
	)

	run, err := svc.Run(context.Background(), experts.RawInput{"symbol": "BTC-USDT"})
	require.NoError(t, err)

	require.Len(t, run.Opinions, 2)
	assert.True(t, run.Opinions[1].IsFallback())
	assert.Contains(t, run.Opinions[1].Explanation, "timed out")
}

func TestService_RunWithoutModules(t *testing.T) {
	svc := newService(t, Config{})

	_, err := svc.Run(context.Background(), experts.RawInput{"symbol": "BTC-USDT"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoOpinions)
}

func TestService_AnalyzeEnforcesMandatoryCount(t *testing.T) {
	svc := newService(t, Config{},
		newFixed("technical", 70, 0.1),
		newFixed("sentiment", 60, 0.2),
	)

	producer := opinion.Producer{Name: "technical", Version: "0.1.0"}
	one := []*opinion.Opinion{opinion.New(producer, 70, 0.1, nil, "only one", nil)}

	_, err := svc.Analyze(one)
	assert.ErrorIs(t, err, errors.ErrIncompleteConsensus)

	two := append(one, opinion.New(opinion.Producer{Name: "sentiment"}, 60, 0.2, nil, "second", nil))
	result, err := svc.Analyze(two)
	require.NoError(t, err)
	// (70*0.9 + 60*0.8) / 1.7
	assert.InDelta(t, 65.29, result.FinalScore, 0.01)
}

func TestService_Retrain(t *testing.T) {
	trainable := &trainableModule{fixedModule: newFixed("sentiment", 60, 0.2)}

	svc := newService(t, Config{},
		newFixed("technical", 70, 0.1),
		trainable,
	)
	ctx := context.Background()

	t.Run("unknown module", func(t *testing.T) {
		_, err := svc.Retrain(ctx, "nope", nil, nil)
		assert.ErrorIs(t, err, errors.ErrModuleNotFound)
	})

	t.Run("untrainable module", func(t *testing.T) {
		_, err := svc.Retrain(ctx, "technical", nil, nil)
		assert.ErrorIs(t, err, errors.ErrNotTrainable)
	})

	t.Run("trainable module", func(t *testing.T) {
		report, err := svc.Retrain(ctx, "sentiment", []experts.RawInput{{"symbol": "BTC-USDT"}}, []float64{70})
		require.NoError(t, err)
		assert.Equal(t, experts.RetrainStatusSuccess, report.Status)
		assert.Equal(t, 1, report.SamplesUsed)
	})
}
