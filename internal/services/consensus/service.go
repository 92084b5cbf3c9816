package consensus

import (
	"context"
	"time"

	"github.com/google/uuid"

	core "consilium/internal/consensus"
	domain "consilium/internal/domain/consensus"
	"consilium/internal/domain/opinion"
	"consilium/internal/events"
	"consilium/internal/experts"
	"consilium/internal/metrics"
	"consilium/pkg/errors"
	"consilium/pkg/logger"
)

// Run is one completed consensus evaluation for a raw input record.
type Run struct {
	ID         uuid.UUID
	Symbol     string
	Result     *core.Result
	Signal     core.Signal
	Opinions   []*opinion.Opinion
	StartedAt  time.Time
	FinishedAt time.Time
}

// Deps wires the service's collaborators. Registry and Engine are required;
// the rest degrade gracefully when nil.
type Deps struct {
	Registry  *experts.Registry
	Engine    *core.Engine
	Cache     *Cache            // optional latest-decision cache
	History   domain.Repository // optional run persistence
	Publisher *events.Publisher // optional event publishing
}

// Config controls module invocation.
type Config struct {
	// Parallel fans raw input out to modules concurrently. Safe because
	// modules share no mutable state within a request.
	Parallel bool

	// ModuleTimeout bounds one module's inference. A module that cannot
	// finish in time contributes a fallback opinion instead of blocking
	// the run; same degradation path as an internal failure.
	ModuleTimeout time.Duration
}

// DefaultConfig returns production invocation settings.
func DefaultConfig() Config {
	return Config{
		Parallel:      true,
		ModuleTimeout: 10 * time.Second,
	}
}

// Service fans a raw input record out to every registered module, collects
// one opinion per module, and aggregates them through the consensus engine.
type Service struct {
	cfg  Config
	deps Deps
	log  *logger.Logger
}

// NewService creates a consensus service.
func NewService(cfg Config, deps Deps) *Service {
	return &Service{
		cfg:  cfg,
		deps: deps,
		log:  logger.Get().With("component", "consensus_service"),
	}
}

// Run evaluates one raw input against every registered module and aggregates
// the opinions. Structural failures (no modules, missing required input)
// abort the run; analytic failures inside a module surface only as that
// module's fallback opinion.
func (s *Service) Run(ctx context.Context, raw experts.RawInput) (*Run, error) {
	started := time.Now().UTC()
	symbol := raw.Symbol()

	modules := s.deps.Registry.All()
	if len(modules) == 0 {
		metrics.ConsensusRuns.WithLabelValues("error").Inc()
		return nil, errors.Wrap(errors.ErrNoOpinions, "no modules registered")
	}

	opinions, err := s.collect(ctx, modules, raw)
	if err != nil {
		metrics.ConsensusRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	result, err := s.deps.Engine.Analyze(opinions, s.deps.Registry.Len())
	if err != nil {
		metrics.ConsensusRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	run := &Run{
		ID:         uuid.New(),
		Symbol:     symbol,
		Result:     result,
		Signal:     s.deps.Engine.Signal(result.FinalScore),
		Opinions:   opinions,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}

	s.observe(run)
	s.record(ctx, run)

	s.log.Infow("Consensus run completed",
		"run_id", run.ID,
		"symbol", symbol,
		"final_score", result.FinalScore,
		"signal", run.Signal,
		"consensus_strength", result.ConsensusStrength,
		"conflicts", len(result.Conflicts),
	)

	return run, nil
}

// Analyze is the lower-level entry point: aggregate hand-constructed opinions
// directly, still enforcing the mandatory contribution count.
func (s *Service) Analyze(opinions []*opinion.Opinion) (*core.Result, error) {
	return s.deps.Engine.Analyze(opinions, s.deps.Registry.Len())
}

// Retrain runs a module's recalibration hook and publishes the outcome.
// Maintenance operation, never part of the request path.
func (s *Service) Retrain(ctx context.Context, name string, data []experts.RawInput, labels []float64) (*experts.RetrainReport, error) {
	module, ok := s.deps.Registry.Get(name)
	if !ok {
		return nil, errors.Wrapf(errors.ErrModuleNotFound, "name %q", name)
	}

	report, err := module.Retrain(ctx, data, labels)
	if err != nil {
		return nil, err
	}

	if s.deps.Publisher != nil {
		pubErr := s.deps.Publisher.PublishRetrain(ctx, &events.RetrainEvent{
			Module:      report.Module,
			Status:      report.Status,
			SamplesUsed: report.SamplesUsed,
			Timestamp:   report.TrainedAt,
		})
		if pubErr != nil {
			s.log.Warnf("Failed to publish retrain event for %s: %v", name, pubErr)
		}
	}

	return report, nil
}

// collect gathers exactly one opinion per module, preserving registration
// order regardless of completion order.
func (s *Service) collect(ctx context.Context, modules []experts.Module, raw experts.RawInput) ([]*opinion.Opinion, error) {
	opinions := make([]*opinion.Opinion, len(modules))
	errs := make([]error, len(modules))

	if s.cfg.Parallel {
		done := make(chan int, len(modules))
		for i, m := range modules {
			go func(i int, m experts.Module) {
				opinions[i], errs[i] = s.invoke(ctx, m, raw)
				done <- i
			}(i, m)
		}
		for range modules {
			<-done
		}
	} else {
		for i, m := range modules {
			opinions[i], errs[i] = s.invoke(ctx, m, raw)
		}
	}

	// A missing required field is structural: abort the whole run with the
	// first such error in registration order.
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return opinions, nil
}

// invoke runs one module with the configured timeout. Timeout degrades to a
// fallback opinion rather than blocking the caller.
func (s *Service) invoke(ctx context.Context, m experts.Module, raw experts.RawInput) (*opinion.Opinion, error) {
	name := m.Descriptor().Name
	timer := time.Now()
	defer func() {
		metrics.ModuleInferenceDuration.WithLabelValues(name).Observe(time.Since(timer).Seconds())
	}()

	if s.cfg.ModuleTimeout <= 0 {
		return experts.SafeInfer(ctx, m, raw)
	}

	mctx, cancel := context.WithTimeout(ctx, s.cfg.ModuleTimeout)
	defer cancel()

	type outcome struct {
		op  *opinion.Opinion
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		op, err := experts.SafeInfer(mctx, m, raw)
		ch <- outcome{op, err}
	}()

	select {
	case out := <-ch:
		return out.op, out.err
	case <-mctx.Done():
		s.log.Warnf("Module %s timed out after %v", name, s.cfg.ModuleTimeout)
		return opinion.Fallback(m.Descriptor().Producer(), "inference timed out"), nil
	}
}

// observe updates run metrics.
func (s *Service) observe(run *Run) {
	metrics.ConsensusRuns.WithLabelValues("success").Inc()
	metrics.ConsensusDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
	if run.Symbol != "" {
		metrics.FinalScore.WithLabelValues(run.Symbol).Set(run.Result.FinalScore)
		metrics.ConsensusStrength.WithLabelValues(run.Symbol).Set(run.Result.ConsensusStrength)
	}
	metrics.ConflictsDetected.Add(float64(len(run.Result.Conflicts)))
	for _, op := range run.Opinions {
		if op.IsFallback() {
			metrics.FallbackOpinions.WithLabelValues(op.ProducedBy.Name).Inc()
		}
	}
}

// record persists, caches and publishes the run. All best-effort: the caller
// already has the in-process result and a storage hiccup must not fail it.
func (s *Service) record(ctx context.Context, run *Run) {
	if s.deps.History != nil {
		fallbacks := 0
		for _, op := range run.Opinions {
			if op.IsFallback() {
				fallbacks++
			}
		}
		err := s.deps.History.Insert(ctx, &domain.Record{
			ID:                run.ID,
			Symbol:            run.Symbol,
			FinalScore:        run.Result.FinalScore,
			Signal:            string(run.Signal),
			TotalUncertainty:  run.Result.TotalUncertainty,
			SignalStrength:    run.Result.SignalStrength,
			ConsensusStrength: run.Result.ConsensusStrength,
			ModulesUsed:       len(run.Opinions),
			ConflictCount:     len(run.Result.Conflicts),
			FallbackCount:     fallbacks,
			CreatedAt:         run.FinishedAt,
		})
		if err != nil {
			s.log.Warnf("Failed to persist consensus run %s: %v", run.ID, err)
		}
	}

	if s.deps.Cache != nil && run.Symbol != "" {
		if err := s.deps.Cache.SetLatest(ctx, run); err != nil {
			s.log.Warnf("Failed to cache consensus run %s: %v", run.ID, err)
		}
	}

	if s.deps.Publisher != nil {
		err := s.deps.Publisher.PublishDecision(ctx, &events.DecisionEvent{
			RunID:             run.ID,
			Symbol:            run.Symbol,
			FinalScore:        run.Result.FinalScore,
			Signal:            string(run.Signal),
			TotalUncertainty:  run.Result.TotalUncertainty,
			ConsensusStrength: run.Result.ConsensusStrength,
			ModulesUsed:       len(run.Opinions),
			Timestamp:         run.FinishedAt,
		})
		if err != nil {
			s.log.Warnf("Failed to publish decision event for %s: %v", run.Symbol, err)
		}

		if len(run.Result.Conflicts) > 0 {
			err := s.deps.Publisher.PublishConflicts(ctx, &events.ConflictEvent{
				RunID:     run.ID,
				Symbol:    run.Symbol,
				Conflicts: run.Result.Conflicts,
				Timestamp: run.FinishedAt,
			})
			if err != nil {
				s.log.Warnf("Failed to publish conflict event for %s: %v", run.Symbol, err)
			}
		}
	}
}
