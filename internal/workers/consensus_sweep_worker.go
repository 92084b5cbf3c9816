package workers

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"consilium/internal/adapters/marketdata"
	consensusservice "consilium/internal/services/consensus"
	"consilium/pkg/logger"
)

// ConsensusSweepWorker periodically evaluates consensus for a configured set
// of symbols. Symbol sweeps are rate limited so a large watchlist cannot
// stampede the data provider.
type ConsensusSweepWorker struct {
	service  *consensusservice.Service
	provider marketdata.Provider
	symbols  []string
	interval time.Duration
	limiter  *rate.Limiter
	log      *logger.Logger
}

// NewConsensusSweepWorker creates a new sweep worker.
func NewConsensusSweepWorker(
	service *consensusservice.Service,
	provider marketdata.Provider,
	symbols []string,
	interval time.Duration,
	perSecond float64,
	burst int,
) *ConsensusSweepWorker {
	return &ConsensusSweepWorker{
		service:  service,
		provider: provider,
		symbols:  symbols,
		interval: interval,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		log:      logger.Get().With("component", "consensus_sweep_worker"),
	}
}

// Run starts the sweep loop.
func (w *ConsensusSweepWorker) Run(ctx context.Context) error {
	w.log.Infow("Consensus sweep worker started",
		"symbols", len(w.symbols),
		"interval", w.interval,
	)

	// Run immediately on startup
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)

		case <-ctx.Done():
			w.log.Info("Consensus sweep worker stopped")
			return ctx.Err()
		}
	}
}

// sweep runs consensus for each symbol. Per-symbol failures are logged and
// skipped; one bad symbol must not starve the rest of the watchlist.
func (w *ConsensusSweepWorker) sweep(ctx context.Context) {
	for _, symbol := range w.symbols {
		if err := w.limiter.Wait(ctx); err != nil {
			return // context canceled
		}

		raw, err := w.provider.Snapshot(ctx, symbol)
		if err != nil {
			w.log.Errorf("Snapshot failed for %s: %v", symbol, err)
			continue
		}

		run, err := w.service.Run(ctx, raw)
		if err != nil {
			w.log.Errorf("Consensus run failed for %s: %v", symbol, err)
			continue
		}

		w.log.Infow("Sweep decision",
			"symbol", symbol,
			"signal", run.Signal,
			"final_score", run.Result.FinalScore,
		)
	}
}
