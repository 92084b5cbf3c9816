package consensus

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"consilium/internal/adapters/redis"
	"consilium/pkg/errors"
	"consilium/pkg/logger"
)

// CacheConfig contains configuration for the latest-decision cache
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// DefaultCacheConfig returns default configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: true,
		TTL:     5 * time.Minute,
	}
}

// LatestDecision is the cached summary of the most recent run for a symbol.
// Dashboards and bots read this instead of replaying history.
type LatestDecision struct {
	RunID             string    `json:"run_id"`
	Symbol            string    `json:"symbol"`
	FinalScore        float64   `json:"final_score"`
	Signal            string    `json:"signal"`
	TotalUncertainty  float64   `json:"total_uncertainty"`
	ConsensusStrength float64   `json:"consensus_strength"`
	Conflicts         []string  `json:"conflicts,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Cache stores the latest consensus decision per symbol in Redis
type Cache struct {
	config CacheConfig
	client *redis.Client
	log    *logger.Logger
}

// NewCache creates a latest-decision cache
func NewCache(config CacheConfig, client *redis.Client) *Cache {
	return &Cache{
		config: config,
		client: client,
		log:    logger.Get().With("component", "consensus_cache"),
	}
}

// SetLatest stores the run summary for its symbol
func (c *Cache) SetLatest(ctx context.Context, run *Run) error {
	if !c.config.Enabled {
		return nil
	}

	decision := LatestDecision{
		RunID:             run.ID.String(),
		Symbol:            run.Symbol,
		FinalScore:        run.Result.FinalScore,
		Signal:            string(run.Signal),
		TotalUncertainty:  run.Result.TotalUncertainty,
		ConsensusStrength: run.Result.ConsensusStrength,
		Conflicts:         run.Result.Conflicts,
		Timestamp:         run.FinishedAt,
	}

	if err := c.client.Set(ctx, c.key(run.Symbol), decision, c.config.TTL); err != nil {
		return errors.Wrap(err, "failed to cache latest decision")
	}

	c.log.Debugw("Cached latest decision", "symbol", run.Symbol, "ttl", c.config.TTL)
	return nil
}

// GetLatest retrieves the latest decision for a symbol. Returns nil on a miss.
func (c *Cache) GetLatest(ctx context.Context, symbol string) (*LatestDecision, error) {
	if !c.config.Enabled {
		return nil, nil
	}

	var decision LatestDecision
	err := c.client.Get(ctx, c.key(symbol), &decision)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get latest decision")
	}

	return &decision, nil
}

// Invalidate drops the cached decision for a symbol
func (c *Cache) Invalidate(ctx context.Context, symbol string) error {
	if !c.config.Enabled {
		return nil
	}
	return c.client.Delete(ctx, c.key(symbol))
}

func (c *Cache) key(symbol string) string {
	return fmt.Sprintf("consensus:latest:%s", symbol)
}
