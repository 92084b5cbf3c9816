package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"consilium/internal/adapters/kafka"
	"consilium/pkg/logger"
)

// DecisionEvent is published for every completed consensus run.
type DecisionEvent struct {
	RunID             uuid.UUID `json:"run_id"`
	Symbol            string    `json:"symbol"`
	FinalScore        float64   `json:"final_score"`
	Signal            string    `json:"signal"`
	TotalUncertainty  float64   `json:"total_uncertainty"`
	ConsensusStrength float64   `json:"consensus_strength"`
	ModulesUsed       int       `json:"modules_used"`
	Timestamp         time.Time `json:"timestamp"`
}

// ConflictEvent is published when a run detects module disagreement.
type ConflictEvent struct {
	RunID     uuid.UUID `json:"run_id"`
	Symbol    string    `json:"symbol"`
	Conflicts []string  `json:"conflicts"`
	Timestamp time.Time `json:"timestamp"`
}

// RetrainEvent is published after a module retrain completes.
type RetrainEvent struct {
	Module      string    `json:"module"`
	Status      string    `json:"status"`
	SamplesUsed int       `json:"samples_used"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher publishes consensus events to Kafka
type Publisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer *kafka.Producer) *Publisher {
	return &Publisher{
		producer: producer,
		log:      logger.Get().With("component", "event_publisher"),
	}
}

// PublishDecision publishes a consensus decision event
func (p *Publisher) PublishDecision(ctx context.Context, event *DecisionEvent) error {
	return p.producer.Publish(ctx, kafka.TopicDecisions, event.Symbol, event)
}

// PublishConflicts publishes a module disagreement event
func (p *Publisher) PublishConflicts(ctx context.Context, event *ConflictEvent) error {
	return p.producer.Publish(ctx, kafka.TopicConflicts, event.Symbol, event)
}

// PublishRetrain publishes a module retrain event
func (p *Publisher) PublishRetrain(ctx context.Context, event *RetrainEvent) error {
	return p.producer.Publish(ctx, kafka.TopicModuleRetrained, event.Module, event)
}
