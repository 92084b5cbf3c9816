package consensus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for consensus history access (PostgreSQL)
type Repository interface {
	Insert(ctx context.Context, record *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	ListRecent(ctx context.Context, symbol string, limit int) ([]Record, error)
	Summarize(ctx context.Context, symbol string, since time.Time) (*Summary, error)
}
