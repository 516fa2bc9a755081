package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

type ResultRepository interface {
	// CountVotes returns every option of the poll in creation order with the
	// number of votes referencing it, zero included.
	CountVotes(ctx context.Context, pollID uuid.UUID) ([]domain.OptionResult, error)
}

type ResultService interface {
	ComputeResults(ctx context.Context, pollID uuid.UUID) (*domain.PollResults, error)
	// Follow delivers fresh results once immediately and again after every
	// change signal for the poll, until the subscription is cancelled or ctx
	// is done.
	Follow(ctx context.Context, pollID uuid.UUID, onResults func(*domain.PollResults, error)) (Subscription, error)
}
