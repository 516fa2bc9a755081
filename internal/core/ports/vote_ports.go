package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

type VoteRepository interface {
	// Insert writes the vote in a single constrained statement. It returns
	// domain.ErrAlreadyVoted when the voter already has a vote on the poll
	// and domain.ErrInvalidOption when the option is not part of the poll.
	Insert(ctx context.Context, vote *domain.Vote) error
	GetByVoter(ctx context.Context, pollID, voterID uuid.UUID) (*domain.Vote, error)
}

type VoteInput struct {
	PollID   uuid.UUID
	OptionID uuid.UUID
}

type VoteService interface {
	Vote(ctx context.Context, input VoteInput) (*domain.Vote, error)
	MyVote(ctx context.Context, pollID uuid.UUID) (*domain.Vote, error)
}
