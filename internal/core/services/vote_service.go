package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
	"github.com/vncsmyrnk/livepoll/internal/metrics"
)

type voteService struct {
	pollRepo ports.PollRepository
	voteRepo ports.VoteRepository
	identity ports.IdentityProvider
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewVoteService(pollRepo ports.PollRepository, voteRepo ports.VoteRepository, identity ports.IdentityProvider, timeout time.Duration, log logrus.FieldLogger) ports.VoteService {
	return &voteService{
		pollRepo: pollRepo,
		voteRepo: voteRepo,
		identity: identity,
		timeout:  timeout,
		log:      log,
	}
}

// Vote records the caller's single vote on a poll. Uniqueness per
// (poll, voter) is left to the store's constraint, so of several concurrent
// submissions exactly one succeeds and the rest get domain.ErrAlreadyVoted.
func (s *voteService) Vote(ctx context.Context, input ports.VoteInput) (*domain.Vote, error) {
	vote, err := s.vote(ctx, input)
	metrics.Votes.WithLabelValues(voteOutcome(err)).Inc()
	return vote, err
}

func (s *voteService) vote(ctx context.Context, input ports.VoteInput) (*domain.Vote, error) {
	caller, ok := s.identity.CurrentIdentity(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	poll, err := s.pollRepo.GetByID(ctx, input.PollID)
	if err != nil {
		return nil, storageError(err)
	}

	if !poll.HasOption(input.OptionID) {
		return nil, domain.ErrInvalidOption
	}

	vote := &domain.Vote{
		ID:        uuid.New(),
		PollID:    input.PollID,
		OptionID:  input.OptionID,
		VoterID:   caller.UserID,
		CreatedAt: time.Now(),
	}

	if err := s.voteRepo.Insert(ctx, vote); err != nil {
		return nil, storageError(err)
	}

	s.log.WithFields(logrus.Fields{"poll_id": vote.PollID, "user_id": vote.VoterID}).Debug("vote recorded")
	return vote, nil
}

func (s *voteService) MyVote(ctx context.Context, pollID uuid.UUID) (*domain.Vote, error) {
	caller, ok := s.identity.CurrentIdentity(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	vote, err := s.voteRepo.GetByVoter(ctx, pollID, caller.UserID)
	return vote, storageError(err)
}

func voteOutcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, domain.ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, domain.ErrInvalidOption):
		return "invalid_option"
	case errors.Is(err, domain.ErrPollNotFound):
		return "poll_not_found"
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}
