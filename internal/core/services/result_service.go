package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type resultService struct {
	repo    ports.ResultRepository
	live    ports.LiveChannel
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewResultService(repo ports.ResultRepository, live ports.LiveChannel, timeout time.Duration, log logrus.FieldLogger) ports.ResultService {
	return &resultService{
		repo:    repo,
		live:    live,
		timeout: timeout,
		log:     log,
	}
}

// ComputeResults counts the votes of a poll from scratch. Nothing is cached
// between calls.
func (s *resultService) ComputeResults(ctx context.Context, pollID uuid.UUID) (*domain.PollResults, error) {
	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	options, err := s.repo.CountVotes(ctx, pollID)
	if err != nil {
		return nil, storageError(err)
	}
	if len(options) == 0 {
		// every poll has at least two options
		return nil, domain.ErrPollNotFound
	}

	return domain.NewPollResults(pollID, options, time.Now()), nil
}

func (s *resultService) Follow(ctx context.Context, pollID uuid.UUID, onResults func(*domain.PollResults, error)) (ports.Subscription, error) {
	initial, err := s.ComputeResults(ctx, pollID)
	if err != nil {
		return nil, err
	}
	onResults(initial, nil)

	last := initial
	// last is cleared after every error so the next good snapshot is always
	// delivered, even when its counts did not change.
	recompute := func(feedErr error) {
		if ctx.Err() != nil {
			return
		}
		if feedErr != nil {
			last = nil
			onResults(nil, feedErr)
			return
		}
		results, err := s.ComputeResults(ctx, pollID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.WithError(err).WithField("poll_id", pollID).Warn("failed to recompute results")
			last = nil
			onResults(nil, err)
			return
		}
		if sameCounts(last, results) {
			return
		}
		last = results
		onResults(results, nil)
	}

	f := &follower{
		inner: s.live.Subscribe(pollID, recompute),
		stop:  make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			f.Cancel()
		case <-f.stop:
		}
	}()
	return f, nil
}

type follower struct {
	inner ports.Subscription
	stop  chan struct{}
	once  sync.Once
}

func (f *follower) Cancel() {
	f.once.Do(func() {
		close(f.stop)
		f.inner.Cancel()
	})
}

func sameCounts(a, b *domain.PollResults) bool {
	if a == nil || b == nil {
		return false
	}
	return slices.EqualFunc(a.Options, b.Options, func(x, y domain.OptionResult) bool {
		return x.OptionID == y.OptionID && x.VoteCount == y.VoteCount
	})
}
