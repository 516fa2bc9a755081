package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
	"github.com/vncsmyrnk/livepoll/internal/metrics"
)

const pollsPerPage = 10

type pollService struct {
	repo     ports.PollRepository
	identity ports.IdentityProvider
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewPollService(repo ports.PollRepository, identity ports.IdentityProvider, timeout time.Duration, log logrus.FieldLogger) ports.PollService {
	return &pollService{
		repo:     repo,
		identity: identity,
		timeout:  timeout,
		log:      log,
	}
}

func (s *pollService) Create(ctx context.Context, input ports.CreatePollInput) (*domain.Poll, error) {
	caller, ok := s.identity.CurrentIdentity(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}

	pollID := uuid.New()
	now := time.Now()

	poll := &domain.Poll{
		ID:        pollID,
		Title:     title,
		OwnerID:   caller.UserID,
		CreatedAt: now,
	}

	for _, optText := range input.Options {
		optText = strings.TrimSpace(optText)
		if optText == "" {
			continue
		}
		poll.Options = append(poll.Options, domain.PollOption{
			ID:        uuid.New(),
			PollID:    pollID,
			Text:      optText,
			Position:  len(poll.Options),
			CreatedAt: now,
		})
	}

	if len(poll.Options) < domain.MinPollOptions {
		return nil, fmt.Errorf("%w: at least %d non-empty options are required", domain.ErrInvalidInput, domain.MinPollOptions)
	}

	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repo.Save(ctx, poll); err != nil {
		return nil, storageError(err)
	}

	metrics.PollsCreated.Inc()
	s.log.WithFields(logrus.Fields{"poll_id": poll.ID, "user_id": caller.UserID}).Info("poll created")
	return poll, nil
}

func (s *pollService) GetPoll(ctx context.Context, id string) (*domain.Poll, error) {
	pollID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrInvalidPollID
	}

	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	poll, err := s.repo.GetByID(ctx, pollID)
	return poll, storageError(err)
}

func (s *pollService) ListPolls(ctx context.Context, input ports.ListPollsInput) ([]*domain.PollSummary, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pollsPerPage

	ctx, cancel := withStorageTimeout(ctx, s.timeout)
	defer cancel()

	var (
		polls []*domain.PollSummary
		err   error
	)
	if q := strings.TrimSpace(input.Query); q != "" {
		polls, err = s.repo.Search(ctx, pollsPerPage, offset, q)
	} else {
		polls, err = s.repo.List(ctx, pollsPerPage, offset)
	}
	if err != nil {
		return nil, storageError(err)
	}
	if polls == nil {
		polls = []*domain.PollSummary{}
	}
	return polls, nil
}
