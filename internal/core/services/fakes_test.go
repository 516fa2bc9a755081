package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeIdentity struct {
	identity *domain.Identity
}

func (f fakeIdentity) CurrentIdentity(ctx context.Context) (*domain.Identity, bool) {
	return f.identity, f.identity != nil
}

func identityOf(userID uuid.UUID) fakeIdentity {
	return fakeIdentity{identity: &domain.Identity{UserID: userID}}
}

// memStore keeps polls and votes in memory. Insert checks and writes under
// one lock, the way a unique constraint behaves in the real store.
type memStore struct {
	mu    sync.Mutex
	polls map[uuid.UUID]*domain.Poll
	votes []*domain.Vote
}

func newMemStore() *memStore {
	return &memStore{polls: make(map[uuid.UUID]*domain.Poll)}
}

func (m *memStore) Save(ctx context.Context, poll *domain.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *poll
	cp.Options = append([]domain.PollOption(nil), poll.Options...)
	m.polls[poll.ID] = &cp
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	poll, ok := m.polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	cp := *poll
	return &cp, nil
}

func (m *memStore) List(ctx context.Context, limit, offset int) ([]*domain.PollSummary, error) {
	return m.summaries(limit, offset, func(*domain.Poll) bool { return true }), nil
}

func (m *memStore) Search(ctx context.Context, limit, offset int, query string) ([]*domain.PollSummary, error) {
	return m.summaries(limit, offset, func(p *domain.Poll) bool { return p.Title == query }), nil
}

func (m *memStore) summaries(limit, offset int, keep func(*domain.Poll) bool) []*domain.PollSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.PollSummary
	for _, p := range m.polls {
		if !keep(p) {
			continue
		}
		var count int64
		for _, v := range m.votes {
			if v.PollID == p.ID {
				count++
			}
		}
		out = append(out, &domain.PollSummary{ID: p.ID, Title: p.Title, OwnerID: p.OwnerID, VoteCount: count, CreatedAt: p.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memStore) Insert(ctx context.Context, vote *domain.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	poll, ok := m.polls[vote.PollID]
	if !ok || !poll.HasOption(vote.OptionID) {
		return domain.ErrInvalidOption
	}
	for _, v := range m.votes {
		if v.PollID == vote.PollID && v.VoterID == vote.VoterID {
			return domain.ErrAlreadyVoted
		}
	}
	cp := *vote
	m.votes = append(m.votes, &cp)
	return nil
}

func (m *memStore) GetByVoter(ctx context.Context, pollID, voterID uuid.UUID) (*domain.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.votes {
		if v.PollID == pollID && v.VoterID == voterID {
			cp := *v
			return &cp, nil
		}
	}
	return nil, domain.ErrVoteNotFound
}

func (m *memStore) CountVotes(ctx context.Context, pollID uuid.UUID) ([]domain.OptionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	poll, ok := m.polls[pollID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.OptionResult, 0, len(poll.Options))
	for _, opt := range poll.Options {
		var count int64
		for _, v := range m.votes {
			if v.OptionID == opt.ID {
				count++
			}
		}
		out = append(out, domain.OptionResult{OptionID: opt.ID, Text: opt.Text, VoteCount: count})
	}
	return out, nil
}

func (m *memStore) voteRows(pollID, voterID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.votes {
		if v.PollID == pollID && v.VoterID == voterID {
			n++
		}
	}
	return n
}

// seedPoll stores a poll with the given option texts and returns it.
func (m *memStore) seedPoll(title string, options ...string) *domain.Poll {
	poll := &domain.Poll{ID: uuid.New(), Title: title, OwnerID: uuid.New(), CreatedAt: time.Now()}
	for i, text := range options {
		poll.Options = append(poll.Options, domain.PollOption{ID: uuid.New(), PollID: poll.ID, Text: text, Position: i})
	}
	_ = m.Save(context.Background(), poll)
	return poll
}

// blockingStore never answers before ctx is done.
type blockingStore struct{}

func (blockingStore) Save(ctx context.Context, poll *domain.Poll) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingStore) List(ctx context.Context, limit, offset int) ([]*domain.PollSummary, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingStore) Search(ctx context.Context, limit, offset int, query string) ([]*domain.PollSummary, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// fakeFeed hands out one event stream per Watch call. While fail is set
// every Watch fails with it, and while hollow is set every stream comes
// back already closed.
type fakeFeed struct {
	mu      sync.Mutex
	current chan domain.ChangeEvent
	watched chan struct{}
	watches int
	fail    error
	hollow  bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{watched: make(chan struct{}, 16)}
}

func (f *fakeFeed) Watch(ctx context.Context, table string) (<-chan domain.ChangeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watches++
	if f.fail != nil {
		return nil, f.fail
	}
	ch := make(chan domain.ChangeEvent, 16)
	if f.hollow {
		close(ch)
		return ch, nil
	}
	f.current = ch
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.current == ch {
			close(ch)
			f.current = nil
		}
	}()
	select {
	case f.watched <- struct{}{}:
	default:
	}
	return ch, nil
}

func (f *fakeFeed) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeFeed) watchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watches
}

func (f *fakeFeed) emit(ev domain.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != nil {
		f.current <- ev
	}
}

func (f *fakeFeed) drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != nil {
		close(f.current)
		f.current = nil
	}
}

var (
	_ ports.PollRepository   = (*memStore)(nil)
	_ ports.VoteRepository   = (*memStore)(nil)
	_ ports.ResultRepository = (*memStore)(nil)
	_ ports.PollRepository   = blockingStore{}
	_ ports.ChangeFeed       = (*fakeFeed)(nil)
)
