package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
	"github.com/vncsmyrnk/livepoll/internal/metrics"
)

const (
	VotesTable = "votes"

	defaultRetryMin = 500 * time.Millisecond
	defaultRetryMax = 30 * time.Second
)

// LiveService fans change events of the votes table out to per-poll
// subscribers. Signals carry no payload: a subscriber is expected to
// recompute from the store every time it is called with a nil error.
type LiveService struct {
	feed     ports.ChangeFeed
	table    string
	log      logrus.FieldLogger
	retryMin time.Duration
	retryMax time.Duration

	mu      sync.Mutex
	nextID  uint64
	subs    map[uuid.UUID]map[uint64]*subscription
	feedErr error
}

func NewLiveService(feed ports.ChangeFeed, log logrus.FieldLogger) *LiveService {
	return &LiveService{
		feed:     feed,
		table:    VotesTable,
		log:      log,
		retryMin: defaultRetryMin,
		retryMax: defaultRetryMax,
		subs:     make(map[uuid.UUID]map[uint64]*subscription),
	}
}

// Subscribe registers onChange for pollID. onChange runs once right away and
// then after every change, always on the subscription's own goroutine and
// never concurrently with itself. Signals that arrive while onChange is
// running are folded into one more call carrying the latest feed state.
// While the feed is down onChange gets domain.ErrChannelDisconnected.
func (s *LiveService) Subscribe(pollID uuid.UUID, onChange func(error)) ports.Subscription {
	sub := &subscription{
		live:     s,
		pollID:   pollID,
		onChange: onChange,
		pending:  make(chan error, 1),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.nextID++
	sub.id = s.nextID
	if s.subs[pollID] == nil {
		s.subs[pollID] = make(map[uint64]*subscription)
	}
	s.subs[pollID][sub.id] = sub
	sub.signal(s.feedErr)
	s.mu.Unlock()

	metrics.LiveSubscriptions.Inc()
	go sub.loop()
	return sub
}

// Run consumes the change feed until ctx is done. Every time the feed is
// (re)established all subscribers are signalled, since changes made while
// nobody was listening are not replayed. Subscribers are told when the feed
// goes down.
func (s *LiveService) Run(ctx context.Context) error {
	backoff := s.retryMin
	for {
		events, err := s.feed.Watch(ctx, s.table)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.markDown()
			s.log.WithError(err).WithField("retry_in", backoff).Warn("failed to watch change feed")
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, s.retryMax)
			continue
		}

		s.resync()
		if s.consume(events) {
			// the stream delivered something, so it was healthy for a while
			backoff = s.retryMin
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.markDown()
		s.log.WithError(domain.ErrChannelDisconnected).WithField("retry_in", backoff).Warn("change feed closed, watching again")
		if !sleepCtx(ctx, backoff) {
			return ctx.Err()
		}
		backoff = min(backoff*2, s.retryMax)
	}
}

// consume reports whether the stream carried at least one event.
func (s *LiveService) consume(events <-chan domain.ChangeEvent) bool {
	received := false
	for ev := range events {
		received = true
		metrics.ChangeFeedEvents.WithLabelValues(ev.Kind.String()).Inc()

		switch ev.Kind {
		case domain.ChangeInsert:
			s.notify(ev.PollID)
		case domain.ChangeDisconnected:
			s.log.WithError(domain.ErrChannelDisconnected).Warn("change feed lost its connection")
			s.markDown()
		case domain.ChangeReconnected:
			s.log.Info("change feed reconnected, refreshing all subscribers")
			s.resync()
		}
	}
	return received
}

func (s *LiveService) notify(pollID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs[pollID] {
		sub.signal(s.feedErr)
	}
}

// markDown tells every subscriber that changes can no longer be observed.
// Only the transition is broadcast.
func (s *LiveService) markDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feedErr != nil {
		return
	}
	s.feedErr = domain.ErrChannelDisconnected
	s.signalAll()
}

// resync marks the feed healthy and asks every subscriber to recompute.
func (s *LiveService) resync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedErr = nil
	s.signalAll()
}

func (s *LiveService) signalAll() {
	for _, subs := range s.subs {
		for _, sub := range subs {
			sub.signal(s.feedErr)
		}
	}
}

func (s *LiveService) remove(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subs[sub.pollID]
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(s.subs, sub.pollID)
	}
}

func (s *LiveService) subscriberCount(pollID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[pollID])
}

type subscription struct {
	live     *LiveService
	pollID   uuid.UUID
	id       uint64
	onChange func(error)
	pending  chan error
	done     chan struct{}
	once     sync.Once
}

// signal leaves err as the one pending state, replacing an older one.
// Callers hold live.mu.
func (sub *subscription) signal(err error) {
	for {
		select {
		case sub.pending <- err:
			return
		default:
		}
		select {
		case <-sub.pending:
		default:
		}
	}
}

func (sub *subscription) loop() {
	for {
		select {
		case <-sub.done:
			return
		case err := <-sub.pending:
			select {
			case <-sub.done:
				return
			default:
			}
			sub.onChange(err)
		}
	}
}

// Cancel stops delivery. It is safe to call more than once and from inside
// onChange.
func (sub *subscription) Cancel() {
	sub.once.Do(func() {
		close(sub.done)
		sub.live.remove(sub)
		metrics.LiveSubscriptions.Dec()
	})
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
