package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

const defaultPingInterval = 90 * time.Second

// ChangeFeed streams the NOTIFY payloads published by the row triggers of
// migration 004. Each Watch owns a dedicated listener connection.
type ChangeFeed struct {
	connStr      string
	minReconnect time.Duration
	maxReconnect time.Duration
	pingInterval time.Duration
	log          logrus.FieldLogger
}

func NewChangeFeed(connStr string, minReconnect, maxReconnect time.Duration, log logrus.FieldLogger) *ChangeFeed {
	return &ChangeFeed{
		connStr:      connStr,
		minReconnect: minReconnect,
		maxReconnect: maxReconnect,
		pingInterval: defaultPingInterval,
		log:          log,
	}
}

// ChannelFor is the NOTIFY channel the trigger of table publishes on.
func ChannelFor(table string) string {
	return table + "_changes"
}

// Watch listens on the channel of table. It fails if the first connection
// attempt fails; later connection losses are reported on the stream as
// ChangeDisconnected and ChangeReconnected while the listener retries.
func (f *ChangeFeed) Watch(ctx context.Context, table string) (<-chan domain.ChangeEvent, error) {
	channel := ChannelFor(table)
	log := f.log.WithField("channel", channel)

	stop := make(chan struct{})
	states := make(chan pq.ListenerEventType, 4)
	listener := pq.NewListener(f.connStr, f.minReconnect, f.maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.WithError(err).Warn("change feed connection event")
		}
		select {
		case states <- ev:
		case <-stop:
		}
	})

	abort := func() {
		close(stop)
		listener.Close()
	}

	listened := make(chan error, 1)
	go func() { listened <- listener.Listen(channel) }()

	for waiting := true; waiting; {
		select {
		case err := <-listened:
			if err != nil {
				abort()
				return nil, storageErr(fmt.Sprintf("failed to listen on %s", channel), err)
			}
			waiting = false
		case ev := <-states:
			if ev == pq.ListenerEventConnectionAttemptFailed {
				abort()
				return nil, fmt.Errorf("failed to connect change feed: %w", domain.ErrStorageUnavailable)
			}
		case <-ctx.Done():
			abort()
			return nil, ctx.Err()
		}
	}

	log.Info("listening for changes")

	events := make(chan domain.ChangeEvent)
	go f.forward(ctx, log, listener, states, stop, events)
	return events, nil
}

func (f *ChangeFeed) forward(ctx context.Context, log logrus.FieldLogger, listener *pq.Listener, states <-chan pq.ListenerEventType, stop chan struct{}, events chan<- domain.ChangeEvent) {
	defer close(events)
	defer listener.Close()
	defer close(stop)

	ticker := time.NewTicker(f.pingInterval)
	defer ticker.Stop()

	for {
		var ev domain.ChangeEvent
		select {
		case <-ctx.Done():
			return
		case n, ok := <-listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// sent after a reconnect, covered by ListenerEventReconnected
				continue
			}
			pollID, err := uuid.Parse(n.Extra)
			if err != nil {
				log.WithField("payload", n.Extra).Warn("ignoring malformed change notification")
				continue
			}
			ev = domain.ChangeEvent{Kind: domain.ChangeInsert, PollID: pollID}
		case st := <-states:
			switch st {
			case pq.ListenerEventDisconnected:
				ev = domain.ChangeEvent{Kind: domain.ChangeDisconnected}
			case pq.ListenerEventReconnected:
				ev = domain.ChangeEvent{Kind: domain.ChangeReconnected}
			default:
				continue
			}
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					log.WithError(err).Debug("change feed ping failed")
				}
			}()
			continue
		}

		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}
