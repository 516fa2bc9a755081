package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

// ChangeFeed streams row changes of a table. The stream is closed when ctx
// is done or the feed gives up.
type ChangeFeed interface {
	Watch(ctx context.Context, table string) (<-chan domain.ChangeEvent, error)
}

type Subscription interface {
	Cancel()
}

type LiveChannel interface {
	// Subscribe calls onChange with nil whenever the votes of pollID may
	// have changed, and with domain.ErrChannelDisconnected while changes
	// cannot be observed.
	Subscribe(pollID uuid.UUID, onChange func(err error)) Subscription
}
