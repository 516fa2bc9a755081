package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

const DefaultStorageTimeout = 5 * time.Second

// withStorageTimeout bounds a call to the poll store. A zero timeout keeps
// the caller's deadline only.
func withStorageTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// storageError makes sure a store call that ran out of time surfaces as
// domain.ErrStorageUnavailable, whatever the adapter returned.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return err
}
