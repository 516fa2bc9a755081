package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/lib/pq"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

const (
	votesPollVoterConstraint = "votes_poll_voter_key"
	votesOptionConstraint    = "votes_option_poll_fkey"

	uniqueViolation     pq.ErrorCode = "23505"
	foreignKeyViolation pq.ErrorCode = "23503"
)

// storageErr wraps err with msg, translating constraint violations into
// domain errors and connectivity problems into domain.ErrStorageUnavailable.
// A canceled context is the caller leaving, not an outage, and passes through.
func storageErr(msg string, err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == uniqueViolation && pqErr.Constraint == votesPollVoterConstraint:
			return domain.ErrAlreadyVoted
		case pqErr.Code == foreignKeyViolation && pqErr.Constraint == votesOptionConstraint:
			return domain.ErrInvalidOption
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
			// connection exception, operator intervention (includes query_canceled)
			return fmt.Errorf("%s: %w: %v", msg, domain.ErrStorageUnavailable, err)
		}
		return fmt.Errorf("%s: %w", msg, err)
	}

	if unavailable(err) {
		return fmt.Errorf("%s: %w: %v", msg, domain.ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func unavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
