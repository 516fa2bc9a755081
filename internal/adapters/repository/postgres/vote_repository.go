package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type voteRepository struct {
	db *sql.DB
}

func NewVoteRepository(db *sql.DB) ports.VoteRepository {
	return &voteRepository{
		db: db,
	}
}

// Insert relies on votes_poll_voter_key for one vote per voter and on
// votes_option_poll_fkey for the option belonging to the poll. There is no
// read before the write.
func (r *voteRepository) Insert(ctx context.Context, vote *domain.Vote) error {
	query := `
		INSERT INTO votes (id, poll_id, option_id, voter_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, vote.ID, vote.PollID, vote.OptionID, vote.VoterID, vote.CreatedAt)
	if err != nil {
		return storageErr("failed to save vote", err)
	}
	return nil
}

func (r *voteRepository) GetByVoter(ctx context.Context, pollID, voterID uuid.UUID) (*domain.Vote, error) {
	query := `
		SELECT id, poll_id, option_id, voter_id, created_at
		FROM votes
		WHERE poll_id = $1 AND voter_id = $2
	`
	var vote domain.Vote
	err := r.db.QueryRowContext(ctx, query, pollID, voterID).Scan(
		&vote.ID, &vote.PollID, &vote.OptionID, &vote.VoterID, &vote.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVoteNotFound
		}
		return nil, storageErr("failed to get vote", err)
	}
	return &vote, nil
}
