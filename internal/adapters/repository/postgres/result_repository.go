package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

type resultRepository struct {
	db *sql.DB
}

func NewResultRepository(db *sql.DB) ports.ResultRepository {
	return &resultRepository{
		db: db,
	}
}

func (r *resultRepository) CountVotes(ctx context.Context, pollID uuid.UUID) ([]domain.OptionResult, error) {
	query := `
		SELECT o.id, o.text, COUNT(v.id)
		FROM poll_options o
		LEFT JOIN votes v ON v.option_id = o.id AND v.poll_id = o.poll_id
		WHERE o.poll_id = $1
		GROUP BY o.id, o.text, o.position
		ORDER BY o.position
	`

	rows, err := r.db.QueryContext(ctx, query, pollID)
	if err != nil {
		return nil, storageErr("failed to count votes", err)
	}
	defer rows.Close()

	var results []domain.OptionResult
	for rows.Next() {
		var res domain.OptionResult
		if err := rows.Scan(&res.OptionID, &res.Text, &res.VoteCount); err != nil {
			return nil, storageErr("failed to scan vote count", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("error iterating vote counts", err)
	}

	return results, nil
}
