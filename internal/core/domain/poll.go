package domain

import (
	"time"

	"github.com/google/uuid"
)

const MinPollOptions = 2

type Poll struct {
	ID        uuid.UUID    `json:"id"`
	Title     string       `json:"title"`
	OwnerID   uuid.UUID    `json:"owner_id"`
	Options   []PollOption `json:"options"`
	CreatedAt time.Time    `json:"created_at"`
}

// PollOption belongs to exactly one poll. Position is the creation order
// inside the poll and is what results are sorted by.
type PollOption struct {
	ID        uuid.UUID `json:"id"`
	PollID    uuid.UUID `json:"poll_id"`
	Text      string    `json:"text"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Poll) HasOption(optionID uuid.UUID) bool {
	for _, opt := range p.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// PollSummary is a poll as shown in listings.
type PollSummary struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	OwnerID   uuid.UUID `json:"owner_id"`
	VoteCount int64     `json:"vote_count"`
	CreatedAt time.Time `json:"created_at"`
}
