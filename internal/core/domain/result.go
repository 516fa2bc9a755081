package domain

import (
	"time"

	"github.com/google/uuid"
)

// OptionResult is the vote count of one option, always derived from the
// votes table at read time.
type OptionResult struct {
	OptionID   uuid.UUID `json:"option_id"`
	Text       string    `json:"text"`
	VoteCount  int64     `json:"vote_count"`
	Percentage float64   `json:"percentage"`
}

type PollResults struct {
	PollID     uuid.UUID      `json:"poll_id"`
	Options    []OptionResult `json:"options"`
	TotalVotes int64          `json:"total_votes"`
	ComputedAt time.Time      `json:"computed_at"`
}

// NewPollResults fills in totals and percentages. Options keep the order
// they are given in.
func NewPollResults(pollID uuid.UUID, options []OptionResult, now time.Time) *PollResults {
	var total int64
	for _, o := range options {
		total += o.VoteCount
	}
	for i := range options {
		if total > 0 {
			options[i].Percentage = (float64(options[i].VoteCount) / float64(total)) * 100
		} else {
			options[i].Percentage = 0
		}
	}
	return &PollResults{
		PollID:     pollID,
		Options:    options,
		TotalVotes: total,
		ComputedAt: now,
	}
}
