package domain

import "errors"

var (
	ErrUnauthenticated     = errors.New("authentication required")
	ErrPollNotFound        = errors.New("poll not found")
	ErrInvalidPollID       = errors.New("invalid poll id")
	ErrInvalidOption       = errors.New("invalid option for this poll")
	ErrAlreadyVoted        = errors.New("user has already voted")
	ErrVoteNotFound        = errors.New("user did not vote on this poll")
	ErrInvalidInput        = errors.New("invalid input")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrChannelDisconnected = errors.New("change channel disconnected")
)
