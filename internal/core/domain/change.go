package domain

import "github.com/google/uuid"

type ChangeKind int

const (
	// ChangeInsert reports a committed row; PollID says which poll it belongs to.
	ChangeInsert ChangeKind = iota
	// ChangeDisconnected reports that the feed lost its connection. Changes
	// committed until the next ChangeReconnected are not reported.
	ChangeDisconnected
	// ChangeReconnected reports that the feed is listening again.
	ChangeReconnected
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeInsert:
		return "insert"
	case ChangeDisconnected:
		return "disconnected"
	case ChangeReconnected:
		return "reconnected"
	}
	return "unknown"
}

type ChangeEvent struct {
	Kind   ChangeKind
	PollID uuid.UUID
}
