package domain

import "time"

// ActionType classifies a bookmark state transition in the index action log.
type ActionType string

// Action types, one per observable bookmark state transition.
const (
	ActionCreated  ActionType = "created"
	ActionUpdated  ActionType = "updated"
	ActionOutdated ActionType = "outdated"
	ActionDeleted  ActionType = "deleted"
)

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionCreated, ActionUpdated, ActionOutdated, ActionDeleted:
		return true
	}
	return false
}

// IndexAction is an immutable, append-only log entry recording one
// bookmark state transition. Entries are never mutated or deleted.
//
// The ID is a fixed-width monotonic sequence value, so lexicographic
// order over IDs equals chronological order. BookmarkID is a surrogate
// reference, not a live key: it stays resolvable in the log after the
// bookmark itself is gone.
type IndexAction struct {
	ID         string     `json:"id"`
	Type       ActionType `json:"type"`
	BookmarkID string     `json:"bookmarkId"`
	OwnerID    string     `json:"owner"`
	CreatedAt  time.Time  `json:"createdAt"`
}
