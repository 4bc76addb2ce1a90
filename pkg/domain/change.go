package domain

import "time"

// Action indicates the type of modification performed.
type Action string

// Change actions captured for persistence and the change feed.
const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionReorder Action = "reorder"
)

// Change records one mutation applied to the collection. Reorder changes
// carry neither Before nor After.
type Change struct {
	Action Action    `json:"action"`
	Before *Band     `json:"before,omitempty"`
	After  *Band     `json:"after,omitempty"`
	At     time.Time `json:"at"`
	User   string    `json:"user,omitempty"`
}

// BandID returns the identifier the change refers to, or 0 for reorders.
func (c Change) BandID() int64 {
	switch {
	case c.After != nil:
		return c.After.ID
	case c.Before != nil:
		return c.Before.ID
	}
	return 0
}
