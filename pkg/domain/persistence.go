package domain

import (
	"context"
	"time"
)

// Collection is the durable form of the store: the ordered bands plus the
// date the collection was first initialized.
type Collection struct {
	Bands         []Band    `json:"bands"`
	InitializedAt time.Time `json:"initialized_at"`
}

// Empty reports whether the collection has never been initialized.
func (c Collection) Empty() bool {
	return c.InitializedAt.IsZero() && len(c.Bands) == 0
}

// Loader supplies the initial collection at process start.
type Loader interface {
	Load(ctx context.Context) (Collection, error)
}

// Persister durably stores the current collection. It is invoked after
// mutating commands by the layer around the dispatcher, never by the store.
type Persister interface {
	Save(ctx context.Context, c Collection) error
}

// Backend is a durable load/save collaborator.
type Backend interface {
	Loader
	Persister
	Close() error
}
