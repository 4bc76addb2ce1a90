// Package events publishes committed collection changes to downstream
// consumers.
package events

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"bandkeeper/internal/config"
	"bandkeeper/pkg/domain"
)

// Event is the wire form of one committed change.
type Event struct {
	ID     string        `json:"id"`
	Action domain.Action `json:"action"`
	BandID int64         `json:"band_id,omitempty"`
	Before *domain.Band  `json:"before,omitempty"`
	After  *domain.Band  `json:"after,omitempty"`
	At     time.Time     `json:"at"`
	User   string        `json:"user,omitempty"`
}

// Key partitions events per band so one band's history stays ordered.
func (e Event) Key() string {
	if e.BandID == 0 {
		return "collection"
	}
	return strconv.FormatInt(e.BandID, 10)
}

// FromChange builds an event with a fresh id.
func FromChange(c domain.Change) Event {
	return Event{
		ID:     uuid.NewString(),
		Action: c.Action,
		BandID: c.BandID(),
		Before: c.Before,
		After:  c.After,
		At:     c.At,
		User:   c.User,
	}
}

// Publisher sends changes somewhere and owns its transport.
type Publisher interface {
	Publish(ctx context.Context, changes []domain.Change) error
	Close() error
}

// Open returns a Kafka publisher, or Discard when no brokers are set.
func Open(cfg config.Events) Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return Discard{}
	}
	return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
}

// Discard drops every change.
type Discard struct{}

func (Discard) Publish(context.Context, []domain.Change) error { return nil }
func (Discard) Close() error                                   { return nil }

// Memory retains published events in order.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory returns an empty in-memory publisher.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Publish(ctx context.Context, changes []domain.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range changes {
		m.events = append(m.events, FromChange(c))
	}
	return nil
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *Memory) Close() error { return nil }
