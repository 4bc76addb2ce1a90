package events

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"bandkeeper/pkg/domain"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one JSON message per change, keyed by band id.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
}

// NewKafkaPublisher builds a hash-balanced writer for topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewKafkaPublisherWithWriter(writer, topic)
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(w MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

// Topic returns the destination topic.
func (p *KafkaPublisher) Topic() string { return p.topic }

func (p *KafkaPublisher) Publish(ctx context.Context, changes []domain.Change) error {
	if len(changes) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(changes))
	for _, c := range changes {
		event := FromChange(c)
		value, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encode change event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.Key()),
			Value: value,
			Time:  event.At,
			Headers: []kafka.Header{
				{Key: "event-id", Value: []byte(event.ID)},
				{Key: "action", Value: []byte(event.Action)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d change event(s) to %s: %w", len(msgs), p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }
