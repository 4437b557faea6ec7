package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventdetection/event-detection/pkg/config"
	"github.com/segmentio/kafka-go"
)

// EventTypeHeader carries the Go type name of a published value, such as
// "kafka.ValidationRequest", for consumers reading mixed topics.
const EventTypeHeader = "event-type"

// Event is one message to publish. Key selects the partition, so events for
// the same article or query stay ordered. Value is encoded as JSON.
type Event struct {
	Key   string
	Value any
}

// Publisher publishes events. *Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	PublishBatch(ctx context.Context, events []Event) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes events to one topic and waits for every in-sync replica
// to acknowledge them.
type Producer struct {
	writer messageWriter
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return newProducer(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}, topic)
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

func (p *Producer) Publish(ctx context.Context, event Event) error {
	return p.PublishBatch(ctx, []Event{event})
}

// PublishBatch encodes every event before writing any, so an encoding
// failure publishes nothing.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		msg, err := encode(e)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("publish failed", "count", len(msgs), "first_key", events[0].Key, "error", err)
		return fmt.Errorf("publishing %d event(s): %w", len(msgs), err)
	}
	p.logger.Debug("published", "count", len(msgs), "first_key", events[0].Key)
	return nil
}

func encode(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding %T for key %s: %w", e.Value, e.Key, err)
	}
	return kafka.Message{
		Key:     []byte(e.Key),
		Value:   value,
		Headers: []kafka.Header{{Key: EventTypeHeader, Value: []byte(fmt.Sprintf("%T", e.Value))}},
	}, nil
}

// Close flushes buffered messages.
func (p *Producer) Close() error {
	return p.writer.Close()
}
