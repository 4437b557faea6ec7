// Package kafka connects the pipeline stages over segmentio/kafka-go. Stages
// publish small JSON events naming the article, query or pair that changed;
// consumers decode them with HandleJSON and hand them to a stage.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/eventdetection/event-detection/pkg/config"
	apperrors "github.com/eventdetection/event-detection/pkg/errors"
	"github.com/eventdetection/event-detection/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// MessageHandler processes one message value. Input errors mark the
// message as unprocessable; any other error is treated as transient.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds one topic's messages to a handler, one at a time, as part
// of the configured consumer group.
type Consumer struct {
	reader  messageReader
	handler MessageHandler
	retry   resilience.RetryConfig
	logger  *slog.Logger
}

// NewConsumer joins cfg.ConsumerGroup on topic. A new group starts from the
// oldest retained message so no backlog is lost.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	}), topic, handler)
}

func newConsumer(r messageReader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:  r,
		handler: handler,
		retry: resilience.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     30 * time.Second,
			Retryable:    func(err error) bool { return !apperrors.IsInput(err) },
		},
		logger: slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled. Transient handler failures are
// retried with backoff; a message is committed once it succeeds, is
// rejected as bad input, or runs out of attempts. Group offsets only move
// forward, so a message left uncommitted would be skipped by the next
// commit anyway.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			if errors.Is(err, io.EOF) {
				return err
			}
			c.logger.Error("fetch failed", "error", err)
			continue
		}
		c.handle(ctx, msg)
		if ctx.Err() != nil {
			c.logger.Info("consumer stopping", "reason", ctx.Err(), "uncommitted_offset", msg.Offset)
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	log := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
	log.Debug("message received")

	err := resilience.Retry(ctx, "handle-message", c.retry, func(ctx context.Context) error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	switch {
	case err == nil, ctx.Err() != nil:
	case apperrors.IsInput(err):
		log.Warn("skipping unprocessable message", "error", err)
	default:
		log.Error("dropping message after retries", "error", err)
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a Kafka message value into T. Malformed values are
// reported as invalid input.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, apperrors.Newf(apperrors.ErrInvalidInput, 0, "decoding kafka message: %v", err)
	}
	return result, nil
}

// HandleJSON adapts a typed event handler to a MessageHandler.
func HandleJSON[T any](fn func(ctx context.Context, event T) error) MessageHandler {
	return func(ctx context.Context, _ []byte, value []byte) error {
		event, err := DecodeJSON[T](value)
		if err != nil {
			return err
		}
		if err := fn(ctx, event); err != nil {
			return fmt.Errorf("handling %T: %w", event, err)
		}
		return nil
	}
}
