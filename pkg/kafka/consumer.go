// Package kafka carries JSON events over segmentio/kafka-go. Producers key
// events by document id; the consumer hands each message to a callback and
// commits it once the callback succeeds or fails permanently.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/resilience"
)

// MessageHandler processes one message value.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// messageReader is the part of *kafka.Reader the consume loop needs.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic as a member of the configured consumer group.
type Consumer struct {
	reader  messageReader
	handler MessageHandler
	logger  *slog.Logger

	// fetchBackoff is the pause after a failed fetch; it doubles up to
	// maxFetchBackoff while the broker stays unreachable.
	fetchBackoff    time.Duration
	maxFetchBackoff time.Duration
	// retry paces handler attempts on one message. It never gives up on
	// its own; only success, a permanent failure or shutdown end it.
	retry resilience.RetryConfig
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10 << 20,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	})
	return newConsumer(r, topic, handler)
}

func newConsumer(r messageReader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:          r,
		handler:         handler,
		logger:          slog.Default().With("component", "kafka_consumer", "topic", topic),
		fetchBackoff:    100 * time.Millisecond,
		maxFetchBackoff: 5 * time.Second,
		retry: resilience.RetryConfig{
			MaxAttempts:  math.MaxInt,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     30 * time.Second,
		},
	}
}

// Start consumes until ctx ends, then closes the reader.
//
// A message is committed once its handler succeeds or fails permanently
// (see apperrors.Retryable). Retryable failures are retried in place with
// backoff, so the partition never moves past a message that could still
// succeed. A message interrupted by shutdown stays uncommitted and is
// delivered again to the next group member.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.logger.Info("consumer stopped")

	backoff := c.fetchBackoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.reader.Close()
			}
			c.logger.Warn("fetch failed", "error", err, "backoff", backoff)
			if !sleep(ctx, backoff) {
				return c.reader.Close()
			}
			backoff = min(2*backoff, c.maxFetchBackoff)
			continue
		}
		backoff = c.fetchBackoff

		if !c.dispatch(ctx, msg) {
			return c.reader.Close()
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// dispatch runs the handler until msg may be committed. It returns false
// only when ctx ended first.
func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message) bool {
	started := time.Now()
	err := resilience.Retry(ctx, "handle message", c.retry, func() error {
		return c.handler(ctx, msg.Key, msg.Value)
	})
	switch {
	case err == nil:
		c.logger.Debug("message handled",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return true
	case ctx.Err() != nil:
		c.logger.Warn("message left uncommitted at shutdown",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"error", err,
		)
		return false
	default:
		c.logger.Error("message failed permanently, skipping",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
			"error", err,
		)
		return true
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// DecodeJSON unmarshals a message value. A malformed payload fails with
// ErrInvalidInput, which is never retried.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, apperrors.New(apperrors.ErrInvalidInput, "kafka.decode", err.Error())
	}
	return v, nil
}

// Ping succeeds as soon as one broker accepts a connection.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}
	errs := make([]error, 0, len(brokers))
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn.Close()
		}
		errs = append(errs, fmt.Errorf("%s: %w", broker, err))
	}
	return fmt.Errorf("dialing kafka: %w", errors.Join(errs...))
}
