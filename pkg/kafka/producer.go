package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/pkg/config"
)

const contentTypeJSON = "application/json"

// Event is one message to publish. Value is encoded as JSON; Key selects the
// partition.
type Event struct {
	Key   string
	Value any
}

// Publisher is implemented by Producer and by test doubles.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Producer writes events to a single topic and waits for all in-sync
// replicas to acknowledge them.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

// NewProducer hashes keys onto partitions, so every event for one document
// id lands on the same partition in publish order.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 5 * time.Millisecond,
			MaxAttempts:  3,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireAll,
		},
		topic:  topic,
		logger: slog.Default().With("component", "kafka_producer", "topic", topic),
	}
}

// Publish blocks until the broker has acknowledged the event.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("publish failed", "key", event.Key, "error", err)
		return fmt.Errorf("publishing %s to %s: %w", event.Key, p.topic, err)
	}
	p.logger.Debug("published", "key", event.Key, "bytes", len(msg.Value))
	return nil
}

// Close flushes buffered messages.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func encode(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding event %s: %w", event.Key, err)
	}
	return kafka.Message{
		Key:     []byte(event.Key),
		Value:   value,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte(contentTypeJSON)}},
		Time:    time.Now().UTC(),
	}, nil
}
