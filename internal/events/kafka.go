package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the part of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON messages keyed by user id
type KafkaPublisher struct {
	writer  MessageWriter
	topic   string
	timeout time.Duration
	log     *zap.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on the given brokers
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
	return NewKafkaPublisherWithWriter(writer, topic, log)
}

// NewKafkaPublisherWithWriter wraps an existing writer
func NewKafkaPublisherWithWriter(writer MessageWriter, topic string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  writer,
		topic:   topic,
		timeout: 10 * time.Second,
		log:     log,
	}
}

// Publish writes one event
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.UserID),
		Value: value,
		Time:  event.OccurredAt,
	})
	if err != nil {
		p.log.Error("failed to write event to Kafka",
			zap.String("topic", p.topic),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		return fmt.Errorf("failed to write event to Kafka: %w", err)
	}
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
