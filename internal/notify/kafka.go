package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"dlmm-notifier/internal/domain"
)

// messageWriter is the subset of *kafka.Writer used by KafkaNotifier.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes pool creations as JSON records keyed by signature.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
}

// NewKafkaNotifier creates a notifier writing to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaNotifier{writer: writer, topic: topic}
}

var _ Notifier = (*KafkaNotifier)(nil)

// Name implements Notifier.
func (n *KafkaNotifier) Name() string { return "kafka" }

// Notify writes pc to the topic.
func (n *KafkaNotifier) Notify(ctx context.Context, pc *domain.PoolCreation) error {
	value, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("marshal pool creation: %w", err)
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(pc.Signature),
		Value: value,
		Time:  time.UnixMilli(pc.DetectedAt),
	})
	if err != nil {
		return fmt.Errorf("write to %s: %w", n.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
