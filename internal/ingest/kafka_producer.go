package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/donor-finder/internal/models"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaProducer struct {
	writer  MessageWriter
	timeout time.Duration
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := &kafka.Writer{Addr: kafka.TCP(brokers...), Topic: topic, Balancer: &kafka.LeastBytes{}}
	return NewProducerWithWriter(w)
}

func NewProducerWithWriter(w MessageWriter) *KafkaProducer {
	return &KafkaProducer{writer: w, timeout: 2 * time.Second}
}

// PublishRegistration emits a registration event keyed by donor id.
func (k *KafkaProducer) PublishRegistration(ctx context.Context, d models.Donor) error {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	b, err := json.Marshal(models.RegistrationEvent{Donor: d, RegisteredAt: d.CreatedAt})
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(d.ID), Value: b}); err != nil {
		return fmt.Errorf("publish registration %s: %w", d.ID, err)
	}
	return nil
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
