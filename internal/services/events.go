package services

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher ships audit events to an external stream.
type EventPublisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// KafkaPublisher writes activity events to a single topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaPublisher returns nil when no broker is configured; a nil
// publisher skips every publish.
func NewKafkaPublisher(broker, topic string, log *zap.Logger) *KafkaPublisher {
	if strings.TrimSpace(broker) == "" {
		return nil
	}

	brokers := strings.Split(broker, ",")
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  3,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
		},
		log: log.Named("kafka"),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key, value []byte) error {
	if p == nil || p.writer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.log.Info("closing kafka writer")
	return p.writer.Close()
}
