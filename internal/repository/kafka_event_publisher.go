package repository

import (
	"context"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	pkgkafka "SignalDesk/pkg/kafka"

	"github.com/segmentio/kafka-go"
)

// BatchProducer is the part of *pkgkafka.Producer the publisher needs.
type BatchProducer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaEventPublisher writes lifecycle events to a topic keyed by signal id,
// so the events of one signal keep their order within a partition.
type KafkaEventPublisher struct {
	producer BatchProducer
	topic    string
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(producer BatchProducer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, e models.Event) error {
	return p.PublishBatch(ctx, []models.Event{e})
}

func (p *KafkaEventPublisher) PublishBatch(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(events))
	for i, e := range events {
		msgs[i] = pkgkafka.Message{
			Key:     []byte(e.Key()),
			Value:   e,
			Headers: []kafka.Header{{Key: "event_type", Value: []byte(e.Type)}},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}
