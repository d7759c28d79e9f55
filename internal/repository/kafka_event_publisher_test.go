package repository

import (
	"context"
	"testing"

	"SignalDesk/internal/domain/models"
	pkgkafka "SignalDesk/pkg/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingProducer struct {
	topic string
	msgs  []pkgkafka.Message
}

func (p *capturingProducer) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	p.topic = topic
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func TestKafkaEventPublisherKeysBySignal(t *testing.T) {
	prod := &capturingProducer{}
	pub := NewKafkaEventPublisher(prod, "signal-events")

	require.NoError(t, pub.PublishBatch(context.Background(), []models.Event{
		{Type: models.EventSignalOpened, Signal: &models.Signal{ID: "s1"}},
		{Type: models.EventAutomationError, Message: "no opportunity"},
	}))

	assert.Equal(t, "signal-events", prod.topic)
	require.Len(t, prod.msgs, 2)
	assert.Equal(t, []byte("s1"), prod.msgs[0].Key)
	assert.Equal(t, []byte("automation.error"), prod.msgs[1].Key)
	assert.Equal(t, "event_type", prod.msgs[0].Headers[0].Key)
	assert.Equal(t, []byte("signal.opened"), prod.msgs[0].Headers[0].Value)
}

func TestKafkaEventPublisherEmptyBatch(t *testing.T) {
	prod := &capturingProducer{}
	require.NoError(t, NewKafkaEventPublisher(prod, "t").PublishBatch(context.Background(), nil))
	assert.Empty(t, prod.topic)
}
