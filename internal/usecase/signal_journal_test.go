package usecase

import (
	"context"
	"errors"
	"testing"

	"SignalDesk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalJournalRouting(t *testing.T) {
	opened := models.Event{Type: models.EventSignalOpened, Signal: pendingSignal("a", t0)}
	resolved := models.Event{Type: models.EventSignalResolved, Signal: pendingSignal("b", t0)}

	tests := []struct {
		backend  string
		events   int
		archived int
	}{
		{JournalKafka, 2, 0},
		{JournalClickHouse, 0, 1},
		{JournalBoth, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			pub := &recordingPublisher{}
			archive := &recordingArchive{}
			j := NewSignalJournal(pub, archive, nil, tt.backend)

			require.NoError(t, j.Publish(context.Background(), opened))
			require.NoError(t, j.Publish(context.Background(), resolved))

			assert.Len(t, pub.events, tt.events)
			assert.Len(t, archive.ids, tt.archived)
		})
	}
}

func TestSignalJournalErrors(t *testing.T) {
	j := NewSignalJournal(nil, nil, nil, "s3")
	assert.Error(t, j.Publish(context.Background(), models.Event{Type: models.EventSignalOpened}))

	pub := &recordingPublisher{err: errors.New("broker down")}
	j = NewSignalJournal(pub, &recordingArchive{}, nil, JournalKafka)
	assert.Error(t, j.Publish(context.Background(), models.Event{Type: models.EventSignalOpened}))
}

func TestEventFanOutSwallowsSinkErrors(t *testing.T) {
	good := &recordingPublisher{}
	bad := &recordingPublisher{err: errors.New("down")}
	f := NewEventFanOut(nil, bad, nil, good)

	assert.NoError(t, f.Publish(context.Background(), models.Event{Type: models.EventAutomationState}))
	assert.Len(t, good.events, 1)
	assert.Len(t, bad.events, 1)
}
