package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
)

// Journal backends.
const (
	JournalKafka      = "kafka"
	JournalClickHouse = "clickhouse"
	JournalBoth       = "both"
)

// SignalJournal records lifecycle events durably: every event goes to the
// event log, resolved signals also go to the analytics archive.
type SignalJournal struct {
	pub     drepo.EventPublisher
	archive drepo.SignalArchive
	metrics drepo.Metrics
	backend string
}

func NewSignalJournal(pub drepo.EventPublisher, archive drepo.SignalArchive, metrics drepo.Metrics, backend string) *SignalJournal {
	return &SignalJournal{pub: pub, archive: archive, metrics: metrics, backend: backend}
}

// Publish routes e to the configured backend.
func (j *SignalJournal) Publish(ctx context.Context, e models.Event) error {
	start := time.Now()
	var err error

	switch j.backend {
	case JournalKafka:
		err = j.toLog(ctx, e)
	case JournalClickHouse:
		err = j.toArchive(ctx, e)
	case JournalBoth:
		if err = j.toLog(ctx, e); err == nil {
			err = j.toArchive(ctx, e)
		}
	default:
		err = fmt.Errorf("unknown journal backend: %s", j.backend)
	}

	if err != nil {
		if j.metrics != nil {
			j.metrics.RecordError("journal")
		}
		return fmt.Errorf("journal %s: %w", e.Type, err)
	}
	if j.metrics != nil {
		j.metrics.RecordLatency("journal", time.Since(start).Seconds())
	}
	return nil
}

func (j *SignalJournal) toLog(ctx context.Context, e models.Event) error {
	if j.pub == nil {
		return nil
	}
	return j.pub.Publish(ctx, e)
}

func (j *SignalJournal) toArchive(ctx context.Context, e models.Event) error {
	if j.archive == nil || e.Type != models.EventSignalResolved || e.Signal == nil {
		return nil
	}
	return j.archive.Archive(ctx, e.Signal)
}
