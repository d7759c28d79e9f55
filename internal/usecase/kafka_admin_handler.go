package usecase

import (
	"context"
	"encoding/json"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/errors"
	pkgkafka "SignalDesk/pkg/kafka"
)

// KafkaAdminHandler consumes admin signals published by the operator
// console and hands them to the dispatcher. A message may carry the full
// row or only its id.
type KafkaAdminHandler struct {
	topic      string
	admins     drepo.AdminSignalRepository
	dispatcher *AdminDispatcher
	metrics    drepo.Metrics
}

func NewKafkaAdminHandler(topic string, admins drepo.AdminSignalRepository, dispatcher *AdminDispatcher, metrics drepo.Metrics) *KafkaAdminHandler {
	return &KafkaAdminHandler{topic: topic, admins: admins, dispatcher: dispatcher, metrics: metrics}
}

func (h *KafkaAdminHandler) Topic() string { return h.topic }

func (h *KafkaAdminHandler) Handle(ctx context.Context, b []byte) error {
	var row models.AdminSignalRow
	if err := json.Unmarshal(b, &row); err != nil {
		h.recordError("admin_consumer_unmarshal")
		return errors.Wrap(errors.ErrCodeInvalidParameter, "admin signal message", err)
	}
	if row.ID == "" {
		h.recordError("admin_consumer_unmarshal")
		return errors.New(errors.ErrCodeMissingParameter, "admin signal message without id")
	}

	a, ok := row.ToAdminSignal()
	if !ok {
		var err error
		if a, err = h.admins.GetAdminSignalByID(ctx, row.ID); err != nil {
			h.recordError("admin_consumer_lookup")
			return err
		}
	}

	if _, err := h.dispatcher.Deliver(ctx, a); err != nil {
		h.recordError("admin_consumer_deliver")
		return err
	}
	return nil
}

func (h *KafkaAdminHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*KafkaAdminHandler)(nil)
