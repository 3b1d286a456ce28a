// Package worker runs sync requests delivered over Kafka.
package worker

import (
	"context"
	"errors"
	"fmt"

	"apartur/internal/datasync/service"
	"apartur/pkg/kafka"
	"apartur/pkg/logger"
	"apartur/pkg/model"
)

var errSyncNotRun = errors.New("sync request not executed")

type Worker struct {
	manager service.SyncManager
	log     *logger.Logger
}

func NewWorker(manager service.SyncManager, log *logger.Logger) *Worker {
	return &Worker{manager: manager, log: log}
}

// Handle executes one sync request. Outcomes are recorded by the manager, so
// failed and skipped runs are reported as business errors: the consumer
// neither retries them nor dead-letters them.
func (w *Worker) Handle(ctx context.Context, msg kafka.Message) error {
	if eventType := msg.GetEventType(); eventType != service.EventSyncRequested {
		w.log.Debug("Ignoring message", "event_type", eventType, "offset", msg.Offset)
		return nil
	}

	var req model.SyncRequest
	if err := msg.DecodeValue(&req); err != nil {
		return kafka.NewPermanentError("invalid sync request payload", fmt.Errorf("%w: %v", kafka.ErrInvalidMessage, err))
	}

	ctx = kafka.ContextWithCorrelationID(ctx, msg.GetCorrelationID())
	w.log.Info("Sync request received",
		"event_id", msg.GetEventID(),
		"correlation_id", msg.GetCorrelationID(),
		"force", req.Force,
		"requested_by", req.RequestedBy,
	)

	result := w.manager.ExecuteSync(ctx, req.Force)
	switch {
	case result.Success:
		return nil
	case result.Skipped:
		w.log.Info("Sync request skipped", "event_id", msg.GetEventID(), "reason", result.Reason)
		return kafka.NewBusinessError(result.Reason, errSyncNotRun)
	default:
		return kafka.NewBusinessError(result.Error, errSyncNotRun)
	}
}
