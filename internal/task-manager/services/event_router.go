package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"task-recurrence-service/internal/task-manager/db"
	"task-recurrence-service/internal/task-manager/events"
	"task-recurrence-service/pkg/logger"
	"task-recurrence-service/pkg/metrics"
)

type AuditRecorder interface {
	Record(ctx context.Context, ev events.TaskEvent) (*db.AuditLog, error)
}

type CompletionHandler interface {
	HandleTaskCompleted(ctx context.Context, ev events.TaskEvent) (*db.Task, error)
}

// EventRouter dispatches inbound task lifecycle events. Every event is
// audited; completions also go to the recurring instantiator. A failing
// handler never stops the others and never fails the delivery.
type EventRouter struct {
	audit      AuditRecorder
	completion CompletionHandler
	codec      events.Codec
	logger     *zap.Logger
}

func NewEventRouter(audit AuditRecorder, completion CompletionHandler, codec events.Codec, logger *zap.Logger) *EventRouter {
	if codec == nil {
		codec = events.JSONCodec{}
	}
	return &EventRouter{audit: audit, completion: completion, codec: codec, logger: logger}
}

// HandleMessage decodes a transport message and routes it. It always
// returns nil so the message is acknowledged.
func (r *EventRouter) HandleMessage(ctx context.Context, body []byte) error {
	var ev events.TaskEvent
	if err := r.codec.Unmarshal(body, &ev); err != nil {
		r.logger.Error("Dropping undecodable task event", zap.Int("size", len(body)), zap.Error(err))
		metrics.RecordEventRouted("unknown", "undecodable")
		return nil
	}
	if ev.EventType == "" || ev.UserID == "" {
		r.logger.Error("Dropping task event without event_type or user_id",
			zap.String("event_type", ev.EventType),
			zap.String("task_id", ev.TaskID),
		)
		metrics.RecordEventRouted(ev.EventType, "undecodable")
		return nil
	}
	r.Route(ctx, ev)
	return nil
}

// Route runs every handler that applies to ev.
func (r *EventRouter) Route(ctx context.Context, ev events.TaskEvent) {
	log := logger.WithCorrelation(r.logger, ev.CorrelationID).With(
		zap.String("event_type", ev.EventType),
		zap.String("task_id", ev.TaskID),
		zap.String("user_id", ev.UserID),
	)
	log.Info("Routing task event")

	ok := r.run(log, "audit", func() error {
		_, err := r.audit.Record(ctx, ev)
		return err
	})

	if ev.EventType == events.EventTaskCompleted {
		ok = r.run(log, "recurring", func() error {
			_, err := r.completion.HandleTaskCompleted(ctx, ev)
			if errors.Is(err, ErrSuccessorExists) {
				return nil
			}
			return err
		}) && ok
	}

	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	metrics.RecordEventRouted(ev.EventType, outcome)
}

func (r *EventRouter) run(log *zap.Logger, name string, fn func() error) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("Event handler panicked", zap.String("handler", name), zap.Any("panic", p), zap.Stack("stack"))
			metrics.RecordHandlerFailure(name)
			ok = false
		}
	}()
	if err := fn(); err != nil {
		log.Error("Event handler failed", zap.String("handler", name), zap.Error(err))
		metrics.RecordHandlerFailure(name)
		return false
	}
	return true
}
