package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/AhmadRadith/jycc-sub001/internal/events"
)

// EventSink accepts events for asynchronous delivery.
type EventSink interface {
	Enqueue(event events.Event) bool
}

// NotificationService logs ticket events and forwards them to an optional sink.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	sink       EventSink
}

// NewNotificationService creates the service. sink may be nil.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, sink EventSink) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		sink:       sink,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

func (n *NotificationService) handle(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_id", event.Actor.ID),
		zap.String("actor_role", event.Actor.Role.String()),
		zap.Any("payload", event.Payload))
	if n.sink != nil {
		n.sink.Enqueue(event)
	}
	return nil
}
