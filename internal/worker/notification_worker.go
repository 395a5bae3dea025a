package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AhmadRadith/jycc-sub001/internal/events"
	"github.com/AhmadRadith/jycc-sub001/internal/service"
)

const publishTimeout = 5 * time.Second

// Relay moves events off the request path onto an external publisher.
// Enqueue never blocks; when the buffer is full the event is dropped and logged.
type Relay struct {
	publisher events.Publisher
	logger    *zap.Logger
	queue     chan events.Event
	wg        sync.WaitGroup
}

// NewRelay builds a relay with the given buffer size.
func NewRelay(publisher events.Publisher, logger *zap.Logger, buffer int) *Relay {
	if buffer <= 0 {
		buffer = 256
	}
	return &Relay{publisher: publisher, logger: logger, queue: make(chan events.Event, buffer)}
}

// Enqueue schedules an event for publication.
func (r *Relay) Enqueue(event events.Event) bool {
	if r == nil {
		return false
	}
	select {
	case r.queue <- event:
		return true
	default:
		r.logger.Warn("event relay buffer full, dropping event",
			zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
		return false
	}
}

// Start runs the publishing loop until ctx is cancelled. Queued events are
// drained before Wait returns.
func (r *Relay) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case event := <-r.queue:
				r.publish(event)
			case <-ctx.Done():
				for {
					select {
					case event := <-r.queue:
						r.publish(event)
					default:
						return
					}
				}
			}
		}
	}()
}

// Wait blocks until the loop started by Start has exited.
func (r *Relay) Wait() {
	r.wg.Wait()
}

func (r *Relay) publish(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("event publish failed", zap.String("event_id", event.ID), zap.Error(err))
	}
}

// StartNotificationWorker registers notification handlers and, when a relay
// is given, starts forwarding events through it.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, relay *Relay) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	if relay != nil {
		relay.Start(ctx)
	}
}
