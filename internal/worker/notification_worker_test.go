package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	"github.com/AhmadRadith/jycc-sub001/internal/events"
	"github.com/AhmadRadith/jycc-sub001/internal/service"
)

type recordingPublisher struct {
	mu   sync.Mutex
	seen []events.EventType
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, event.Type)
	return nil
}

func TestRelayForwardsDispatchedEvents(t *testing.T) {
	publisher := &recordingPublisher{}
	relay := NewRelay(publisher, zap.NewNop(), 8)
	dispatcher := events.NewInMemoryDispatcher()
	notifications := service.NewNotificationService(dispatcher, zap.NewNop(), relay)

	ctx, cancel := context.WithCancel(context.Background())
	StartNotificationWorker(ctx, notifications, relay)

	actor := domain.Identity{ID: "d-1", Role: domain.RoleDaerah}
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventTicketStatusChanged, "t-1", actor, nil)))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventTicketCommentAdded, "t-1", actor, nil)))

	cancel()
	relay.Wait()

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	assert.ElementsMatch(t, []events.EventType{events.EventTicketStatusChanged, events.EventTicketCommentAdded}, publisher.seen)
}

func TestRelayDropsWhenFull(t *testing.T) {
	relay := NewRelay(&recordingPublisher{}, zap.NewNop(), 1)
	event := events.NewEvent(events.EventTicketCreated, "t-1", domain.Identity{ID: "m-1", Role: domain.RoleMurid}, nil)

	assert.True(t, relay.Enqueue(event))
	assert.False(t, relay.Enqueue(event))

	var nilRelay *Relay
	assert.False(t, nilRelay.Enqueue(event))
}
