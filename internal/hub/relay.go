package hub

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"

	"kiochat-ws/internal/models"
	"kiochat-ws/internal/observability"
)

// DefaultPersistTimeout bounds the synchronous persistence call.
const DefaultPersistTimeout = 5 * time.Second

// Relay persists an inbound message, then fans it out to the room. The
// broadcast carries the authoritative id and timestamp assigned by the
// store, and the originating connection receives a separate message_ack so
// clients can de-duplicate their optimistic echo by id.
type Relay struct {
	rooms          *RoomRouter
	typing         *TypingCoordinator
	status         *StatusTracker
	store          MessageStore
	notifier       Notifier
	persistTimeout time.Duration
}

// NewRelay constructs a Relay. notifier may be nil when offline
// notifications are disabled.
func NewRelay(rooms *RoomRouter, typing *TypingCoordinator, status *StatusTracker, store MessageStore, notifier Notifier) *Relay {
	return &Relay{
		rooms:          rooms,
		typing:         typing,
		status:         status,
		store:          store,
		notifier:       notifier,
		persistTimeout: DefaultPersistTimeout,
	}
}

// SetPersistTimeout overrides the persistence-call timeout.
func (r *Relay) SetPersistTimeout(d time.Duration) {
	if d > 0 {
		r.persistTimeout = d
	}
}

// Relay validates membership, persists, broadcasts and acknowledges one
// inbound message. Returns ErrNotAMember or ErrPersistence without having
// broadcast anything; a partial fan-out never happens before persistence
// confirms.
func (r *Relay) Relay(ctx context.Context, sender Conn, ev models.MessageEvent) (models.Message, error) {
	if !r.rooms.IsMember(sender.ID(), ev.ChatID) {
		return models.Message{}, ErrNotAMember
	}

	ctx, span := otel.Tracer("kiochat-ws/hub").Start(ctx, "relay.persist")
	pctx, cancel := context.WithTimeout(ctx, r.persistTimeout)
	msg, err := r.store.CreateMessage(pctx, ev.ChatID, sender.UserID(), ev.Content, ev.FileURL, ev.FileName)
	cancel()
	span.End()
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	r.status.Track(msg)

	broadcast := models.ServerEvent{Type: models.EventMessage, ChatID: msg.ChatID, Message: &msg}
	for _, c := range r.rooms.MembersOf(msg.ChatID) {
		if c.ID() == sender.ID() {
			continue
		}
		if err := c.Send(broadcast); err != nil {
			// One unreachable recipient must not abort the rest.
			log.Printf("relay: send message %s to %s: %v", msg.ID, c.ID(), err)
			observability.IncWSEvent("chat", "broadcast_error")
			continue
		}
	}
	observability.IncMessagesRelayed()

	ack := models.ServerEvent{Type: models.EventMessageAck, ChatID: msg.ChatID, Message: &msg}
	if err := sender.Send(ack); err != nil {
		log.Printf("relay: ack message %s to %s: %v", msg.ID, sender.ID(), err)
	}

	// A sent message clears the sender's typing indicator immediately.
	r.typing.Stop(msg.ChatID, sender.UserID())

	if r.notifier != nil {
		r.notifier.MessageCreated(msg)
	}
	return msg, nil
}
