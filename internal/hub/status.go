package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"kiochat-ws/internal/models"
)

type statusEntry struct {
	chatID   string
	senderID string
	status   models.MessageStatus
}

// MembershipChecker verifies that an acknowledging user belongs to the
// message's chat before a status transition is accepted.
type MembershipChecker interface {
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
}

// StatusTracker advances a message's delivery lifecycle from recipient
// acknowledgements and pushes each transition back to the sender's
// connections. Transitions are idempotent and monotonic.
type StatusTracker struct {
	mu           sync.Mutex
	registry     *Registry
	store        MessageStore
	participants MembershipChecker
	entries      map[string]*statusEntry
}

// NewStatusTracker creates a tracker publishing through the registry.
func NewStatusTracker(registry *Registry, store MessageStore, participants MembershipChecker) *StatusTracker {
	return &StatusTracker{
		registry:     registry,
		store:        store,
		participants: participants,
		entries:      make(map[string]*statusEntry),
	}
}

// Track registers a freshly persisted message so later acknowledgements can
// be routed back to its sender.
func (t *StatusTracker) Track(msg models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[msg.ID] = &statusEntry{
		chatID:   msg.ChatID,
		senderID: msg.SenderID,
		status:   msg.Status,
	}
}

// MarkDelivered records that a recipient's connection received the message.
// Acks from the sender's own devices, from users outside the message's chat,
// and acks for unknown messages are no-ops, as are acks arriving after the
// message reached DELIVERED or READ.
func (t *StatusTracker) MarkDelivered(ctx context.Context, messageID, byUserID string) error {
	return t.advance(ctx, messageID, byUserID, models.StatusDelivered)
}

// MarkRead records an explicit read event. READ implies DELIVERED, so a
// message still at SENT moves straight to READ.
func (t *StatusTracker) MarkRead(ctx context.Context, messageID, readerID string) error {
	return t.advance(ctx, messageID, readerID, models.StatusRead)
}

func (t *StatusTracker) advance(ctx context.Context, messageID, byUserID string, target models.MessageStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[messageID]
	if !ok {
		// Not relayed by this process (restart, historical message):
		// fall back to the store.
		msg, err := t.store.GetMessage(ctx, messageID)
		if err != nil {
			log.Printf("status: lookup %s: %v", messageID, err)
			return nil
		}
		entry = &statusEntry{chatID: msg.ChatID, senderID: msg.SenderID, status: msg.Status}
		t.entries[messageID] = entry
	}

	if byUserID == entry.senderID {
		return nil
	}
	member, err := t.participants.IsParticipant(ctx, entry.chatID, byUserID)
	if err != nil {
		log.Printf("status: verify %s in %s: %v", byUserID, entry.chatID, err)
		return nil
	}
	if !member {
		log.Printf("status: %s is not a participant of %s, dropping %s ack", byUserID, entry.chatID, target)
		return nil
	}
	if entry.status.AtLeast(target) {
		return nil
	}

	now := time.Now().UTC()
	applied, err := t.store.UpdateMessageStatus(ctx, messageID, target, now)
	if err != nil {
		return err
	}
	entry.status = target
	if target == models.StatusRead {
		delete(t.entries, messageID)
	}
	if !applied {
		return nil
	}

	t.publish(models.StatusUpdate{
		MessageID: messageID,
		ChatID:    entry.chatID,
		Status:    target,
		Timestamp: now,
	}, entry.senderID)
	return nil
}

// PublishBatch pushes status updates for messages transitioned outside the
// live ack path, e.g. a bulk mark-read, to each sender's connections.
func (t *StatusTracker) PublishBatch(msgs []models.Message) {
	for _, msg := range msgs {
		ts := msg.CreatedAt
		if msg.ReadAt != nil {
			ts = *msg.ReadAt
		}
		t.mu.Lock()
		delete(t.entries, msg.ID)
		t.mu.Unlock()

		t.publish(models.StatusUpdate{
			MessageID: msg.ID,
			ChatID:    msg.ChatID,
			Status:    msg.Status,
			Timestamp: ts,
		}, msg.SenderID)
	}
}

func (t *StatusTracker) publish(update models.StatusUpdate, senderID string) {
	ev := models.ServerEvent{
		Type:   models.EventMessageStatus,
		ChatID: update.ChatID,
		Status: &update,
	}
	for _, c := range t.registry.ConnectionsForUser(senderID) {
		if err := c.Send(ev); err != nil {
			log.Printf("status: send %s to %s: %v", update.Status, c.ID(), err)
		}
	}
}
