package notifications

import (
	"context"
	"log"
	"time"
	"unicode/utf8"

	"kiochat-ws/internal/hub"
	"kiochat-ws/internal/models"
	"kiochat-ws/internal/observability"
	"kiochat-ws/internal/rabbitmq"
)

// RoutingKey is where push-notification consumers listen.
const RoutingKey = "notifications.push"

// ParticipantSource resolves the users of a chat, so recipients without a
// live connection can still be notified.
type ParticipantSource interface {
	ParticipantIDs(ctx context.Context, chatID string) ([]string, error)
}

// Envelope is one notification published per offline recipient.
type Envelope struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	OccurredAt    string    `json:"occurred_at"`
	RecipientID   string    `json:"recipient_id"`
	ChatID        string    `json:"chat_id"`
	MessageID     string    `json:"message_id"`
	SenderID      string    `json:"sender_id"`
	Preview       string    `json:"preview"`
	CreatedAt     time.Time `json:"created_at"`
}

// Dispatcher publishes an at-least-once, fire-and-forget notification per
// offline chat participant after a successful relay.
type Dispatcher struct {
	presence     *hub.PresenceTracker
	participants ParticipantSource
	publisher    rabbitmq.Publisher
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(presence *hub.PresenceTracker, participants ParticipantSource, publisher rabbitmq.Publisher) *Dispatcher {
	return &Dispatcher{
		presence:     presence,
		participants: participants,
		publisher:    publisher,
	}
}

// MessageCreated implements hub.Notifier. It returns immediately; publishing
// happens on its own goroutine and failures are logged, never surfaced to
// the relay.
func (d *Dispatcher) MessageCreated(msg models.Message) {
	go d.dispatch(msg)
}

func (d *Dispatcher) dispatch(msg models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ids, err := d.participants.ParticipantIDs(ctx, msg.ChatID)
	if err != nil {
		log.Printf("notifications: participants of %s: %v", msg.ChatID, err)
		return
	}

	for _, userID := range ids {
		if userID == msg.SenderID || d.presence.IsOnline(userID) {
			continue
		}
		envelope := Envelope{
			SchemaVersion: 1,
			EventType:     "message_notification",
			OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
			RecipientID:   userID,
			ChatID:        msg.ChatID,
			MessageID:     msg.ID,
			SenderID:      msg.SenderID,
			Preview:       preview(msg),
			CreatedAt:     msg.CreatedAt,
		}
		if err := d.publisher.Publish(ctx, RoutingKey, envelope); err != nil {
			log.Printf("notifications: publish for %s: %v", userID, err)
			observability.IncAMQPPublishError()
		}
	}
}

func preview(msg models.Message) string {
	if msg.Content != "" {
		// Truncate on a rune boundary so a multi-byte character is never
		// split mid-sequence.
		const max = 120
		if utf8.RuneCountInString(msg.Content) > max {
			runes := []rune(msg.Content)
			return string(runes[:max])
		}
		return msg.Content
	}
	if msg.FileName != "" {
		return msg.FileName
	}
	return "attachment"
}
