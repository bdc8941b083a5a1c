package hub

import (
	"context"
	"time"

	"kiochat-ws/internal/models"
)

// MessageStore is the persistence collaborator. CreateMessage assigns the
// authoritative message id and timestamp used in broadcasts.
// UpdateMessageStatus applies a monotonic transition and reports whether it
// took effect.
type MessageStore interface {
	CreateMessage(ctx context.Context, chatID, senderID, content, fileURL, fileName string) (models.Message, error)
	GetMessage(ctx context.Context, id string) (models.Message, error)
	UpdateMessageStatus(ctx context.Context, id string, status models.MessageStatus, at time.Time) (bool, error)
}

// Notifier is told about every successfully relayed message so offline
// recipients can be pushed to out of band. Implementations must be
// fire-and-forget: failures never block or fail the relay.
type Notifier interface {
	MessageCreated(msg models.Message)
}
