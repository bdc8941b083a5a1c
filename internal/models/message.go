package models

import "time"

// MessageStatus is the delivery lifecycle of a message. Transitions are
// monotonic: SENT -> DELIVERED -> READ, never backward.
type MessageStatus string

const (
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusRead      MessageStatus = "READ"
)

var statusRank = map[MessageStatus]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// AtLeast reports whether s is at or past other in the lifecycle.
func (s MessageStatus) AtLeast(other MessageStatus) bool {
	return statusRank[s] >= statusRank[other]
}

// Valid reports whether s is one of the known statuses.
func (s MessageStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Message is the broadcast representation of a chat message. The ID and
// CreatedAt are authoritative, assigned by the persistence layer, so clients
// can de-duplicate their optimistic echo by id.
type Message struct {
	ID          string        `db:"id" json:"id"`
	ChatID      string        `db:"chat_id" json:"chatId"`
	SenderID    string        `db:"sender_id" json:"senderId"`
	Content     string        `db:"content" json:"content"`
	FileURL     string        `db:"file_url" json:"fileUrl,omitempty"`
	FileName    string        `db:"file_name" json:"fileName,omitempty"`
	Status      MessageStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
	DeliveredAt *time.Time    `db:"delivered_at" json:"deliveredAt,omitempty"`
	ReadAt      *time.Time    `db:"read_at" json:"readAt,omitempty"`
}

// StatusUpdate is pushed to a sender's connections when one of their
// messages advances in the delivery lifecycle.
type StatusUpdate struct {
	MessageID string        `json:"messageId"`
	ChatID    string        `json:"chatId"`
	Status    MessageStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}
