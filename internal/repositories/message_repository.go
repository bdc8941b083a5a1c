package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"kiochat-ws/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, chat_id, sender_id, content, file_url, file_name, status, created_at, delivered_at, read_at`

// MessageRepository is the persistence collaborator for chat messages. It
// assigns the authoritative message id and creation timestamp.
type MessageRepository interface {
	CreateMessage(ctx context.Context, chatID, senderID, content, fileURL, fileName string) (models.Message, error)
	GetMessage(ctx context.Context, id string) (models.Message, error)
	UpdateMessageStatus(ctx context.Context, id string, status models.MessageStatus, at time.Time) (bool, error)
	ListMessages(ctx context.Context, chatID, cursor string, limit int) ([]models.Message, string, error)
	MarkChatRead(ctx context.Context, chatID, readerID string) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message with status SENT and returns the stored row.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID, senderID, content, fileURL, fileName string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (id, chat_id, sender_id, content, file_url, file_name, status)
         VALUES ($1, $2, $3, $4, $5, $6, 'SENT')
         RETURNING `+messageColumns,
		uuid.NewString(), chatID, senderID, content, fileURL, fileName).
		StructScan(&msg)
	return msg, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, id string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// UpdateMessageStatus applies a monotonic status transition. The guard in
// the WHERE clause keeps the lifecycle from ever moving backward, so the
// returned bool is false when the message was already at or past the target.
func (r *MessageRepo) UpdateMessageStatus(ctx context.Context, id string, status models.MessageStatus, at time.Time) (bool, error) {
	var res sql.Result
	var err error
	switch status {
	case models.StatusDelivered:
		res, err = r.db.ExecContext(ctx,
			`UPDATE messages SET status='DELIVERED', delivered_at=$2
             WHERE id=$1 AND status='SENT'`, id, at)
	case models.StatusRead:
		res, err = r.db.ExecContext(ctx,
			`UPDATE messages SET status='READ', read_at=$2, delivered_at=COALESCE(delivered_at, $2)
             WHERE id=$1 AND status IN ('SENT','DELIVERED')`, id, at)
	default:
		return false, nil
	}
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListMessages returns one page of chat history, oldest first, with a cursor
// to the next (older) page.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID, cursor string, limit int) ([]models.Message, string, error) {
	var msgs []models.Message
	var err error
	if cursor == "" {
		err = r.db.SelectContext(ctx, &msgs,
			`SELECT `+messageColumns+` FROM messages
             WHERE chat_id=$1
             ORDER BY created_at DESC, id DESC
             LIMIT $2`, chatID, limit)
	} else {
		err = r.db.SelectContext(ctx, &msgs,
			`SELECT `+messageColumns+` FROM messages
             WHERE chat_id=$1
             AND (created_at, id) < (SELECT created_at, id FROM messages WHERE id=$2)
             ORDER BY created_at DESC, id DESC
             LIMIT $3`, chatID, cursor, limit)
	}
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(msgs) == limit {
		nextCursor = msgs[len(msgs)-1].ID
	}

	// Fetched newest-first for the cursor, rendered oldest-first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nextCursor, nil
}

// MarkChatRead marks every SENT or DELIVERED message in the chat not sent by
// the reader as READ, returning the updated rows for live status fan-out.
func (r *MessageRepo) MarkChatRead(ctx context.Context, chatID, readerID string) ([]models.Message, error) {
	now := time.Now().UTC()
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`UPDATE messages SET status='READ', read_at=$3, delivered_at=COALESCE(delivered_at, $3)
         WHERE chat_id=$1 AND sender_id<>$2 AND status IN ('SENT','DELIVERED')
         RETURNING `+messageColumns, chatID, readerID, now)
	return msgs, err
}
