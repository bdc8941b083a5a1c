package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kiochat-ws/internal/models"
)

type fakeConn struct {
	id     string
	userID string

	mu       sync.Mutex
	events   []models.ServerEvent
	failSend bool
}

func newFakeConn(id, userID string) *fakeConn {
	return &fakeConn{id: id, userID: userID}
}

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) UserID() string { return c.userID }

func (c *fakeConn) Send(ev models.ServerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("send failed")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeConn) eventsOfType(eventType string) []models.ServerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.ServerEvent
	for _, ev := range c.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type fakeStore struct {
	mu        sync.Mutex
	seq       int
	msgs      map[string]models.Message
	createErr error
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{msgs: make(map[string]models.Message)}
}

func (s *fakeStore) CreateMessage(_ context.Context, chatID, senderID, content, fileURL, fileName string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return models.Message{}, s.createErr
	}
	s.seq++
	msg := models.Message{
		ID:        fmt.Sprintf("m%d", s.seq),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		FileURL:   fileURL,
		FileName:  fileName,
		Status:    models.StatusSent,
		CreatedAt: time.Now().UTC(),
	}
	s.msgs[msg.ID] = msg
	return msg, nil
}

func (s *fakeStore) GetMessage(_ context.Context, id string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.msgs[id]
	if !ok {
		return models.Message{}, errors.New("message not found")
	}
	return msg, nil
}

func (s *fakeStore) UpdateMessageStatus(_ context.Context, id string, status models.MessageStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return false, s.updateErr
	}
	msg, ok := s.msgs[id]
	if !ok {
		return false, errors.New("message not found")
	}
	if msg.Status.AtLeast(status) {
		return false, nil
	}
	msg.Status = status
	switch status {
	case models.StatusDelivered:
		msg.DeliveredAt = &at
	case models.StatusRead:
		msg.ReadAt = &at
		if msg.DeliveredAt == nil {
			msg.DeliveredAt = &at
		}
	}
	s.msgs[id] = msg
	return true, nil
}

func (s *fakeStore) status(id string) models.MessageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgs[id].Status
}

type fakeMembership struct {
	mu      sync.Mutex
	members map[string]map[string]bool
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{members: make(map[string]map[string]bool)}
}

func (m *fakeMembership) add(chatID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[chatID] == nil {
		m.members[chatID] = make(map[string]bool)
	}
	m.members[chatID][userID] = true
}

func (m *fakeMembership) IsParticipant(_ context.Context, chatID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[chatID][userID], nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (n *fakeNotifier) MessageCreated(msg models.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

func (n *fakeNotifier) created() []models.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Message(nil), n.msgs...)
}
