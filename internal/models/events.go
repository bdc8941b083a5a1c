package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPayload rejects malformed or unrecognized client events at the
// protocol boundary, before they reach any component.
var ErrInvalidPayload = errors.New("invalid payload")

// Client -> server event types.
const (
	ClientJoin       = "join"
	ClientLeave      = "leave"
	ClientMessage    = "message"
	ClientTyping     = "typing"
	ClientStopTyping = "stop_typing"
	ClientUserOnline = "user_online"
	ClientAck        = "ack"
	ClientRead       = "read"
)

// Server -> client event types.
const (
	EventMessage           = "message"
	EventMessageAck        = "message_ack"
	EventMessageStatus     = "message_status"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventUserOnline        = "user_online"
	EventUserOffline       = "user_offline"
	EventOnlineUsers       = "online_users"
	EventError             = "error"
)

// Error codes carried by EventError payloads.
const (
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeNotAMember         = "not_a_member"
	ErrCodePersistenceFailure = "persistence_failure"
)

// ClientEvent is the closed set of events a client may emit.
type ClientEvent interface {
	clientEvent()
}

type JoinEvent struct {
	ChatID string `json:"chatId"`
}

type LeaveEvent struct {
	ChatID string `json:"chatId"`
}

type MessageEvent struct {
	ChatID   string `json:"chatId"`
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

type TypingEvent struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type StopTypingEvent struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

type UserOnlineEvent struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

type AckEvent struct {
	MessageID string `json:"messageId"`
}

type ReadEvent struct {
	MessageID string `json:"messageId"`
}

func (JoinEvent) clientEvent()       {}
func (LeaveEvent) clientEvent()      {}
func (MessageEvent) clientEvent()    {}
func (TypingEvent) clientEvent()     {}
func (StopTypingEvent) clientEvent() {}
func (UserOnlineEvent) clientEvent() {}
func (AckEvent) clientEvent()        {}
func (ReadEvent) clientEvent()       {}

// DecodeClientEvent parses a raw frame into one of the closed client event
// variants, validating required fields.
func DecodeClientEvent(data []byte) (ClientEvent, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch probe.Type {
	case ClientJoin:
		var ev JoinEvent
		if err := decodeInto(data, &ev); err != nil {
			return nil, err
		}
		if ev.ChatID == "" {
			return nil, fmt.Errorf("%w: join requires chatId", ErrInvalidPayload)
		}
		return ev, nil
	case ClientLeave:
		var ev LeaveEvent
		if err := decodeInto(data, &ev); err != nil {
			return nil, err
		}
		if ev.ChatID == "" {
			return nil, fmt.Errorf("%w: leave requires chatId", ErrInvalidPayload)
		}
		return ev, nil
	case ClientMessage:
		var ev MessageEvent
		if err := decodeInto(data, &ev); err != nil {
			return nil, err
		}
		if ev.ChatID == "" {
			return nil, fmt.Errorf("%w: message requires chatId", ErrInvalidPayload)
		}
		if ev.Content == "" && ev.FileURL == "" {
			return nil, fmt.Errorf("%w: message requires content or file", ErrInvalidPayload)
		}
		return ev, nil
	case ClientTyping:
		var ev TypingEvent
		if err := decodeInto(data, &ev); err != nil {
			return nil, err
		}
		if ev.ChatID == "" || ev.UserID == "" {
			return nil, fmt.Errorf("%w: typing requires chatId and userId", ErrInvalidPayload)
		}
		return ev, nil
	case ClientStopTyping:
		var ev StopTypingEvent
		if err := decodeInto(data, &ev); err != nil {
			return nil, err
		}
		if ev.ChatID == "" || ev.UserID == "" {
			return nil, fmt.Errorf("%w: stop_typing requires chatId and userId", ErrInvalidPayload)
		}
		return ev, nil
	case ClientUserOnline:
		var ev UserOnlineEvent
		if err := decodeInto(data, &ev); err != nil {
			return nil, err
		}
		if ev.ChatID == "" || ev.UserID == "" {
			return nil, fmt.Errorf("%w: user_online requires chatId and userId", ErrInvalidPayload)
		}
		return ev, nil
	case ClientAck:
		var ev AckEvent
		if err := decodeInto(data, &ev); err != nil {
			return nil, err
		}
		if ev.MessageID == "" {
			return nil, fmt.Errorf("%w: ack requires messageId", ErrInvalidPayload)
		}
		return ev, nil
	case ClientRead:
		var ev ReadEvent
		if err := decodeInto(data, &ev); err != nil {
			return nil, err
		}
		if ev.MessageID == "" {
			return nil, fmt.Errorf("%w: read requires messageId", ErrInvalidPayload)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidPayload, probe.Type)
	}
}

func decodeInto(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// ServerEvent is pushed to clients over the websocket.
type ServerEvent struct {
	Type     string        `json:"type"`
	ChatID   string        `json:"chatId,omitempty"`
	Message  *Message      `json:"message,omitempty"`
	Status   *StatusUpdate `json:"status,omitempty"`
	User     *TypingUser   `json:"user,omitempty"`
	LastSeen *time.Time    `json:"lastSeen,omitempty"`
	Users    []OnlineUser  `json:"users,omitempty"`
	Error    string        `json:"error,omitempty"`
	Detail   string        `json:"detail,omitempty"`
}

// NewErrorEvent builds an error event for the originating connection.
func NewErrorEvent(code, detail string) ServerEvent {
	return ServerEvent{Type: EventError, Error: code, Detail: detail}
}
