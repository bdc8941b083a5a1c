package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"kiochat-ws/internal/auth"
	"kiochat-ws/internal/hub"
	"kiochat-ws/internal/models"
	"kiochat-ws/internal/observability"
)

// Gateway owns the websocket endpoint: it authenticates the handshake,
// registers the connection, and dispatches inbound events to the core.
type Gateway struct {
	registry  *hub.Registry
	rooms     *hub.RoomRouter
	presence  *hub.PresenceTracker
	typing    *hub.TypingCoordinator
	relay     *hub.Relay
	status    *hub.StatusTracker
	validator auth.Validator
}

// NewGateway constructs a Gateway.
func NewGateway(registry *hub.Registry, rooms *hub.RoomRouter, presence *hub.PresenceTracker, typing *hub.TypingCoordinator, relay *hub.Relay, status *hub.StatusTracker, validator auth.Validator) *Gateway {
	return &Gateway{
		registry:  registry,
		rooms:     rooms,
		presence:  presence,
		typing:    typing,
		relay:     relay,
		status:    status,
		validator: validator,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and starts its read loop.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("kiochat-ws/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	userID, err := g.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info)
	g.registry.Register(client)

	observability.IncWSActive("chat")
	observability.IncWSEvent("chat", "ws_connect")
	publishConnEvent(context.Background(), info, "ws_connect", "")

	go g.readLoop(client)
}

func (g *Gateway) readLoop(client *Client) {
	var closeReason string
	defer func() {
		g.disconnect(client)
		observability.DecWSActive("chat")
		observability.IncWSEvent("chat", "ws_disconnect")
		publishConnEvent(context.Background(), client.Info(), "ws_disconnect", closeReason)
		client.Close()
	}()

	for {
		data, err := client.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("chat", "ws_error")
				publishConnEvent(context.Background(), client.Info(), "ws_error", closeReason)
			}
			return
		}
		g.dispatch(client, data)
	}
}

// disconnect cleans a closed connection out of every structure. The
// registry transition fires first, while room membership is still intact, so
// the presence tracker can find the rooms to announce the offline state to.
func (g *Gateway) disconnect(client *Client) {
	g.registry.Unregister(client.ID())
	g.rooms.PurgeConn(client.ID())
	if !g.presence.IsOnline(client.UserID()) {
		g.typing.StopUser(client.UserID())
	}
}

func (g *Gateway) dispatch(client *Client, data []byte) {
	ev, err := models.DecodeClientEvent(data)
	if err != nil {
		observability.IncWSEvent("chat", "invalid_payload")
		g.sendError(client, models.ErrCodeInvalidPayload, err.Error())
		return
	}

	switch ev := ev.(type) {
	case models.JoinEvent:
		g.rooms.Join(client, ev.ChatID)
		observability.IncWSEvent("chat", "join")

	case models.LeaveEvent:
		g.rooms.Leave(client.ID(), ev.ChatID)
		g.typing.Stop(ev.ChatID, client.UserID())
		observability.IncWSEvent("chat", "leave")

	case models.MessageEvent:
		if ev.SenderID != "" && ev.SenderID != client.UserID() {
			g.sendError(client, models.ErrCodeInvalidPayload, "senderId does not match the authenticated user")
			return
		}
		if _, err := g.relay.Relay(context.Background(), client, ev); err != nil {
			switch {
			case errors.Is(err, hub.ErrNotAMember):
				observability.IncWSEvent("chat", "relay_rejected")
				g.sendError(client, models.ErrCodeNotAMember, "join the chat before sending messages")
			case errors.Is(err, hub.ErrPersistence):
				observability.IncWSEvent("chat", "relay_failed")
				g.sendError(client, models.ErrCodePersistenceFailure, "message could not be stored")
			default:
				log.Printf("ws: relay: %v", err)
			}
		}

	case models.TypingEvent:
		if ev.UserID != client.UserID() {
			g.sendError(client, models.ErrCodeInvalidPayload, "userId does not match the authenticated user")
			return
		}
		g.typing.Start(ev.ChatID, models.TypingUser{UserID: ev.UserID, Username: ev.Username, Avatar: ev.Avatar})

	case models.StopTypingEvent:
		if ev.UserID != client.UserID() {
			g.sendError(client, models.ErrCodeInvalidPayload, "userId does not match the authenticated user")
			return
		}
		g.typing.Stop(ev.ChatID, ev.UserID)

	case models.UserOnlineEvent:
		if ev.UserID != client.UserID() {
			g.sendError(client, models.ErrCodeInvalidPayload, "userId does not match the authenticated user")
			return
		}
		if !g.rooms.IsMember(client.ID(), ev.ChatID) {
			g.sendError(client, models.ErrCodeNotAMember, "join the chat before announcing presence")
			return
		}
		g.presence.Announce(ev.ChatID, models.TypingUser{UserID: ev.UserID, Username: ev.Username, Avatar: ev.Avatar})
		snapshot := models.ServerEvent{
			Type:   models.EventOnlineUsers,
			ChatID: ev.ChatID,
			Users:  g.presence.Snapshot(ev.ChatID),
		}
		if err := client.Send(snapshot); err != nil {
			log.Printf("ws: send online_users to %s: %v", client.ID(), err)
		}

	case models.AckEvent:
		if err := g.status.MarkDelivered(context.Background(), ev.MessageID, client.UserID()); err != nil {
			log.Printf("ws: mark delivered %s: %v", ev.MessageID, err)
		}

	case models.ReadEvent:
		if err := g.status.MarkRead(context.Background(), ev.MessageID, client.UserID()); err != nil {
			log.Printf("ws: mark read %s: %v", ev.MessageID, err)
		}
	}
}

func (g *Gateway) sendError(client *Client, code, detail string) {
	if err := client.Send(models.NewErrorEvent(code, detail)); err != nil {
		log.Printf("ws: send error %s to %s: %v", code, client.ID(), err)
	}
}

func (g *Gateway) validateToken(header string) (string, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return g.validator.Validate(parts[1])
	}
	return "", fmt.Errorf("invalid token")
}

func publishConnEvent(ctx context.Context, info ConnInfo, event, reason string) {
	payload := map[string]any{
		"ws": map[string]any{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events.connections", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, headers)
}
