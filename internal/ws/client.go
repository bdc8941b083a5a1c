package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kiochat-ws/internal/models"
)

const writeWait = 10 * time.Second

// Client wraps one websocket connection as a hub.Conn. Writes are
// serialized: gorilla connections allow a single concurrent writer.
type Client struct {
	conn *websocket.Conn
	info ConnInfo

	mu sync.Mutex
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, info ConnInfo) *Client {
	return &Client{conn: conn, info: info}
}

func (c *Client) ID() string {
	return c.info.ConnID
}

func (c *Client) UserID() string {
	return c.info.UserID
}

func (c *Client) Info() ConnInfo {
	return c.info
}

// Send writes one event to the peer.
func (c *Client) Send(ev models.ServerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(ev)
}

// ReadMessage blocks for the next frame from the peer.
func (c *Client) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.conn.Close()
}
