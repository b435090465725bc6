package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write one message.
	writeWait = 10 * time.Second

	// requestWait is the time a client has to send its request.
	requestWait = 30 * time.Second
)

// WebSocketClient wraps a websocket connection for one simulation session.
// Progress is reported from worker goroutines, so writes are serialized.
type WebSocketClient struct {
	conn *websocket.Conn
	mu   sync.Mutex // Protects writes to conn
}

// NewWebSocketClient wraps conn and limits incoming messages to maxMessageSize
// bytes (0 = no limit).
func NewWebSocketClient(conn *websocket.Conn, maxMessageSize int64) *WebSocketClient {
	if maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	return &WebSocketClient{conn: conn}
}

// ReadRequest reads the client's simulation request.
func (c *WebSocketClient) ReadRequest() (Request, error) {
	var req Request
	c.conn.SetReadDeadline(time.Now().Add(requestWait))
	err := c.conn.ReadJSON(&req)
	c.conn.SetReadDeadline(time.Time{})
	return req, err
}

// WatchClose calls cancel once the client disconnects. Messages after the
// request are discarded. It blocks until then.
func (c *WebSocketClient) WatchClose(cancel func()) {
	defer cancel()
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}

// Send writes msg as a JSON text message.
func (c *WebSocketClient) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// Finish sends a normal close frame and closes the connection.
func (c *WebSocketClient) Finish(reason string) error {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.mu.Unlock()
	return c.conn.Close()
}
