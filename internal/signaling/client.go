package signaling

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for WebRTC SDP messages

	// Outbound buffer per connection.
	sendBuffer = 256
)

// DisconnectCause says why a connection terminated. Both causes feed the
// same cleanup; they are kept apart so the bad-frame path can be observed
// on its own.
type DisconnectCause int

const (
	// CausePeerClosed covers a closed or failed transport.
	CausePeerClosed DisconnectCause = iota

	// CauseProtocolError covers a malformed inbound frame.
	CauseProtocolError
)

func (c DisconnectCause) String() string {
	if c == CauseProtocolError {
		return "protocol error"
	}
	return "peer closed"
}

// Client is a wrapper for a single websocket connection (one user).
type Client struct {
	// Hub is the hub that manages this client.
	Hub *Hub

	// Conn is the websocket connection. Nil in unit tests that exercise
	// the hub without a transport.
	Conn *websocket.Conn

	// UserID is the caller-supplied identifier for this connection.
	UserID string

	// Send is the buffered channel of outbound frames. The hub pushes
	// into it; WritePump drains it onto the websocket.
	Send chan *Frame

	sendMu sync.Mutex
	closed bool
}

// NewClient wraps conn for the given user. The caller registers it with
// the hub and starts the pumps.
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan *Frame, sendBuffer),
	}
}

// trySend queues frame for delivery without ever blocking. A drop (buffer
// full, connection already closed) is logged and swallowed so one slow or
// dead peer cannot stall a broadcast to the rest of a room.
func (c *Client) trySend(frame *Frame) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		slog.Debug("dropping frame for closed connection", "user", c.UserID, "type", frame.Type)
		return
	}
	select {
	case c.Send <- frame:
	default:
		slog.Warn("send buffer full, dropping frame", "user", c.UserID, "type", frame.Type)
	}
}

// closeSend shuts the outbound channel exactly once, which stops the
// write pump. Safe against concurrent trySend calls.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// ReadPump pumps frames from the websocket connection into the hub.
//
// The application runs ReadPump in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection by
// executing all reads from this goroutine. When the pump exits, for any
// reason, the hub cleans up this connection exactly once.
func (c *Client) ReadPump() {
	cause := CausePeerClosed
	defer func() {
		c.Hub.Disconnect(c, cause)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("websocket read failed", "user", c.UserID, "err", err)
			}
			return
		}

		frame, err := ParseFrame(raw)
		if err != nil {
			if errors.Is(err, ErrUnknownType) {
				// Well-formed but not a signaling type: reject it and
				// keep the connection.
				slog.Warn("rejecting frame", "user", c.UserID, "err", err)
				c.trySend(errorFrame(err.Error()))
				continue
			}
			slog.Error("malformed frame, closing connection", "user", c.UserID, "err", err)
			cause = CauseProtocolError
			return
		}

		c.Hub.Route(c, frame)
	}
}

// WritePump pumps frames from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(frame); err != nil {
				slog.Error("websocket write failed", "user", c.UserID, "err", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
