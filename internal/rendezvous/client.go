package rendezvous

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer: SDP blobs are the largest
	// frames this server ever sees, 64 KB is generous headroom.
	maxMessageSize = 64 * 1024
)

// Client wraps a single websocket connection to the signaling server.
type Client struct {
	Hub *Hub

	// ID is an opaque 128-bit session identifier, assigned on connect.
	ID string

	Conn *websocket.Conn

	// RoomID is the room the client currently occupies, or "" if none.
	RoomID string

	// Send is the outbound mailbox; WritePump drains it to the socket.
	Send chan *Message
}

// NewClient wraps a websocket connection with a freshly assigned ID.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		Hub:  hub,
		ID:   uuid.NewString(),
		Conn: conn,
		Send: make(chan *Message, 256),
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// There must be at most one reader on a connection; this goroutine is it.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("signaling read error", "client", c.ID, "err", err)
			}
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
				// Malformed frame, not a close: reply with INVALID_JSON
				// and keep the connection open per the server's contract
				// that errors never disconnect.
				select {
				case c.Send <- errorMessage(ErrInvalidJSON, "malformed message"):
				default:
				}
				continue
			}
			break
		}
		msg.client = c
		c.Hub.Broadcast <- &msg
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// There must be at most one writer on a connection; this goroutine is it.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				slog.Warn("signaling write error", "client", c.ID, "err", err)
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
