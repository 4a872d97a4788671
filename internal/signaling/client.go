package signaling

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beamdrop/beamdrop/internal/dns"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// backoffSchedule is the reconnect delay sequence: capped at its final
// value, reset to the start on a successful reconnect.
var backoffSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// Client manages the WebSocket connection to the signaling server,
// including unattended reconnection with backoff.
type Client struct {
	serverURL string

	incoming chan *Message
	outgoing chan *Message
	closed   chan struct{}

	mu       sync.Mutex
	conn     *websocket.Conn
	closedBy bool
}

// NewClient creates a signaling client for the given server URL. Call
// Connect to establish the transport.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *Message, 32),
		outgoing:  make(chan *Message, 64),
		closed:    make(chan struct{}),
	}
}

// Connect dials the signaling server and starts the read/write pumps. If
// the connection drops unexpectedly afterwards, the client reconnects on
// its own with backoff; Connect itself only reports the first dial.
func (c *Client) Connect() error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.setConn(conn)
	go c.readPump(conn)
	go c.writePump(conn)
	return nil
}

func (c *Client) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	dialer := *websocket.DefaultDialer
	dialer.NetDial = func(network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		resolvedIP, err := dns.Lookup(host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}
		return net.Dial(network, net.JoinHostPort(resolvedIP, port))
	}

	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) isClosedByUser() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedBy
}

// readPump reads frames from one connection generation. On unexpected
// close it hands off to reconnectLoop instead of closing the incoming
// channel, so callers never observe a reconnect as a permanent close.
func (c *Client) readPump(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			conn.Close()
			if !c.isClosedByUser() {
				slog.Warn("signaling connection lost, reconnecting", "err", err)
				go c.reconnectLoop()
			}
			return
		}
		select {
		case c.incoming <- &msg:
		case <-c.closed:
			return
		}
	}
}

func (c *Client) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.outgoing:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		c.mu.Lock()
		stillCurrent := c.conn == conn
		c.mu.Unlock()
		if !stillCurrent {
			return
		}
	}
}

// reconnectLoop redials with the backoff schedule until it succeeds or
// the client is explicitly closed. Messages queued in outgoing while
// disconnected are flushed once the new writePump starts.
func (c *Client) reconnectLoop() {
	attempt := 0
	for {
		select {
		case <-c.closed:
			return
		default:
		}

		delay := backoffSchedule[minInt(attempt, len(backoffSchedule)-1)]
		time.Sleep(delay)

		conn, err := c.dial()
		if err != nil {
			slog.Warn("signaling reconnect attempt failed", "err", err, "delay", delay)
			attempt++
			continue
		}

		slog.Info("signaling reconnected")
		c.setConn(conn)
		go c.readPump(conn)
		go c.writePump(conn)
		return
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// SendMessage enqueues a message for delivery.
func (c *Client) SendMessage(msg *Message) {
	select {
	case c.outgoing <- msg:
	case <-c.closed:
	}
}

// Incoming returns the channel of inbound messages, stable across
// reconnects.
func (c *Client) Incoming() <-chan *Message {
	return c.incoming
}

// Close tears down the connection permanently; no further reconnect is
// attempted.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closedBy {
		c.mu.Unlock()
		return
	}
	c.closedBy = true
	conn := c.conn
	c.mu.Unlock()

	close(c.closed)
	if conn != nil {
		conn.Close()
	}
}
