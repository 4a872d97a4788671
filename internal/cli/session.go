package cmd

import (
	"fmt"

	webrtc "github.com/pion/webrtc/v4"

	"github.com/beamdrop/beamdrop/internal/config"
	"github.com/beamdrop/beamdrop/internal/peer"
	"github.com/beamdrop/beamdrop/internal/signaling"
	"github.com/beamdrop/beamdrop/internal/transfer"
)

// ConnectionContext owns the signaling transport for one room membership:
// connect, create-or-join, and the resulting room/initiator state the
// handshake needs. It is closed exactly once, regardless of whether the
// handshake that follows succeeds.
type ConnectionContext struct {
	Client      *signaling.Client
	Handler     *signaling.Handler
	Config      *config.Config
	RoomID      string
	IsInitiator bool
}

// NewConnectionContext dials the signaling server and starts its typed
// message dispatcher. The caller still owns room membership (create or
// join) and handshake orchestration.
func NewConnectionContext(cfg *config.Config) (*ConnectionContext, error) {
	client := signaling.NewClient(cfg.WebSocketURL)
	if err := client.Connect(); err != nil {
		return nil, transfer.NewError("connect to server", err)
	}

	handler := signaling.NewHandler(client)
	go handler.Start()

	// The server emits "connected" exactly once, immediately after
	// accept; every subsequent request assumes it already arrived.
	select {
	case <-handler.Connected:
	case errPayload := <-handler.Error:
		client.Close()
		return nil, signalingError("connect to server", errPayload)
	}

	return &ConnectionContext{Client: client, Handler: handler, Config: cfg}, nil
}

// Close tears down the signaling transport. Safe to call once per context.
func (c *ConnectionContext) Close() {
	if c.Handler != nil {
		c.Handler.Close()
	}
	if c.Client != nil {
		c.Client.Close()
	}
}

// LoadConfig applies the three-tier flag/env/default precedence and
// rejects a relay-only configuration with no TURN server to relay
// through.
func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, transfer.NewError("load config", err)
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without a TURN server configured")
	}

	return cfg, nil
}

// CreateRoom requests a fresh room and becomes its initiator.
func (c *ConnectionContext) CreateRoom() error {
	c.Handler.CreateRoom()

	select {
	case roomID := <-c.Handler.RoomCreated:
		c.RoomID = roomID
		c.IsInitiator = true
		return nil
	case errPayload := <-c.Handler.Error:
		return signalingError("create room", errPayload)
	}
}

// JoinRoom joins an existing room by code.
func (c *ConnectionContext) JoinRoom(roomID string) error {
	c.Handler.JoinRoom(roomID)

	select {
	case <-c.Handler.RoomJoined:
		c.RoomID = roomID
		c.IsInitiator = false
		return nil
	case errPayload := <-c.Handler.Error:
		return signalingError("join room", errPayload)
	}
}

// WaitForPeer blocks until the room's other occupant joins.
func (c *ConnectionContext) WaitForPeer() error {
	select {
	case <-c.Handler.PeerJoined:
		return nil
	case errPayload := <-c.Handler.Error:
		return signalingError("wait for peer", errPayload)
	}
}

// RunHandshake drives the peer connection state machine to a connected
// data channel and hands the channel to a freshly constructed transfer
// engine. The engine is not yet usable for sending until the initiator
// calls ExportKey; receivers may Listen immediately.
func (c *ConnectionContext) RunHandshake() (*transfer.Engine, error) {
	session := peer.NewSession(c.Config, c.Handler, c.IsInitiator)

	opened := make(chan *webrtc.DataChannel, 1)
	session.OnDataChannel = func(dc *webrtc.DataChannel) {
		opened <- dc
	}

	if err := session.Run(); err != nil {
		return nil, transfer.NewError("peer handshake", err)
	}

	select {
	case dc := <-opened:
		return transfer.NewEngine(dc, c.IsInitiator), nil
	default:
		return nil, transfer.NewError("peer handshake", fmt.Errorf("data channel never opened"))
	}
}

func signalingError(op string, p signaling.ErrorPayload) error {
	return transfer.NewError(op, fmt.Errorf("%s: %s", p.Code, p.Message))
}
