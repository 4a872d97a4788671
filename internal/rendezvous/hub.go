package rendezvous

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

const roomCodeLength = 6

// Hub is the single owner of all room and client state. It runs one
// goroutine that drains Register/Unregister/Broadcast, so every mutation
// is observed as if serialized — no locks are needed anywhere else.
type Hub struct {
	Rooms map[string]*Room

	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan *Message
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *Message, 256),
	}
}

// generateRoomCode draws a 6-character uppercase alphanumeric code from a
// fresh UUIDv4 and retries on collision against the live room set.
func (h *Hub) generateRoomCode() string {
	for {
		raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
		code := raw[:roomCodeLength]
		if _, taken := h.Rooms[code]; !taken {
			return code
		}
	}
}

func (h *Hub) send(c *Client, msg *Message) {
	select {
	case c.Send <- msg:
	default:
		slog.Warn("dropping signaling message, client mailbox full", "client", c.ID)
	}
}

// Run is the hub's event loop: the single goroutine that owns Rooms.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			slog.Info("signaling client connected", "client", client.ID)
			h.send(client, &Message{Type: TypeConnected, Payload: marshal(ConnectedPayload{ClientID: client.ID})})

		case client := <-h.Unregister:
			slog.Info("signaling client disconnected", "client", client.ID)
			h.leaveRoom(client)
			close(client.Send)

		case message := <-h.Broadcast:
			h.dispatch(message)
		}
	}
}

func (h *Hub) dispatch(message *Message) {
	client := message.client
	switch message.Type {
	case TypeCreateRoom:
		h.handleCreateRoom(client)
	case TypeJoinRoom:
		h.handleJoinRoom(client, message)
	case TypeLeaveRoom:
		h.leaveRoom(client)
	case TypeOffer, TypeAnswer, TypeICECandidate:
		h.relay(client, message)
	default:
		slog.Warn("unknown signaling message type", "type", message.Type, "client", client.ID)
		h.send(client, errorMessage(ErrUnknownMessage, "unknown message type: "+message.Type))
	}
}

func (h *Hub) handleCreateRoom(client *Client) {
	if client.RoomID != "" {
		h.send(client, errorMessage(ErrAlreadyInRoom, "already in a room"))
		return
	}

	code := h.generateRoomCode()
	h.Rooms[code] = &Room{ID: code, Creator: client}
	client.RoomID = code

	slog.Info("room created", "room", code, "client", client.ID)
	h.send(client, &Message{Type: TypeRoomCreated, Payload: marshal(RoomCreatedPayload{RoomID: code})})
}

func (h *Hub) handleJoinRoom(client *Client, message *Message) {
	if client.RoomID != "" {
		h.send(client, errorMessage(ErrAlreadyInRoom, "already in a room"))
		return
	}

	var payload JoinRoomPayload
	if err := json.Unmarshal(message.Payload, &payload); err != nil {
		h.send(client, errorMessage(ErrInvalidJSON, "malformed join-room payload"))
		return
	}
	code := strings.ToUpper(payload.RoomID)

	room, ok := h.Rooms[code]
	if !ok {
		h.send(client, errorMessage(ErrRoomNotFound, "room not found"))
		return
	}
	if room.Joiner != nil {
		h.send(client, errorMessage(ErrRoomFull, "room is full"))
		return
	}

	room.Joiner = client
	client.RoomID = code

	slog.Info("client joined room", "room", code, "client", client.ID)

	// room-joined must land on the joiner before peer-joined lands on the
	// creator; sending in this order preserves that on a single goroutine.
	h.send(client, &Message{Type: TypeRoomJoined, RoomID: code, Payload: marshal(RoomJoinedPayload{IsInitiator: false})})
	if room.Creator != nil {
		h.send(room.Creator, &Message{Type: TypePeerJoined, RoomID: code})
	}
}

func (h *Hub) relay(client *Client, message *Message) {
	if client.RoomID == "" {
		h.send(client, errorMessage(ErrNotInRoom, "not in a room"))
		return
	}
	room, ok := h.Rooms[client.RoomID]
	if !ok {
		h.send(client, errorMessage(ErrRoomNotFound, "room not found"))
		return
	}
	peer := room.Peer(client)
	if peer == nil {
		h.send(client, errorMessage(ErrNoPeer, "no peer in room"))
		return
	}
	h.send(peer, &Message{Type: message.Type, RoomID: room.ID, Payload: message.Payload})
}

func (h *Hub) leaveRoom(client *Client) {
	roomID := client.RoomID
	if roomID == "" {
		return
	}
	client.RoomID = ""

	room, ok := h.Rooms[roomID]
	if !ok {
		return
	}

	peer := room.Peer(client)
	empty := room.Remove(client)
	if empty {
		delete(h.Rooms, roomID)
		slog.Info("room deleted", "room", roomID)
		return
	}
	if peer != nil {
		h.send(peer, &Message{Type: TypePeerLeft, RoomID: roomID})
	}
}

func marshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal signaling payload", "err", err)
		return nil
	}
	return b
}
