package signaling

import (
	"encoding/json"
	"sync"
)

// Handler dispatches inbound signaling messages onto typed channels so
// callers never switch on a raw Message.Type string themselves.
type Handler struct {
	client *Client

	Connected   chan string
	RoomCreated chan string
	RoomJoined  chan bool // isInitiator, always false on this channel
	PeerJoined  chan struct{}
	PeerLeft    chan struct{}
	Offer       chan string
	Answer      chan string
	ICECandidate chan ICECandidatePayload
	Error       chan ErrorPayload

	closeOnce sync.Once
}

// NewHandler wraps client with typed dispatch. Call Start to begin
// draining client.Incoming().
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:       client,
		Connected:    make(chan string, 1),
		RoomCreated:  make(chan string, 1),
		RoomJoined:   make(chan bool, 1),
		PeerJoined:   make(chan struct{}, 1),
		PeerLeft:     make(chan struct{}, 1),
		Offer:        make(chan string, 1),
		Answer:       make(chan string, 1),
		ICECandidate: make(chan ICECandidatePayload, 32),
		Error:        make(chan ErrorPayload, 1),
	}
}

// Start consumes client.Incoming(), routing each message to its typed
// channel. The client never closes Incoming, so Start does not return;
// run it in its own goroutine.
func (h *Handler) Start() {
	for msg := range h.client.Incoming() {
		switch msg.Type {
		case TypeConnected:
			var p ConnectedPayload
			if json.Unmarshal(msg.Payload, &p) == nil {
				h.Connected <- p.ClientID
			}

		case TypeRoomCreated:
			var p RoomCreatedPayload
			if json.Unmarshal(msg.Payload, &p) == nil {
				h.RoomCreated <- p.RoomID
			}

		case TypeRoomJoined:
			var p RoomJoinedPayload
			json.Unmarshal(msg.Payload, &p)
			h.RoomJoined <- p.IsInitiator

		case TypePeerJoined:
			h.PeerJoined <- struct{}{}

		case TypePeerLeft:
			h.PeerLeft <- struct{}{}

		case TypeOffer:
			var p SDPPayload
			if json.Unmarshal(msg.Payload, &p) == nil {
				h.Offer <- p.SDP
			}

		case TypeAnswer:
			var p SDPPayload
			if json.Unmarshal(msg.Payload, &p) == nil {
				h.Answer <- p.SDP
			}

		case TypeICECandidate:
			var p ICECandidatePayload
			if json.Unmarshal(msg.Payload, &p) == nil {
				h.ICECandidate <- p
			}

		case TypeError:
			var p ErrorPayload
			json.Unmarshal(msg.Payload, &p)
			h.Error <- p
		}
	}
}

// CreateRoom requests a new room.
func (h *Handler) CreateRoom() {
	h.client.SendMessage(newMessage(TypeCreateRoom, nil))
}

// JoinRoom requests to join roomID.
func (h *Handler) JoinRoom(roomID string) {
	h.client.SendMessage(newMessage(TypeJoinRoom, JoinRoomPayload{RoomID: roomID}))
}

// LeaveRoom leaves the current room, if any.
func (h *Handler) LeaveRoom() {
	h.client.SendMessage(newMessage(TypeLeaveRoom, nil))
}

// SendOffer relays a local SDP offer.
func (h *Handler) SendOffer(sdp string) {
	h.client.SendMessage(newMessage(TypeOffer, SDPPayload{SDP: sdp}))
}

// SendAnswer relays a local SDP answer.
func (h *Handler) SendAnswer(sdp string) {
	h.client.SendMessage(newMessage(TypeAnswer, SDPPayload{SDP: sdp}))
}

// SendICECandidate relays a locally gathered ICE candidate.
func (h *Handler) SendICECandidate(c ICECandidatePayload) {
	h.client.SendMessage(newMessage(TypeICECandidate, c))
}

// Close releases all channels. Safe to call more than once.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.Connected)
		close(h.RoomCreated)
		close(h.RoomJoined)
		close(h.PeerJoined)
		close(h.PeerLeft)
		close(h.Offer)
		close(h.Answer)
		close(h.ICECandidate)
		close(h.Error)
	})
}
