package rendezvous

import "encoding/json"

// Message is the wire shape for every frame exchanged with a signaling
// client: a single JSON object carrying a discriminant "type" field plus
// whatever payload that type needs.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	RoomID  string          `json:"roomId,omitempty"`

	// client is the connection that produced this message, or the
	// connection a reply should be written to. Never serialized.
	client *Client `json:"-"`
}

// Inbound message types.
const (
	TypeCreateRoom   = "create-room"
	TypeJoinRoom     = "join-room"
	TypeLeaveRoom    = "leave-room"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
)

// Outbound message types.
const (
	TypeConnected   = "connected"
	TypeRoomCreated = "room-created"
	TypeRoomJoined  = "room-joined"
	TypePeerJoined  = "peer-joined"
	TypePeerLeft    = "peer-left"
	TypeError       = "error"
)

// Error codes, each a terminal reply to a single request.
const (
	ErrAlreadyInRoom  = "ALREADY_IN_ROOM"
	ErrRoomNotFound   = "ROOM_NOT_FOUND"
	ErrRoomFull       = "ROOM_FULL"
	ErrNotInRoom      = "NOT_IN_ROOM"
	ErrNoPeer         = "NO_PEER"
	ErrInvalidJSON    = "INVALID_JSON"
	ErrUnknownMessage = "UNKNOWN_MESSAGE"
)

// ErrorPayload is the payload of a "error" outbound message.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorMessage(code, message string) *Message {
	payload, _ := json.Marshal(ErrorPayload{Code: code, Message: message})
	return &Message{Type: TypeError, Payload: payload}
}

// ConnectedPayload is sent exactly once, right after a client's transport
// is accepted.
type ConnectedPayload struct {
	ClientID string `json:"clientId"`
}

// RoomJoinedPayload tells a joiner whether it is the room's initiator
// (always false for join-room, but carried explicitly for symmetry with
// the reference wire contract).
type RoomJoinedPayload struct {
	IsInitiator bool `json:"isInitiator"`
}

// RoomCreatedPayload accompanies the "room-created" reply.
type RoomCreatedPayload struct {
	RoomID string `json:"roomId"`
}

// JoinRoomPayload is the inbound payload of a "join-room" request.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}
