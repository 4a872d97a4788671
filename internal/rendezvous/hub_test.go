package rendezvous

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return &Client{Send: make(chan *Message, 8)}
}

func TestHandleCreateRoomAssignsCode(t *testing.T) {
	h := NewHub()
	creator := newTestClient()

	h.handleCreateRoom(creator)

	require.Len(t, creator.RoomID, roomCodeLength)
	msg := <-creator.Send
	assert.Equal(t, TypeRoomCreated, msg.Type)

	room, ok := h.Rooms[creator.RoomID]
	require.True(t, ok)
	assert.Same(t, creator, room.Creator)
}

func TestHandleCreateRoomRejectsDoubleCreate(t *testing.T) {
	h := NewHub()
	creator := newTestClient()
	h.handleCreateRoom(creator)
	<-creator.Send

	h.handleCreateRoom(creator)
	msg := <-creator.Send
	assert.Equal(t, TypeError, msg.Type)
}

func TestHandleJoinRoomPairsCreatorAndJoiner(t *testing.T) {
	h := NewHub()
	creator := newTestClient()
	h.handleCreateRoom(creator)
	<-creator.Send

	joiner := newTestClient()
	h.handleJoinRoom(joiner, &Message{Type: TypeJoinRoom, Payload: marshal(JoinRoomPayload{RoomID: creator.RoomID})})

	joinedMsg := <-joiner.Send
	assert.Equal(t, TypeRoomJoined, joinedMsg.Type)

	peerMsg := <-creator.Send
	assert.Equal(t, TypePeerJoined, peerMsg.Type)

	room := h.Rooms[creator.RoomID]
	assert.Same(t, joiner, room.Joiner)
}

func TestHandleJoinRoomRejectsUnknownRoom(t *testing.T) {
	h := NewHub()
	joiner := newTestClient()

	h.handleJoinRoom(joiner, &Message{Type: TypeJoinRoom, Payload: marshal(JoinRoomPayload{RoomID: "NOSUCH"})})

	msg := <-joiner.Send
	assert.Equal(t, TypeError, msg.Type)
}

func TestHandleJoinRoomRejectsFullRoom(t *testing.T) {
	h := NewHub()
	creator := newTestClient()
	h.handleCreateRoom(creator)
	<-creator.Send

	first := newTestClient()
	h.handleJoinRoom(first, &Message{Type: TypeJoinRoom, Payload: marshal(JoinRoomPayload{RoomID: creator.RoomID})})
	<-first.Send
	<-creator.Send

	second := newTestClient()
	h.handleJoinRoom(second, &Message{Type: TypeJoinRoom, Payload: marshal(JoinRoomPayload{RoomID: creator.RoomID})})
	msg := <-second.Send
	assert.Equal(t, TypeError, msg.Type)
}

func TestLeaveRoomDeletesEmptyRoom(t *testing.T) {
	h := NewHub()
	creator := newTestClient()
	h.handleCreateRoom(creator)
	<-creator.Send
	code := creator.RoomID

	h.leaveRoom(creator)

	_, ok := h.Rooms[code]
	assert.False(t, ok)
}

func TestLeaveRoomNotifiesRemainingPeer(t *testing.T) {
	h := NewHub()
	creator := newTestClient()
	h.handleCreateRoom(creator)
	<-creator.Send

	joiner := newTestClient()
	h.handleJoinRoom(joiner, &Message{Type: TypeJoinRoom, Payload: marshal(JoinRoomPayload{RoomID: creator.RoomID})})
	<-joiner.Send
	<-creator.Send

	h.leaveRoom(joiner)

	msg := <-creator.Send
	assert.Equal(t, TypePeerLeft, msg.Type)

	room, ok := h.Rooms[creator.RoomID]
	require.True(t, ok)
	assert.Nil(t, room.Joiner)
}

func TestRelayRequiresPeer(t *testing.T) {
	h := NewHub()
	creator := newTestClient()
	h.handleCreateRoom(creator)
	<-creator.Send

	h.relay(creator, &Message{Type: TypeOffer, Payload: json.RawMessage(`{"sdp":"v=0"}`)})
	msg := <-creator.Send
	assert.Equal(t, TypeError, msg.Type)
}

func TestRelayForwardsToPeer(t *testing.T) {
	h := NewHub()
	creator := newTestClient()
	h.handleCreateRoom(creator)
	<-creator.Send

	joiner := newTestClient()
	h.handleJoinRoom(joiner, &Message{Type: TypeJoinRoom, Payload: marshal(JoinRoomPayload{RoomID: creator.RoomID})})
	<-joiner.Send
	<-creator.Send

	h.relay(creator, &Message{Type: TypeOffer, Payload: json.RawMessage(`{"sdp":"v=0"}`)})
	msg := <-joiner.Send
	assert.Equal(t, TypeOffer, msg.Type)
}
