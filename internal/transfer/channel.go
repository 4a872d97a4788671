package transfer

import webrtc "github.com/pion/webrtc/v4"

// dataChannel is the slice of *webrtc.DataChannel's API the engine
// drives. *webrtc.DataChannel satisfies this implicitly; narrowing to
// an interface lets tests pipe two engines together over an in-memory
// transport instead of standing up a real ICE session.
type dataChannel interface {
	SetBufferedAmountLowThreshold(threshold uint64)
	OnBufferedAmountLow(f func())
	OnClose(f func())
	OnMessage(f func(webrtc.DataChannelMessage))
	Send(data []byte) error
	BufferedAmount() uint64
	ReadyState() webrtc.DataChannelState
	Close() error
}
