// Package peer drives the offer/answer/ICE handshake against the
// signaling transport and owns the data-channel lifecycle, handing the
// open channel to the transfer engine once negotiation completes.
package peer

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	webrtc "github.com/pion/webrtc/v4"

	"github.com/beamdrop/beamdrop/internal/config"
	"github.com/beamdrop/beamdrop/internal/signaling"
	"github.com/beamdrop/beamdrop/internal/utils"
)

// State is one node of the peer connection state machine.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DataChannelLabel is the single channel every session opens; the engine
// never negotiates more than one.
const DataChannelLabel = "file-transfer"

var (
	ErrHandshakeTimeout = errors.New("handshake timed out waiting for data channel")
	ErrPeerDisconnected = errors.New("peer disconnected during handshake")
)

// Session is a single logical event queue driving one peer connection
// from idle through connected and back. It holds no state shared with
// the transfer engine except the data channel it hands off on open.
type Session struct {
	cfg         *config.Config
	handler     *signaling.Handler
	isInitiator bool

	mu    sync.Mutex
	state State
	pc    *webrtc.PeerConnection

	remoteSet  bool
	pendingICE []webrtc.ICECandidateInit

	// OnDataChannel is invoked exactly once, when the data channel opens,
	// on whichever side observes the open event first. The session's
	// event loop calls it synchronously, so it must not block.
	OnDataChannel func(*webrtc.DataChannel)

	// OnStateChange is invoked on every transition.
	OnStateChange func(State)

	dcOpened      chan *webrtc.DataChannel
	iceGathered   chan *webrtc.ICECandidate
	connFailed    chan struct{}
	connDisconn   chan struct{}
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewSession creates a session that will drive the handshake as either
// the room's creator (isInitiator=true) or its joiner.
func NewSession(cfg *config.Config, handler *signaling.Handler, isInitiator bool) *Session {
	return &Session{
		cfg:         cfg,
		handler:     handler,
		isInitiator: isInitiator,
		state:       StateIdle,
		dcOpened:    make(chan *webrtc.DataChannel, 1),
		iceGathered: make(chan *webrtc.ICECandidate, 32),
		connFailed:  make(chan struct{}, 1),
		connDisconn: make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	if s.OnStateChange != nil {
		s.OnStateChange(next)
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the handshake to completion or failure. It blocks until the
// data channel opens, the peer leaves, the connection fails, or Stop is
// called. Run is the session's entire event loop; no other goroutine
// touches s.pc.
func (s *Session) Run() error {
	s.setState(StateConnecting)

	if s.isInitiator {
		select {
		case <-s.handler.PeerJoined:
			if err := s.beginAsInitiator(); err != nil {
				s.setState(StateFailed)
				return err
			}
		case <-s.handler.PeerLeft:
			s.setState(StateDisconnected)
			return ErrPeerDisconnected
		case <-s.stop:
			s.setState(StateIdle)
			return nil
		}
	}

	timeout := time.NewTimer(60 * time.Second)
	defer timeout.Stop()

	for {
		select {
		case sdp := <-s.handler.Offer:
			if s.isInitiator {
				continue
			}
			if err := s.handleOffer(sdp); err != nil {
				s.setState(StateFailed)
				return err
			}

		case sdp := <-s.handler.Answer:
			if !s.isInitiator {
				continue
			}
			if err := s.handleAnswer(sdp); err != nil {
				s.setState(StateFailed)
				return err
			}

		case cand := <-s.handler.ICECandidate:
			s.handleRemoteCandidate(cand)

		case cand := <-s.iceGathered:
			s.emitLocalCandidate(cand)

		case dc := <-s.dcOpened:
			s.setState(StateConnected)
			if s.OnDataChannel != nil {
				s.OnDataChannel(dc)
			}
			return nil

		case <-s.handler.PeerLeft:
			s.teardown()
			s.setState(StateDisconnected)
			return ErrPeerDisconnected

		case <-s.connDisconn:
			// Recoverable: ICE may renegotiate on its own, no teardown.
			s.setState(StateDisconnected)

		case <-s.connFailed:
			s.teardown()
			s.setState(StateFailed)
			return errors.New("peer connection failed")

		case <-timeout.C:
			s.teardown()
			s.setState(StateFailed)
			return ErrHandshakeTimeout

		case <-s.stop:
			s.teardown()
			s.setState(StateIdle)
			return nil
		}
	}
}

func (s *Session) beginAsInitiator() error {
	pc, err := s.newPeerConnection()
	if err != nil {
		return err
	}
	s.pc = pc

	dc, err := pc.CreateDataChannel(DataChannelLabel, nil)
	if err != nil {
		return err
	}
	s.wireDataChannel(dc)

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return err
	}
	s.handler.SendOffer(offer.SDP)
	return nil
}

func (s *Session) handleOffer(sdp string) error {
	pc, err := s.newPeerConnection()
	if err != nil {
		return err
	}
	s.pc = pc

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		s.wireDataChannel(dc)
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer, SDP: sdp,
	}); err != nil {
		return err
	}
	s.drainPendingICE()

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return err
	}
	s.handler.SendAnswer(answer.SDP)
	return nil
}

func (s *Session) handleAnswer(sdp string) error {
	if s.pc == nil {
		return errors.New("received answer before creating a peer connection")
	}
	if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer, SDP: sdp,
	}); err != nil {
		return err
	}
	s.drainPendingICE()
	return nil
}

func (s *Session) handleRemoteCandidate(p signaling.ICECandidatePayload) {
	init := webrtc.ICECandidateInit{Candidate: p.Candidate, SDPMid: &p.SDPMid}
	if p.SDPMLineIndex != nil {
		init.SDPMLineIndex = p.SDPMLineIndex
	}

	if !s.remoteSet {
		s.pendingICE = append(s.pendingICE, init)
		return
	}
	if s.pc == nil {
		return
	}
	if err := s.pc.AddICECandidate(init); err != nil {
		slog.Warn("discarding unapplicable ICE candidate", "err", err)
	}
}

func (s *Session) drainPendingICE() {
	s.remoteSet = true
	pending := s.pendingICE
	s.pendingICE = nil
	for _, cand := range pending {
		if err := s.pc.AddICECandidate(cand); err != nil {
			slog.Warn("discarding unapplicable buffered ICE candidate", "err", err)
		}
	}
}

func (s *Session) emitLocalCandidate(c *webrtc.ICECandidate) {
	init := c.ToJSON()
	payload := signaling.ICECandidatePayload{Candidate: init.Candidate}
	if init.SDPMid != nil {
		payload.SDPMid = *init.SDPMid
	}
	if init.SDPMLineIndex != nil {
		idx := *init.SDPMLineIndex
		payload.SDPMLineIndex = &idx
	}
	s.handler.SendICECandidate(payload)
}

func (s *Session) wireDataChannel(dc *webrtc.DataChannel) {
	dc.OnOpen(func() {
		select {
		case s.dcOpened <- dc:
		default:
		}
	})
}

func (s *Session) newPeerConnection() (*webrtc.PeerConnection, error) {
	iceServers := []webrtc.ICEServer{{URLs: s.cfg.GetSTUNServers()}}

	turnServers := s.cfg.GetTURNServers()
	if turnServers != nil {
		username, password := s.cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (s.cfg.ForceRelay || utils.ShouldForceRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, err
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		select {
		case s.iceGathered <- c:
		default:
			slog.Warn("dropping locally gathered ICE candidate, channel full")
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			select {
			case s.connFailed <- struct{}{}:
			default:
			}
		case webrtc.PeerConnectionStateDisconnected:
			select {
			case s.connDisconn <- struct{}{}:
			default:
			}
		}
	})

	return pc, nil
}

func (s *Session) teardown() {
	s.mu.Lock()
	pc := s.pc
	s.pc = nil
	s.mu.Unlock()

	s.pendingICE = nil
	s.remoteSet = false
	if pc != nil {
		pc.Close()
	}
}

// Stop cancels the handshake in progress, tearing down the peer
// connection if one exists and transitioning to idle.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}
