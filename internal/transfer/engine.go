package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	webrtc "github.com/pion/webrtc/v4"
)

// Decision is the receiver's answer to an incoming FileInfo offer.
type Decision struct {
	Accept bool
	Dest   io.WriteCloser // required when Accept is true, ignored otherwise
}

// receiveState tracks the file currently being written by the receiver.
type receiveState struct {
	info       FileInfo
	dest       io.WriteCloser
	nextChunk  uint32
	bytesDone  int64
}

// Engine drives the C3 wire protocol over one open WebRTC data channel.
// The channel is full-duplex: the same Engine both offers its own queue
// with SendQueue, pacing FILE_CHUNK frames against the channel's
// buffered-amount watermarks, and runs Listen as a dispatch loop that
// decrypts inbound chunks into whatever destination the caller supplies
// for an accepted file. FILE_ACCEPT/FILE_REJECT frames arriving through
// Listen are what unblocks a concurrent SendQueue waiting on the peer's
// decision.
type Engine struct {
	dc          dataChannel
	isInitiator bool
	progress    *ProgressTracker

	sendCipher *sessionCipher
	recvCipher *sessionCipher

	bufferLow chan struct{}

	// Receive-side callbacks.
	OnQueueInfo    func(QueueInfo)
	OnIncomingFile func(FileInfo)
	OnFileComplete func(FileInfo)
	OnProgress     func(ProgressSample)
	OnError        func(error)

	recvMu      sync.Mutex
	recvState   *receiveState
	keyImported bool

	decisionMu  sync.Mutex
	decisionCh  chan Decision
	awaitingFor string // file ID currently awaiting a decision, "" if none

	replyMu      sync.Mutex
	pendingReply chan byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewEngine wraps an already-open data channel. isInitiator controls
// which session-cipher prefix this engine's outbound sealer uses; it has
// no bearing on which side sends files first.
func NewEngine(dc dataChannel, isInitiator bool) *Engine {
	e := &Engine{
		dc:          dc,
		isInitiator: isInitiator,
		progress:    NewProgressTracker(),
		bufferLow:   make(chan struct{}, 1),
		decisionCh:  make(chan Decision, 1),
		closed:      make(chan struct{}),
	}
	dc.SetBufferedAmountLowThreshold(BufferLow)
	dc.OnBufferedAmountLow(func() {
		select {
		case e.bufferLow <- struct{}{}:
		default:
		}
	})
	dc.OnClose(func() {
		e.closeOnce.Do(func() { close(e.closed) })
	})
	return e
}

// Listen starts the receive dispatch loop; it returns when the channel
// closes or ctx is cancelled. Every inbound frame is handled inline, so
// a slow OnIncomingFile/Decide round trip blocks further frames from
// that same peer, which is exactly the point: only one file is ever
// in flight at a time.
func (e *Engine) Listen(ctx context.Context) {
	done := make(chan struct{})
	e.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if err := e.handleInbound(msg.Data); err != nil {
			e.reportError(err)
		}
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-e.closed:
		}
		close(done)
	}()
	<-done
}

func (e *Engine) reportError(err error) {
	if e.OnError != nil {
		e.OnError(err)
	} else {
		slog.Error("transfer engine error", "err", err)
	}
}

func (e *Engine) handleInbound(data []byte) error {
	f, err := decodeFrame(data)
	if err != nil {
		return err
	}

	switch f.Tag {
	case TagEncryptionKey:
		return e.handleKeyFrame(f.Payload)
	case TagQueueInfo:
		info, err := decodeQueueInfo(f.Payload)
		if err != nil {
			return NewError("decode queue info", err)
		}
		if e.OnQueueInfo != nil {
			e.OnQueueInfo(info)
		}
		return nil
	case TagFileInfo:
		return e.handleFileInfoFrame(f.Payload)
	case TagFileChunk:
		return e.handleChunkFrame(f.Payload)
	case TagFileComplete:
		return e.handleCompleteFrame()
	case TagFileAccept, TagFileReject:
		select {
		case e.replyCh() <- f.Tag:
		default:
			slog.Warn("dropping unexpected accept/reject frame, no sender waiting")
		}
		return nil
	default:
		slog.Warn("ignoring unknown frame tag", "tag", f.Tag)
		return nil
	}
}

// handleKeyFrame imports the session's single raw key, exported once by
// the initiator. Both sides derive two ciphers from it: one keyed to the
// sender's own role for outbound chunks, one keyed to the peer's role
// for decrypting inbound chunks. Only the non-initiator reaches this
// path, since the initiator already set up its own ciphers in
// ExportKey.
func (e *Engine) handleKeyFrame(payload []byte) error {
	e.recvMu.Lock()
	defer e.recvMu.Unlock()
	if e.keyImported {
		return ErrKeyImportFailed
	}
	if len(payload) != keyLen {
		return ErrKeyImportFailed
	}

	recvCipher, err := newSessionCipher(payload, !e.isInitiator)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyImportFailed, err)
	}
	sendCipher, err := newSessionCipher(payload, e.isInitiator)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyImportFailed, err)
	}

	e.recvCipher = recvCipher
	e.sendCipher = sendCipher
	e.keyImported = true
	return nil
}

func (e *Engine) handleFileInfoFrame(payload []byte) error {
	info, err := decodeFileInfo(payload)
	if err != nil {
		return NewError("decode file info", err)
	}

	e.decisionMu.Lock()
	if e.awaitingFor != "" {
		e.decisionMu.Unlock()
		return NewFileError("file info", info.ID, fmt.Errorf("a decision is already pending for %s", e.awaitingFor))
	}
	e.awaitingFor = info.ID
	e.decisionMu.Unlock()

	if e.OnIncomingFile != nil {
		e.OnIncomingFile(info)
	}

	decision := <-e.decisionCh

	e.decisionMu.Lock()
	e.awaitingFor = ""
	e.decisionMu.Unlock()

	if !decision.Accept {
		return e.sendControl(TagFileReject, nil)
	}

	e.recvMu.Lock()
	e.recvState = &receiveState{info: info, dest: decision.Dest}
	e.recvMu.Unlock()

	return e.sendControl(TagFileAccept, nil)
}

// Decide answers the currently pending FILE_INFO offer. It returns an
// error if no offer is awaiting a decision.
func (e *Engine) Decide(d Decision) error {
	e.decisionMu.Lock()
	pending := e.awaitingFor != ""
	e.decisionMu.Unlock()
	if !pending {
		return NewError("decide", fmt.Errorf("no file is awaiting accept/reject"))
	}
	e.decisionCh <- d
	return nil
}

func (e *Engine) handleChunkFrame(payload []byte) error {
	chunk, err := decodeChunkFrame(payload)
	if err != nil {
		return err
	}

	e.recvMu.Lock()
	state := e.recvState
	cipher := e.recvCipher
	e.recvMu.Unlock()

	if state == nil || state.info.ID != chunk.FileID {
		return ErrUnknownFile
	}
	if cipher == nil {
		return ErrKeyImportFailed
	}
	if chunk.ChunkIndex != state.nextChunk {
		return ErrChunkOutOfRange
	}

	plaintext, err := cipher.open(chunk.IV, chunk.Ciphertext)
	if err != nil {
		e.abortSession(state)
		return NewFileError("decrypt chunk", state.info.Name, ErrChunkDecryptFailed)
	}
	if _, err := state.dest.Write(plaintext); err != nil {
		return NewFileError("write chunk", state.info.Name, err)
	}

	state.nextChunk++
	state.bytesDone += int64(len(plaintext))

	if sample, ok := e.progress.Record(state.info.ID, state.bytesDone, state.info.Size); ok && e.OnProgress != nil {
		e.OnProgress(sample)
	}
	return nil
}

// abortSession discards the in-flight reassembly record and tears down
// the data channel. A GCM authentication failure means either the key
// or the stream is no longer trustworthy, so the receive desyncs
// (nextChunk is never advanced) and continuing would let a later
// FILE_COMPLETE hand the application a truncated or corrupted file;
// the only safe move is to abort the whole session, not just the chunk.
func (e *Engine) abortSession(state *receiveState) {
	e.recvMu.Lock()
	e.recvState = nil
	e.recvMu.Unlock()

	if state != nil && state.dest != nil {
		state.dest.Close()
	}
	e.dc.Close()
}

func (e *Engine) handleCompleteFrame() error {
	e.recvMu.Lock()
	state := e.recvState
	e.recvState = nil
	e.recvMu.Unlock()

	if state == nil {
		return NewError("file complete", fmt.Errorf("received FILE_COMPLETE with no file in progress"))
	}
	e.progress.Forget(state.info.ID)
	if err := state.dest.Close(); err != nil {
		return NewFileError("close destination", state.info.Name, err)
	}
	if e.OnFileComplete != nil {
		e.OnFileComplete(state.info)
	}
	return nil
}

// ExportKey draws a fresh key, derives both directions' ciphers from it,
// and sends it once as TagEncryptionKey. Only the handshake initiator
// calls this; the peer derives the same pair of ciphers on receipt in
// handleKeyFrame.
func (e *Engine) ExportKey() error {
	key, err := generateKey()
	if err != nil {
		return NewError("generate key", err)
	}

	e.recvMu.Lock()
	sendCipher, err := newSessionCipher(key, e.isInitiator)
	if err != nil {
		e.recvMu.Unlock()
		return NewError("init sealer", err)
	}
	recvCipher, err := newSessionCipher(key, !e.isInitiator)
	if err != nil {
		e.recvMu.Unlock()
		return NewError("init sealer", err)
	}
	e.sendCipher = sendCipher
	e.recvCipher = recvCipher
	e.keyImported = true
	e.recvMu.Unlock()

	return e.sendControl(TagEncryptionKey, key)
}

// SendQueue drives the full outbound protocol for queue, one file at a
// time: announce the queue, offer each file, wait for the peer's
// accept/reject, and on accept stream its chunks before moving on.
func (e *Engine) SendQueue(ctx context.Context, queue []queuedFile) error {
	if e.sendCipher == nil {
		return NewError("send queue", fmt.Errorf("no encryption key established"))
	}

	if err := e.sendControl(TagQueueInfo, mustEncodeQueueInfo(QueueInfo{TotalFiles: len(queue)})); err != nil {
		return err
	}

	for _, qf := range queue {
		if err := e.sendOne(ctx, qf); err != nil {
			if err == ErrTransferDeclined {
				return NewFileError("send queue", qf.info.Name, ErrTransferDeclined)
			}
			return err
		}
		if err := e.waitDrained(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) sendOne(ctx context.Context, qf queuedFile) error {
	infoPayload, err := encodeFileInfo(qf.info)
	if err != nil {
		return NewFileError("encode file info", qf.info.Name, err)
	}
	if err := e.sendControl(TagFileInfo, infoPayload); err != nil {
		return err
	}

	reply, err := e.awaitReply(ctx)
	if err != nil {
		return err
	}
	if reply == TagFileReject {
		return ErrTransferDeclined
	}

	src, err := qf.open()
	if err != nil {
		return NewFileError("open", qf.info.Name, err)
	}
	defer src.Close()

	if err := e.streamChunks(ctx, qf.info, src); err != nil {
		return err
	}

	return e.sendControl(TagFileComplete, nil)
}

func (e *Engine) awaitReply(ctx context.Context) (byte, error) {
	select {
	case tag := <-e.replyCh():
		return tag, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-e.closed:
		return 0, ErrChannelNotOpen
	}
}

func (e *Engine) replyCh() chan byte {
	e.replyMu.Lock()
	defer e.replyMu.Unlock()
	if e.pendingReply == nil {
		e.pendingReply = make(chan byte, 1)
	}
	return e.pendingReply
}

func (e *Engine) streamChunks(ctx context.Context, info FileInfo, src io.Reader) error {
	buf := make([]byte, ChunkSize)
	var index uint32
	var bytesSent int64

	for {
		n, readErr := io.ReadFull(src, buf)
		if n == 0 && readErr == io.EOF {
			break
		}
		if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
			return NewFileError("read", info.Name, readErr)
		}

		iv, ciphertext := e.sendCipher.seal(buf[:n])
		frame := encodeFrame(TagFileChunk, encodeChunkFrame(index, info.ID, iv, ciphertext))

		if err := e.sendPaced(ctx, frame); err != nil {
			return NewFileError("send chunk", info.Name, err)
		}

		index++
		bytesSent += int64(n)
		if sample, ok := e.progress.Record(info.ID, bytesSent, info.Size); ok && e.OnProgress != nil {
			e.OnProgress(sample)
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
	}
	e.progress.Forget(info.ID)
	return nil
}

// sendPaced blocks while the channel's buffered amount is above
// BufferFull before writing, so a fast sender never starts a write into
// a buffer that is already past BufferFull; the buffer can exceed it by
// at most the frame being written.
func (e *Engine) sendPaced(ctx context.Context, frame []byte) error {
	for e.dc.BufferedAmount() > BufferFull {
		select {
		case <-e.bufferLow:
		case <-ctx.Done():
			return ctx.Err()
		case <-e.closed:
			return ErrChannelNotOpen
		}
	}
	return e.dc.Send(frame)
}

// waitDrained polls until the send buffer has emptied completely, giving
// up after a fixed ceiling, marking the gap between one file's
// FILE_COMPLETE and the next file's FILE_INFO rather than sleeping a
// fixed duration.
func (e *Engine) waitDrained(ctx context.Context) error {
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()
	ceiling := time.NewTimer(5 * time.Second)
	defer ceiling.Stop()

	for e.dc.BufferedAmount() > 0 {
		select {
		case <-poll.C:
		case <-ceiling.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-e.closed:
			return ErrChannelNotOpen
		}
	}
	return nil
}

func (e *Engine) sendControl(tag byte, payload []byte) error {
	if e.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelNotOpen
	}
	return e.dc.Send(encodeFrame(tag, payload))
}

func mustEncodeQueueInfo(info QueueInfo) []byte {
	b, _ := encodeQueueInfo(info)
	return b
}
