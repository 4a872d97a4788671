package transfer

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	webrtc "github.com/pion/webrtc/v4"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDataChannel is an in-memory stand-in for *webrtc.DataChannel: two
// instances wired to each other's peer field let a test drive a full
// Engine/Engine exchange without standing up a real ICE session. Delivery
// is synchronous (Send invokes the peer's registered OnMessage handler
// directly), which is enough to exercise the protocol's control flow
// without modeling SCTP buffering.
type fakeDataChannel struct {
	mu             sync.Mutex
	peer           *fakeDataChannel
	onMessage      func(webrtc.DataChannelMessage)
	onClose        func()
	onBufferedLow  func()
	closed         bool
	bufferedAmount uint64
}

func newFakeChannelPair() (*fakeDataChannel, *fakeDataChannel) {
	a := &fakeDataChannel{}
	b := &fakeDataChannel{}
	a.peer = b
	b.peer = a
	return a, b
}

func (c *fakeDataChannel) SetBufferedAmountLowThreshold(uint64) {}

func (c *fakeDataChannel) OnBufferedAmountLow(f func()) {
	c.mu.Lock()
	c.onBufferedLow = f
	c.mu.Unlock()
}

func (c *fakeDataChannel) OnClose(f func()) {
	c.mu.Lock()
	c.onClose = f
	c.mu.Unlock()
}

func (c *fakeDataChannel) OnMessage(f func(webrtc.DataChannelMessage)) {
	c.mu.Lock()
	c.onMessage = f
	c.mu.Unlock()
}

func (c *fakeDataChannel) BufferedAmount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bufferedAmount
}

// setBufferedAmount lets a test simulate the channel filling or
// draining without a real SCTP send buffer behind it.
func (c *fakeDataChannel) setBufferedAmount(n uint64) {
	c.mu.Lock()
	c.bufferedAmount = n
	c.mu.Unlock()
}

// triggerBufferedAmountLow invokes the callback the engine registered
// via OnBufferedAmountLow, simulating pion's own low-watermark event.
func (c *fakeDataChannel) triggerBufferedAmountLow() {
	c.mu.Lock()
	f := c.onBufferedLow
	c.mu.Unlock()
	if f != nil {
		f()
	}
}

func (c *fakeDataChannel) ReadyState() webrtc.DataChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return webrtc.DataChannelStateClosed
	}
	return webrtc.DataChannelStateOpen
}

func (c *fakeDataChannel) Send(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelNotOpen
	}
	peer := c.peer
	c.mu.Unlock()

	peer.mu.Lock()
	handler := peer.onMessage
	peer.mu.Unlock()

	if handler != nil {
		cp := append([]byte(nil), data...)
		handler(webrtc.DataChannelMessage{Data: cp})
	}
	return nil
}

func (c *fakeDataChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	onClose := c.onClose
	c.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}

// testFile returns a queuedFile serving content from memory, alongside
// the FileInfo it declares.
func testFile(id, name string, content []byte) queuedFile {
	return queuedFile{
		info: FileInfo{
			ID:          id,
			Name:        name,
			Size:        int64(len(content)),
			TotalChunks: (len(content) + ChunkSize - 1) / ChunkSize,
		},
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

// memDest is an in-memory io.WriteCloser the receive side writes into.
type memDest struct {
	buf    bytes.Buffer
	closed bool
}

func (d *memDest) Write(p []byte) (int, error) { return d.buf.Write(p) }
func (d *memDest) Close() error                 { d.closed = true; return nil }

func newEnginePair(t *testing.T) (sender, receiver *Engine, chA, chB *fakeDataChannel) {
	t.Helper()
	chA, chB = newFakeChannelPair()
	sender = NewEngine(chA, true)
	receiver = NewEngine(chB, false)
	return sender, receiver, chA, chB
}

// startListening runs Listen in a goroutine and blocks until its
// OnMessage handler is actually registered on dc, so a caller that goes
// on to send a frame right after can't race Listen's own setup and drop
// it on the floor the way a synchronous fake transport otherwise would.
func startListening(t *testing.T, ctx context.Context, e *Engine, dc *fakeDataChannel) {
	t.Helper()
	go e.Listen(ctx)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		dc.mu.Lock()
		ready := dc.onMessage != nil
		dc.mu.Unlock()
		if ready {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Listen never registered its message handler")
}

func TestEngineSendQueueFullRoundTrip(t *testing.T) {
	sender, receiver, chA, chB := newEnginePair(t)

	fileA := testFile("file-a", "a.txt", []byte("hello beamdrop"))
	fileB := testFile("file-b", "b.txt", bytes.Repeat([]byte("x"), ChunkSize+17))
	queue := []queuedFile{fileA, fileB}

	dests := map[string]*memDest{}
	var completed []string
	var mu sync.Mutex

	receiver.OnIncomingFile = func(info FileInfo) {
		dest := &memDest{}
		mu.Lock()
		dests[info.ID] = dest
		mu.Unlock()
		require.NoError(t, receiver.Decide(Decision{Accept: true, Dest: dest}))
	}
	receiver.OnFileComplete = func(info FileInfo) {
		mu.Lock()
		completed = append(completed, info.ID)
		mu.Unlock()
	}
	receiver.OnError = func(err error) { t.Errorf("unexpected receiver error: %v", err) }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	startListening(t, ctx, receiver, chB)
	startListening(t, ctx, sender, chA)

	require.NoError(t, sender.ExportKey())
	require.NoError(t, sender.SendQueue(ctx, queue))

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"file-a", "file-b"}, completed)
	assert.Equal(t, []byte("hello beamdrop"), dests["file-a"].buf.Bytes())
	assert.Equal(t, bytes.Repeat([]byte("x"), ChunkSize+17), dests["file-b"].buf.Bytes())
	assert.True(t, dests["file-a"].closed)
	assert.True(t, dests["file-b"].closed)
}

// TestEngineSendQueueRejectCancelsBatch verifies that a FILE_REJECT on
// the first queued file aborts the whole batch: SendQueue returns an
// error wrapping ErrTransferDeclined and the remaining queued files are
// never offered to the receiver.
func TestEngineSendQueueRejectCancelsBatch(t *testing.T) {
	sender, receiver, chA, chB := newEnginePair(t)

	fileA := testFile("file-a", "a.txt", []byte("reject me"))
	fileB := testFile("file-b", "b.txt", []byte("never sent"))
	queue := []queuedFile{fileA, fileB}

	var offered []string
	var mu sync.Mutex

	receiver.OnIncomingFile = func(info FileInfo) {
		mu.Lock()
		offered = append(offered, info.ID)
		mu.Unlock()
		require.NoError(t, receiver.Decide(Decision{Accept: false}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	startListening(t, ctx, receiver, chB)
	startListening(t, ctx, sender, chA)

	require.NoError(t, sender.ExportKey())

	err := sender.SendQueue(ctx, queue)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransferDeclined)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"file-a"}, offered, "batch must stop after the first reject")
}

// TestEngineChunkDecryptFailureAbortsSession verifies that a tampered
// chunk is treated as session-fatal: the reassembly record is discarded
// and the data channel is closed rather than leaving the receiver to
// desync on the next chunk.
func TestEngineChunkDecryptFailureAbortsSession(t *testing.T) {
	sender, receiver, chA, chB := newEnginePair(t)

	dest := &memDest{}
	var recvErr error
	var mu sync.Mutex

	receiver.OnIncomingFile = func(info FileInfo) {
		require.NoError(t, receiver.Decide(Decision{Accept: true, Dest: dest}))
	}
	receiver.OnError = func(err error) {
		mu.Lock()
		recvErr = err
		mu.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	startListening(t, ctx, receiver, chB)
	startListening(t, ctx, sender, chA)

	require.NoError(t, sender.ExportKey())

	info := FileInfo{ID: "file-a", Name: "a.txt", Size: 5, TotalChunks: 1}
	payload, err := encodeFileInfo(info)
	require.NoError(t, err)
	require.NoError(t, sender.sendControl(TagFileInfo, payload))

	reply, err := sender.awaitReply(ctx)
	require.NoError(t, err)
	require.Equal(t, TagFileAccept, reply)

	iv, ciphertext := sender.sendCipher.seal([]byte("hello"))
	ciphertext[0] ^= 0xFF // tamper with the GCM tag/ciphertext
	frame := encodeFrame(TagFileChunk, encodeChunkFrame(0, info.ID, iv, ciphertext))
	require.NoError(t, sender.dc.Send(frame))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return recvErr != nil
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.ErrorIs(t, recvErr, ErrChunkDecryptFailed)
	mu.Unlock()

	receiver.recvMu.Lock()
	assert.Nil(t, receiver.recvState, "reassembly record must be discarded on decrypt failure")
	receiver.recvMu.Unlock()

	assert.Equal(t, webrtc.DataChannelStateClosed, receiver.dc.ReadyState(), "data channel must be torn down")
	assert.True(t, dest.closed, "destination handle must be released")
}

// TestEngineSendPacedWaitsForBufferedAmountLow exercises the backpressure
// path directly: sendPaced must block while BufferedAmount stays above
// BufferFull and only write once the low-water callback fires.
func TestEngineSendPacedWaitsForBufferedAmountLow(t *testing.T) {
	chA, chB := newFakeChannelPair()
	sender := NewEngine(chA, true)

	var gotFrame []byte
	var mu sync.Mutex
	chB.OnMessage(func(msg webrtc.DataChannelMessage) {
		mu.Lock()
		gotFrame = msg.Data
		mu.Unlock()
	})

	chA.setBufferedAmount(BufferFull + 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sender.sendPaced(ctx, []byte("frame")) }()

	select {
	case err := <-done:
		t.Fatalf("sendPaced returned before the buffer drained: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	chA.setBufferedAmount(0)
	chA.triggerBufferedAmountLow()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sendPaced never unblocked after the buffer drained")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte("frame"), gotFrame)
}
