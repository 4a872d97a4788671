package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrame(t *testing.T) {
	frame := encodeFrame(TagFileChunk, []byte("payload"))
	assert.Equal(t, TagFileChunk, frame[0])

	decoded, err := decodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, TagFileChunk, decoded.Tag)
	assert.Equal(t, []byte("payload"), decoded.Payload)
}

func TestDecodeFrameRejectsEmpty(t *testing.T) {
	_, err := decodeFrame(nil)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestEncodeDecodeChunkFrame(t *testing.T) {
	iv := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	ciphertext := []byte("ciphertext-and-tag")

	raw := encodeChunkFrame(42, "file-id-123", iv, ciphertext)
	decoded, err := decodeChunkFrame(raw)
	require.NoError(t, err)

	assert.Equal(t, uint32(42), decoded.ChunkIndex)
	assert.Equal(t, "file-id-123", decoded.FileID)
	assert.Equal(t, iv, decoded.IV)
	assert.Equal(t, ciphertext, decoded.Ciphertext)
}

func TestDecodeChunkFrameRejectsTruncated(t *testing.T) {
	_, err := decodeChunkFrame([]byte{0, 0, 0, 1})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecodeChunkFrameRejectsTruncatedIDField(t *testing.T) {
	raw := []byte{0, 0, 0, 1, 10} // claims a 10-byte ID but supplies none
	_, err := decodeChunkFrame(raw)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestEncodeDecodeFileInfo(t *testing.T) {
	info := FileInfo{ID: "abc", Name: "report.pdf", Size: 1024, Type: "application/pdf", TotalChunks: 1, Path: "docs/report.pdf"}

	payload, err := encodeFileInfo(info)
	require.NoError(t, err)

	decoded, err := decodeFileInfo(payload)
	require.NoError(t, err)
	assert.Equal(t, info, decoded)
}

func TestEncodeDecodeQueueInfo(t *testing.T) {
	info := QueueInfo{TotalFiles: 3, CurrentIndex: 1}

	payload, err := encodeQueueInfo(info)
	require.NoError(t, err)

	decoded, err := decodeQueueInfo(payload)
	require.NoError(t, err)
	assert.Equal(t, info, decoded)
}
