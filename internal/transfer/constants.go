package transfer

// Wire message tags. Every data-channel frame is one tag byte followed
// by a type-specific payload.
const (
	TagFileInfo      byte = 0x01
	TagFileChunk     byte = 0x02
	TagFileComplete  byte = 0x03
	TagFileAccept    byte = 0x04
	TagFileReject    byte = 0x05
	TagProgress      byte = 0x10 // reserved, unused
	TagEncryptionKey byte = 0x20
	TagQueueInfo     byte = 0x21
)

const (
	// ChunkSize is the fixed plaintext chunk size; the final chunk of a
	// file may be shorter.
	ChunkSize = 65536

	// BufferFull and BufferLow are the backpressure watermarks on the
	// data channel's send buffer.
	BufferFull = 262144
	BufferLow  = 131072

	// ivLen is the GCM nonce length, always present on the wire.
	ivLen = 12

	// keyLen is the raw AES-256 key length carried by TagEncryptionKey.
	keyLen = 32

	// progressSampleInterval is the minimum wall-clock gap between
	// throughput samples.
	progressSampleInterval = 100 // milliseconds
)
