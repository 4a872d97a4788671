package transfer

import (
	"encoding/binary"
	"encoding/json"
)

// FileInfo is the JSON payload of a FILE_INFO frame.
type FileInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	Type        string `json:"type"`
	TotalChunks int    `json:"totalChunks"`
	Path        string `json:"path,omitempty"`
}

// QueueInfo is the JSON payload of a QUEUE_INFO frame.
type QueueInfo struct {
	TotalFiles   int `json:"totalFiles"`
	CurrentIndex int `json:"currentIndex"`
}

// chunkFrame is the decoded form of a FILE_CHUNK payload.
type chunkFrame struct {
	ChunkIndex uint32
	FileID     string
	IV         []byte
	Ciphertext []byte
}

// encodeChunkFrame lays out a FILE_CHUNK payload per the wire contract:
//
//	[ chunk_index : uint32 ]
//	[ file_id_len : uint8  ][ file_id_bytes ]
//	[ iv_len      : uint8  ][ iv_bytes      ]
//	[ ciphertext_and_gcm_tag : remainder    ]
func encodeChunkFrame(index uint32, fileID string, iv, ciphertext []byte) []byte {
	idBytes := []byte(fileID)
	buf := make([]byte, 0, 4+1+len(idBytes)+1+len(iv)+len(ciphertext))

	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], index)
	buf = append(buf, idxBuf[:]...)

	buf = append(buf, byte(len(idBytes)))
	buf = append(buf, idBytes...)

	buf = append(buf, byte(len(iv)))
	buf = append(buf, iv...)

	buf = append(buf, ciphertext...)
	return buf
}

func decodeChunkFrame(payload []byte) (*chunkFrame, error) {
	if len(payload) < 4+1 {
		return nil, ErrMalformedFrame
	}
	index := binary.BigEndian.Uint32(payload[:4])
	pos := 4

	idLen := int(payload[pos])
	pos++
	if pos+idLen > len(payload) {
		return nil, ErrMalformedFrame
	}
	fileID := string(payload[pos : pos+idLen])
	pos += idLen

	if pos+1 > len(payload) {
		return nil, ErrMalformedFrame
	}
	ivSize := int(payload[pos])
	pos++
	if pos+ivSize > len(payload) {
		return nil, ErrMalformedFrame
	}
	iv := payload[pos : pos+ivSize]
	pos += ivSize

	ciphertext := payload[pos:]

	return &chunkFrame{
		ChunkIndex: index,
		FileID:     fileID,
		IV:         iv,
		Ciphertext: ciphertext,
	}, nil
}

func encodeFileInfo(info FileInfo) ([]byte, error) {
	return json.Marshal(info)
}

func decodeFileInfo(payload []byte) (FileInfo, error) {
	var info FileInfo
	err := json.Unmarshal(payload, &info)
	return info, err
}

func encodeQueueInfo(info QueueInfo) ([]byte, error) {
	return json.Marshal(info)
}

func decodeQueueInfo(payload []byte) (QueueInfo, error) {
	var info QueueInfo
	err := json.Unmarshal(payload, &info)
	return info, err
}

// frame is a single tagged wire message.
type frame struct {
	Tag     byte
	Payload []byte
}

func encodeFrame(tag byte, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = tag
	copy(out[1:], payload)
	return out
}

func decodeFrame(data []byte) (frame, error) {
	if len(data) < 1 {
		return frame{}, ErrMalformedFrame
	}
	return frame{Tag: data[0], Payload: data[1:]}, nil
}
