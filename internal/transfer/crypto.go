package transfer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"sync"
)

// sessionCipher encrypts or decrypts chunks for one sender direction of a
// session. Each sender owns one session_prefix and one monotonic counter;
// the IV for chunk N is session_prefix || counter, counter starting at 0
// and never reset for the cipher's lifetime, so no (key, IV) pair is ever
// reused.
type sessionCipher struct {
	gcm    cipher.AEAD
	prefix [4]byte

	mu      sync.Mutex
	counter uint64
}

// initiatorPrefix and joinerPrefix are the role-deterministic session
// prefixes: fixing them by role rather than drawing both independently
// from a CSPRNG removes the birthday-collision risk between the two
// senders entirely.
var (
	initiatorPrefix = [4]byte{0x00, 0x00, 0x00, 0x00}
	joinerPrefix    = [4]byte{0x00, 0x00, 0x00, 0x01}
)

func newSessionCipher(key []byte, isInitiator bool) (*sessionCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	prefix := joinerPrefix
	if isInitiator {
		prefix = initiatorPrefix
	}

	return &sessionCipher{gcm: gcm, prefix: prefix}, nil
}

// seal encrypts plaintext and returns (iv, ciphertext||tag), advancing
// the counter.
func (c *sessionCipher) seal(plaintext []byte) (iv, ciphertext []byte) {
	c.mu.Lock()
	counter := c.counter
	c.counter++
	c.mu.Unlock()

	iv = make([]byte, 12)
	copy(iv[:4], c.prefix[:])
	binary.BigEndian.PutUint64(iv[4:], counter)

	ciphertext = c.gcm.Seal(nil, iv, plaintext, nil)
	return iv, ciphertext
}

// open decrypts a received (iv, ciphertext) pair. Any failure — tag
// mismatch, truncated ciphertext — is reported as ErrChunkDecryptFailed,
// which callers must treat as session-fatal.
func (c *sessionCipher) open(iv, ciphertext []byte) ([]byte, error) {
	if len(iv) != 12 {
		return nil, ErrChunkDecryptFailed
	}
	plaintext, err := c.gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrChunkDecryptFailed
	}
	return plaintext, nil
}

// generateKey returns a fresh raw AES-256 key, drawn by the initiator at
// data-channel open and exported verbatim over TagEncryptionKey.
func generateKey() ([]byte, error) {
	key := make([]byte, keyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
