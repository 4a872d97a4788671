package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCipherRoundTrip(t *testing.T) {
	key := make([]byte, keyLen)
	for i := range key {
		key[i] = byte(i)
	}

	sender, err := newSessionCipher(key, true)
	require.NoError(t, err)
	receiver, err := newSessionCipher(key, true)
	require.NoError(t, err)

	plaintext := []byte("hello beamdrop")
	iv, ciphertext := sender.seal(plaintext)

	got, err := receiver.open(iv, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestSessionCipherPrefixByRole(t *testing.T) {
	key := make([]byte, keyLen)

	initiator, err := newSessionCipher(key, true)
	require.NoError(t, err)
	joiner, err := newSessionCipher(key, false)
	require.NoError(t, err)

	assert.Equal(t, initiatorPrefix, initiator.prefix)
	assert.Equal(t, joinerPrefix, joiner.prefix)
	assert.NotEqual(t, initiator.prefix, joiner.prefix)
}

func TestSessionCipherCounterAdvancesIV(t *testing.T) {
	key := make([]byte, keyLen)
	c, err := newSessionCipher(key, true)
	require.NoError(t, err)

	iv1, _ := c.seal([]byte("a"))
	iv2, _ := c.seal([]byte("b"))

	assert.NotEqual(t, iv1, iv2, "counter must advance so no IV repeats within a session")
}

func TestSessionCipherOpenRejectsTamperedCiphertext(t *testing.T) {
	key := make([]byte, keyLen)
	sender, err := newSessionCipher(key, true)
	require.NoError(t, err)
	receiver, err := newSessionCipher(key, true)
	require.NoError(t, err)

	iv, ciphertext := sender.seal([]byte("payload"))
	ciphertext[0] ^= 0xFF

	_, err = receiver.open(iv, ciphertext)
	assert.ErrorIs(t, err, ErrChunkDecryptFailed)
}

func TestSessionCipherOpenRejectsShortIV(t *testing.T) {
	key := make([]byte, keyLen)
	c, err := newSessionCipher(key, true)
	require.NoError(t, err)

	_, err = c.open([]byte{0x01, 0x02}, []byte("irrelevant"))
	assert.ErrorIs(t, err, ErrChunkDecryptFailed)
}

func TestGenerateKeyLength(t *testing.T) {
	key, err := generateKey()
	require.NoError(t, err)
	assert.Len(t, key, keyLen)
}

func TestGenerateKeyIsRandom(t *testing.T) {
	a, err := generateKey()
	require.NoError(t, err)
	b, err := generateKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
