package fieldcrypt

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := New([][]byte{testKey(t)})
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("Jane")
	require.NoError(t, err)
	require.NotEqual(t, "Jane", ciphertext)

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, "Jane", plaintext)
}

func TestDecryptFallsBackAcrossKeyList(t *testing.T) {
	k1 := testKey(t)
	k2 := testKey(t)

	old, err := New([][]byte{k1})
	require.NoError(t, err)
	ciphertext, err := old.Encrypt("sensitive")
	require.NoError(t, err)

	// K2 promoted to primary, K1 demoted but still readable.
	rotated, err := New([][]byte{k2, k1})
	require.NoError(t, err)
	plaintext, err := rotated.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, "sensitive", plaintext)

	// New writes use the new primary.
	fresh, err := rotated.Encrypt("sensitive")
	require.NoError(t, err)
	got, err := rotated.PrimaryOnly().Decrypt(fresh)
	require.NoError(t, err)
	require.Equal(t, "sensitive", got)
}

func TestDecryptFailsWithTypedErrorWhenNoKeyMatches(t *testing.T) {
	writer, err := New([][]byte{testKey(t)})
	require.NoError(t, err)
	ciphertext, err := writer.Encrypt("Jane")
	require.NoError(t, err)

	reader, err := New([][]byte{testKey(t), testKey(t)})
	require.NoError(t, err)

	_, err = reader.Decrypt(ciphertext)
	var decErr *DecryptionError
	require.ErrorAs(t, err, &decErr)
	require.Equal(t, 2, decErr.KeysTried)
}

func TestNewRejectsBadKeyLength(t *testing.T) {
	_, err := New([][]byte{[]byte("short")})
	require.Error(t, err)

	_, err = New(nil)
	require.ErrorIs(t, err, ErrNoKeys)
}

func TestParseKeyList(t *testing.T) {
	k1 := base64.StdEncoding.EncodeToString(testKey(t))
	k2 := base64.StdEncoding.EncodeToString(testKey(t))

	keys, err := ParseKeyList(k1 + ", " + k2)
	require.NoError(t, err)
	require.Len(t, keys, 2)

	_, err = ParseKeyList("  ,  ")
	require.ErrorIs(t, err, ErrNoKeys)

	_, err = ParseKeyList(strings.Repeat("!", 8))
	require.Error(t, err)
}
