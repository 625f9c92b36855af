// Package fieldcrypt encrypts individual sensitive values at rest.
//
// Values are sealed with AES-256-GCM under the primary key. Decryption
// walks an ordered key list so that a demoted key keeps working for
// existing ciphertexts while new writes already use its replacement.
// No key identifier is stored with the value; the list is tried in
// order, trading a little work at read time for a rotation that needs
// no schema change.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// KeySize is the required length of every key in the list.
const KeySize = 32

// ErrNoKeys indicates the encryptor was built without any key material.
var ErrNoKeys = errors.New("fieldcrypt: no keys configured")

// DecryptionError reports that a ciphertext could not be opened with
// any configured key. A read hitting this error must fail; it never
// degrades to an empty value.
type DecryptionError struct {
	KeysTried int
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("fieldcrypt: decryption failed with all %d configured keys", e.KeysTried)
}

// Encryptor seals and opens field values with an ordered key list.
// The first key is the primary used for every new write.
type Encryptor struct {
	keys [][]byte
}

// New validates the key list and constructs an Encryptor.
func New(keys [][]byte) (*Encryptor, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	for i, key := range keys {
		if len(key) != KeySize {
			return nil, fmt.Errorf("fieldcrypt: key %d has %d bytes, want %d", i, len(key), KeySize)
		}
	}
	copied := make([][]byte, len(keys))
	for i, key := range keys {
		copied[i] = append([]byte(nil), key...)
	}
	return &Encryptor{keys: copied}, nil
}

// ParseKeyList decodes a comma-separated list of base64 keys, primary
// first. This is the format used by the FIELD_KEYS environment variable.
func ParseKeyList(raw string) ([][]byte, error) {
	parts := strings.Split(raw, ",")
	keys := make([][]byte, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, err := base64.StdEncoding.DecodeString(part)
		if err != nil {
			return nil, fmt.Errorf("fieldcrypt: decode key %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	return keys, nil
}

// Encrypt seals plaintext with the primary key and returns
// base64(nonce || ciphertext).
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if e == nil || len(e.keys) == 0 {
		return "", ErrNoKeys
	}
	gcm, err := newGCM(e.keys[0])
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("fieldcrypt: nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext by trying each key in order. When every key
// fails it returns *DecryptionError; the caller must surface the
// failure rather than treat the field as empty.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	if e == nil || len(e.keys) == 0 {
		return "", ErrNoKeys
	}
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("fieldcrypt: decode ciphertext: %w", err)
	}
	for _, key := range e.keys {
		gcm, err := newGCM(key)
		if err != nil {
			return "", err
		}
		if len(sealed) < gcm.NonceSize() {
			continue
		}
		nonce, ct := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
		plaintext, err := gcm.Open(nil, nonce, ct, nil)
		if err == nil {
			return string(plaintext), nil
		}
	}
	return "", &DecryptionError{KeysTried: len(e.keys)}
}

// PrimaryOnly returns an encryptor holding just the primary key. The
// rotation pass uses it to prove a value was re-sealed under the new
// primary and not merely still readable through a fallback key.
func (e *Encryptor) PrimaryOnly() *Encryptor {
	if e == nil || len(e.keys) == 0 {
		return e
	}
	return &Encryptor{keys: e.keys[:1]}
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: gcm: %w", err)
	}
	return gcm, nil
}
