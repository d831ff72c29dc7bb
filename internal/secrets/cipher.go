// Package secrets holds the credential vault: ciphertext at rest, a
// process-wide keystore for the sealing key, and strictly scoped plaintext
// exposure with guaranteed wipe.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the size in bytes of a valid sealing key.
const KeySize = chacha20poly1305.KeySize

// ErrDecrypt is returned when a ciphertext cannot be opened, either because
// the key is wrong or the data is corrupt.
var ErrDecrypt = errors.New("decryption failed")

// seal encrypts plaintext with ChaCha20-Poly1305 using a random nonce.
// Returns nonce || ciphertext+tag as a single byte slice.
func seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("creating AEAD: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	out := aead.Seal(nil, nonce, plaintext, nil)

	result := make([]byte, len(nonce)+len(out))
	copy(result, nonce)
	copy(result[len(nonce):], out)
	return result, nil
}

// open decrypts data produced by seal. Expects nonce || ciphertext+tag.
func open(key, data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("creating AEAD: %w", err)
	}

	if len(data) < aead.NonceSize()+1 {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	nonce := data[:aead.NonceSize()]
	ciphertext := data[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return plaintext, nil
}

// SealToBase64 encrypts plaintext and returns base64-encoded ciphertext
// suitable for a config file or environment variable.
func SealToBase64(key, plaintext []byte) (string, error) {
	data, err := seal(key, plaintext)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// openFromBase64 decodes base64 and decrypts.
func openFromBase64(key []byte, encoded string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding base64: %v", ErrDecrypt, err)
	}
	return open(key, data)
}
