package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"strings"
)

// ErrDecryptionFailed marks a malformed or corrupt ciphertext. Read paths
// degrade to a visible placeholder instead of failing the whole fetch.
var ErrDecryptionFailed = errors.New("decryption failed")

// Messages are stored as hex(iv) + ":" + hex(ciphertext) with a random
// per-message IV under a single symmetric key. The encoding must round-trip
// exactly, so both halves stay plain hex.

func EncryptMessage(plaintext, key string) (string, error) {
	block, err := aes.NewCipher(normalizeKey(key))
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, []byte(plaintext))

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

func DecryptMessage(encoded, key string) (string, error) {
	parts := strings.SplitN(encoded, ":", 2)
	if len(parts) != 2 {
		return "", ErrDecryptionFailed
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrDecryptionFailed
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", ErrDecryptionFailed
	}

	block, err := aes.NewCipher(normalizeKey(key))
	if err != nil {
		return "", err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)

	return string(plaintext), nil
}

// normalizeKey pads or truncates the configured secret to a 256-bit AES key.
func normalizeKey(key string) []byte {
	normalized := make([]byte, 32)
	copy(normalized, key)
	return normalized
}
