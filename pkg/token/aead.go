package token

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEAD algorithm names.
const (
	AES256GCM         = "aes-256-gcm"
	ChaCha20Poly1305  = "chacha20-poly1305"
	XChaCha20Poly1305 = "xchacha20-poly1305"
)

// KeySize is the key length every supported AEAD expects.
const KeySize = 32

// NewAEAD returns the named AEAD keyed with key. An empty name selects
// AES-256-GCM.
func NewAEAD(alg string, key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("token: %s requires a %d-byte key, got %d", alg, KeySize, len(key))
	}
	switch strings.ToLower(alg) {
	case "", AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("token: failed to create cipher: %w", err)
		}
		return cipher.NewGCM(block)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	case XChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	default:
		return nil, fmt.Errorf("token: unsupported AEAD %q", alg)
	}
}

// SupportedAEADs lists the names understood by NewAEAD.
func SupportedAEADs() []string {
	return []string{AES256GCM, ChaCha20Poly1305, XChaCha20Poly1305}
}
