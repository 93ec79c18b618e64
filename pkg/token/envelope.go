package token

import (
	"crypto/cipher"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const lengthPrefixSize = 4

var encoding = base64.RawURLEncoding

// Seal encrypts t for transport. A fresh nonce is drawn from rand on every
// call.
func Seal(t *Token, aead cipher.AEAD, rand io.Reader) (string, error) {
	raw, err := SealBytes(t, aead, rand)
	if err != nil {
		return "", err
	}
	return encoding.EncodeToString(raw), nil
}

// SealBytes is Seal without the text encoding.
func SealBytes(t *Token, aead cipher.AEAD, rand io.Reader) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+lengthPrefixSize+len(t.Payload)+len(t.Signature)+aead.Overhead())
	plaintext, err := frame(t)
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(rand, nonce); err != nil {
		return nil, fmt.Errorf("token: failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decodes and decrypts a sealed token.
func Open(text string, aead cipher.AEAD) (*Token, error) {
	raw, err := encoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return OpenBytes(raw, aead)
}

// OpenBytes is Open without the text decoding.
func OpenBytes(raw []byte, aead cipher.AEAD) (*Token, error) {
	ns := aead.NonceSize()
	if len(raw) < ns+aead.Overhead() {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrMalformedToken, len(raw))
	}

	plaintext, err := aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	return unframe(plaintext)
}

// Encode returns the unencrypted wire form of t:
// base64url(u32le(len(payload)) ‖ payload ‖ signature). It is meant for
// clients that have no encryption key.
func Encode(t *Token) (string, error) {
	raw, err := frame(t)
	if err != nil {
		return "", err
	}
	return encoding.EncodeToString(raw), nil
}

// Decode parses the output of Encode. The signature is not checked.
func Decode(text string) (*Token, error) {
	raw, err := encoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return unframe(raw)
}

func frame(t *Token) ([]byte, error) {
	if uint64(len(t.Payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("token: payload of %d bytes exceeds length prefix", len(t.Payload))
	}
	out := make([]byte, lengthPrefixSize, lengthPrefixSize+len(t.Payload)+len(t.Signature))
	binary.LittleEndian.PutUint32(out, uint32(len(t.Payload)))
	out = append(out, t.Payload...)
	return append(out, t.Signature...), nil
}

func unframe(raw []byte) (*Token, error) {
	if len(raw) < lengthPrefixSize {
		return nil, fmt.Errorf("%w: missing length prefix", ErrMalformedToken)
	}
	n := uint64(binary.LittleEndian.Uint32(raw))
	body := raw[lengthPrefixSize:]
	if n > uint64(len(body)) {
		return nil, fmt.Errorf("%w: length prefix %d exceeds body of %d bytes", ErrMalformedToken, n, len(body))
	}
	if n == uint64(len(body)) {
		return nil, fmt.Errorf("%w: missing signature", ErrMalformedToken)
	}

	return &Token{
		Payload:   body[:n:n],
		Signature: body[n:],
	}, nil
}

// OpenAs opens a sealed token and rebuilds a typed payload with mapFn.
func OpenAs[P any](text string, aead cipher.AEAD, mapFn func([]byte) (P, error)) (P, *Token, error) {
	var zero P
	t, err := Open(text, aead)
	if err != nil {
		return zero, nil, err
	}
	p, err := mapFn(t.Payload)
	if err != nil {
		return zero, nil, fmt.Errorf("token: failed to map payload: %w", err)
	}
	return p, t, nil
}
