// Package token implements the signed token envelope.
//
// A Token pairs a payload with a signature made by the issuer's signing key.
// For transport the pair is sealed with an AEAD:
//
//	wire = base64url(nonce ‖ AEAD(key, nonce, u32le(len(payload)) ‖ payload ‖ signature))
//
// The base64 alphabet is URL-safe without padding. Opening fails closed: a
// wrong key and a modified ciphertext both yield ErrAuthenticationFailed and
// no plaintext is returned.
package token

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailed indicates the AEAD tag did not verify. Wrong
	// keys and tampering are deliberately not told apart.
	ErrAuthenticationFailed = errors.New("token: authentication failed")

	// ErrMalformedToken indicates undecodable text, truncated input or an
	// inconsistent length prefix.
	ErrMalformedToken = errors.New("token: malformed token")

	// ErrInvalidSignature indicates the signature does not match the payload.
	ErrInvalidSignature = errors.New("token: invalid signature")
)

// Token is a payload and the issuer's signature over it.
type Token struct {
	Payload   []byte
	Signature []byte
}

// Signer produces signatures over raw payload bytes.
type Signer interface {
	// Algorithm names the signature scheme, e.g. "ES256".
	Algorithm() string

	// Sign returns a signature over payload.
	Sign(payload []byte) ([]byte, error)
}

// Verifier checks signatures produced by a Signer.
type Verifier interface {
	Algorithm() string

	// Verify reports whether sig is a valid signature over payload.
	Verify(payload, sig []byte) bool
}

// Sign signs payload and returns the resulting token. The payload is copied.
func Sign(payload []byte, signer Signer) (*Token, error) {
	sig, err := signer.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("token: failed to sign payload: %w", err)
	}
	return &Token{
		Payload:   append([]byte{}, payload...),
		Signature: sig,
	}, nil
}

// Verify reports whether the token's signature is valid under verifier.
func (t *Token) Verify(verifier Verifier) bool {
	if t == nil || len(t.Signature) == 0 {
		return false
	}
	return verifier.Verify(t.Payload, t.Signature)
}
