package token

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/iam0-cloud/iam0-core/pkg/id"
)

var (
	// ErrExpired indicates the claims are past their expiry.
	ErrExpired = errors.New("token: expired")

	// ErrNonCanonical indicates a payload that does not re-encode to the
	// same bytes.
	ErrNonCanonical = errors.New("token: payload is not canonically encoded")
)

// Claims is the payload of a user token.
type Claims struct {
	UserID    id.Identifier     `cbor:"uid" json:"user_id"`
	ClientID  id.Identifier     `cbor:"cid" json:"client_id"`
	IssuedAt  int64             `cbor:"iat" json:"iat"`
	ExpiresAt int64             `cbor:"exp,omitempty" json:"exp,omitempty"`
	Extra     map[string]string `cbor:"ext,omitempty" json:"extra,omitempty"`
}

var (
	canonicalEnc cbor.EncMode
	strictDec    cbor.DecMode
)

func init() {
	var err error
	if canonicalEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	strictDec, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// MarshalCanonical returns the deterministic CBOR encoding of c. Equal
// claims always produce equal bytes.
func (c *Claims) MarshalCanonical() ([]byte, error) {
	b, err := canonicalEnc.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("token: failed to encode claims: %w", err)
	}
	return b, nil
}

// ParseClaims decodes a claims payload and rejects encodings that are not
// canonical.
func ParseClaims(payload []byte) (*Claims, error) {
	var c Claims
	if err := strictDec.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	again, err := c.MarshalCanonical()
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(again, payload) {
		return nil, ErrNonCanonical
	}
	return &c, nil
}

// Expired reports whether the claims carry an expiry at or before now.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != 0 && now.Unix() >= c.ExpiresAt
}

// SignClaims encodes c canonically and signs the encoding.
func SignClaims(c *Claims, signer Signer) (*Token, error) {
	payload, err := c.MarshalCanonical()
	if err != nil {
		return nil, err
	}
	return Sign(payload, signer)
}

// VerifyClaims decodes the token payload, checks that it is canonical,
// verifies the signature and checks expiry against now.
func VerifyClaims(t *Token, verifier Verifier, now time.Time) (*Claims, error) {
	c, err := ParseClaims(t.Payload)
	if err != nil {
		return nil, err
	}
	if !t.Verify(verifier) {
		return nil, ErrInvalidSignature
	}
	if c.Expired(now) {
		return nil, ErrExpired
	}
	return c, nil
}
