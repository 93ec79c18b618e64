package token

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
)

// AlgorithmES256 is ECDSA over P-256 with SHA-256 and 64-byte r ‖ s
// signatures.
const AlgorithmES256 = "ES256"

// ES256Signer signs payloads with an ECDSA P-256 key.
type ES256Signer struct {
	privateKey *ecdsa.PrivateKey
	keyID      string
}

// NewES256Signer creates a signer for privateKey. keyID may be empty.
func NewES256Signer(privateKey *ecdsa.PrivateKey, keyID string) (*ES256Signer, error) {
	if privateKey == nil || privateKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("token: ES256 requires a P-256 private key")
	}
	return &ES256Signer{privateKey: privateKey, keyID: keyID}, nil
}

// NewES256SignerFromBytes builds a signer from a raw 32-byte big-endian
// private scalar, the form in which client signing keys are stored.
func NewES256SignerFromBytes(raw []byte, keyID string) (*ES256Signer, error) {
	priv, err := ecdh.P256().NewPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("token: invalid signing key: %w", err)
	}
	pub, err := parseP256Public(priv.PublicKey().Bytes())
	if err != nil {
		return nil, err
	}
	return NewES256Signer(&ecdsa.PrivateKey{
		PublicKey: *pub,
		D:         new(big.Int).SetBytes(raw),
	}, keyID)
}

// Algorithm returns "ES256".
func (s *ES256Signer) Algorithm() string {
	return AlgorithmES256
}

// KeyID returns the configured key id.
func (s *ES256Signer) KeyID() string {
	return s.keyID
}

// Public returns the verification key.
func (s *ES256Signer) Public() *ecdsa.PublicKey {
	return &s.privateKey.PublicKey
}

// Verifier returns a verifier for this signer's public key.
func (s *ES256Signer) Verifier() *ES256Verifier {
	return &ES256Verifier{publicKey: s.Public(), keyID: s.keyID}
}

// Sign returns the raw 64-byte r ‖ s signature over payload.
func (s *ES256Signer) Sign(payload []byte) ([]byte, error) {
	sig, err := jwt.SigningMethodES256.Sign(string(payload), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return sig, nil
}

// ES256Verifier verifies ES256 signatures.
type ES256Verifier struct {
	publicKey *ecdsa.PublicKey
	keyID     string
}

// NewES256Verifier creates a verifier for publicKey.
func NewES256Verifier(publicKey *ecdsa.PublicKey, keyID string) (*ES256Verifier, error) {
	if publicKey == nil || publicKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("token: ES256 requires a P-256 public key")
	}
	return &ES256Verifier{publicKey: publicKey, keyID: keyID}, nil
}

// NewES256VerifierFromBytes builds a verifier from an uncompressed SEC1
// P-256 public key.
func NewES256VerifierFromBytes(sec1 []byte, keyID string) (*ES256Verifier, error) {
	pub, err := parseP256Public(sec1)
	if err != nil {
		return nil, err
	}
	return &ES256Verifier{publicKey: pub, keyID: keyID}, nil
}

// Algorithm returns "ES256".
func (v *ES256Verifier) Algorithm() string {
	return AlgorithmES256
}

// KeyID returns the configured key id.
func (v *ES256Verifier) KeyID() string {
	return v.keyID
}

// Public returns the verification key.
func (v *ES256Verifier) Public() *ecdsa.PublicKey {
	return v.publicKey
}

// Verify reports whether sig is a valid ES256 signature over payload.
func (v *ES256Verifier) Verify(payload, sig []byte) bool {
	return jwt.SigningMethodES256.Verify(string(payload), sig, v.publicKey) == nil
}

func parseP256Public(sec1 []byte) (*ecdsa.PublicKey, error) {
	pub, err := ecdh.P256().NewPublicKey(sec1)
	if err != nil {
		return nil, fmt.Errorf("token: invalid verification key: %w", err)
	}
	raw := pub.Bytes()
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(raw[1:33]),
		Y:     new(big.Int).SetBytes(raw[33:]),
	}, nil
}
