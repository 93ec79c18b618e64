// Package keys manages issuer signing keys: generation, PEM storage, the raw
// scalar form kept by client records, and JWK publication.
package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/iam0-cloud/iam0-core/pkg/token"
)

// ErrKeyNotFound indicates a key id missing from a JWK set.
var ErrKeyNotFound = errors.New("keys: key not found")

// GenerateES256 generates a new ECDSA P-256 key.
func GenerateES256(rand io.Reader) (*ecdsa.PrivateKey, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return privateKey, nil
}

// RawScalar returns the private scalar as 32 big-endian bytes.
func RawScalar(key *ecdsa.PrivateKey) []byte {
	return key.D.FillBytes(make([]byte, 32))
}

// PublicBytes returns the uncompressed SEC1 encoding of the public key.
func PublicBytes(pub *ecdsa.PublicKey) []byte {
	out := make([]byte, 65)
	out[0] = 0x04
	pub.X.FillBytes(out[1:33])
	pub.Y.FillBytes(out[33:])
	return out
}

// NewKeyID returns a random key id.
func NewKeyID() string {
	return uuid.NewString()
}

// EncodePrivateKeyPEM returns key as an "EC PRIVATE KEY" PEM block.
func EncodePrivateKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ECDSA private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil
}

// DecodePrivateKeyPEM parses an SEC1 or PKCS#8 PEM-encoded P-256 key.
func DecodePrivateKeyPEM(data []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	var key any
	var err error
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	ec, ok := key.(*ecdsa.PrivateKey)
	if !ok || ec.Curve != elliptic.P256() {
		return nil, fmt.Errorf("expected a P-256 private key, got %T", key)
	}
	return ec, nil
}

// SavePrivateKeyPEM writes key to filename with owner-only permissions.
func SavePrivateKeyPEM(key *ecdsa.PrivateKey, filename string) error {
	data, err := EncodePrivateKeyPEM(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// LoadPrivateKeyPEM reads a key written by SavePrivateKeyPEM.
func LoadPrivateKeyPEM(filename string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	return DecodePrivateKeyPEM(data)
}

// PublicJWK returns pub as a JWK tagged with kid, alg ES256 and use sig.
func PublicJWK(pub *ecdsa.PublicKey, kid string) (jwk.Key, error) {
	key, err := jwk.FromRaw(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK from public key: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, fmt.Errorf("failed to set key ID: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, token.AlgorithmES256); err != nil {
		return nil, fmt.Errorf("failed to set algorithm: %w", err)
	}
	if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("failed to set key usage: %w", err)
	}
	return key, nil
}

// JWKS returns a set holding the public JWK of every signer.
func JWKS(signers ...*token.ES256Signer) (jwk.Set, error) {
	set := jwk.NewSet()
	for _, s := range signers {
		key, err := PublicJWK(s.Public(), s.KeyID())
		if err != nil {
			return nil, err
		}
		if err := set.AddKey(key); err != nil {
			return nil, fmt.Errorf("failed to add key %s: %w", s.KeyID(), err)
		}
	}
	return set, nil
}

// VerifierFromJWKS builds a token verifier for the key with id kid.
func VerifierFromJWKS(set jwk.Set, kid string) (*token.ES256Verifier, error) {
	key, ok := set.LookupKeyID(kid)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	var pub ecdsa.PublicKey
	if err := key.Raw(&pub); err != nil {
		return nil, fmt.Errorf("failed to extract public key: %w", err)
	}
	return token.NewES256Verifier(&pub, kid)
}

// Thumbprint returns the RFC 7638 SHA-256 thumbprint of pub, base64url
// encoded without padding.
func Thumbprint(pub *ecdsa.PublicKey) (string, error) {
	key, err := jwk.FromRaw(pub)
	if err != nil {
		return "", fmt.Errorf("failed to create JWK from public key: %w", err)
	}
	tp, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute thumbprint: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(tp), nil
}

// IssuerConfig describes a signing key on disk.
type IssuerConfig struct {
	KeyID     string `json:"kid"`
	Algorithm string `json:"alg"`
	Issuer    string `json:"issuer"`
}

// SaveIssuerConfig writes config as indented JSON.
func SaveIssuerConfig(config *IssuerConfig, filename string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadIssuerConfig reads a config written by SaveIssuerConfig.
func LoadIssuerConfig(filename string) (*IssuerConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var config IssuerConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &config, nil
}

// GenerateFiles creates a signing key with a fresh key id and writes the key
// and its config.
func GenerateFiles(rand io.Reader, issuer, keyFile, configFile string) (*IssuerConfig, error) {
	key, err := GenerateES256(rand)
	if err != nil {
		return nil, err
	}
	if err := SavePrivateKeyPEM(key, keyFile); err != nil {
		return nil, fmt.Errorf("failed to save private key: %w", err)
	}
	config := &IssuerConfig{KeyID: NewKeyID(), Algorithm: token.AlgorithmES256, Issuer: issuer}
	if err := SaveIssuerConfig(config, configFile); err != nil {
		return nil, fmt.Errorf("failed to save config: %w", err)
	}
	return config, nil
}

// LoadSigner loads a key and config written by GenerateFiles.
func LoadSigner(keyFile, configFile string) (*token.ES256Signer, *IssuerConfig, error) {
	key, err := LoadPrivateKeyPEM(keyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load private key: %w", err)
	}
	config, err := LoadIssuerConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	signer, err := token.NewES256Signer(key, config.KeyID)
	if err != nil {
		return nil, nil, err
	}
	return signer, config, nil
}
