package schnorr

import (
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ErrUnsupportedHash indicates an unknown hash name.
var ErrUnsupportedHash = errors.New("schnorr: unsupported hash")

// Hash is a named fixed-output hash function used for challenge derivation.
type Hash struct {
	name string
	new  func() hash.Hash
}

var (
	SHA256   = Hash{name: "sha256", new: sha256.New}
	SHA512   = Hash{name: "sha512", new: sha512.New}
	SHA3_256 = Hash{name: "sha3-256", new: sha3.New256}
	SHA3_512 = Hash{name: "sha3-512", new: sha3.New512}

	// DefaultHash is used when no hash is configured.
	DefaultHash = SHA3_512
)

// Name returns the registry name of the hash.
func (h Hash) Name() string { return h.name }

// New returns a fresh hash state.
func (h Hash) New() hash.Hash {
	if h.new == nil {
		return DefaultHash.new()
	}
	return h.new()
}

// HashFromName looks up a hash by name. An empty name selects DefaultHash.
func HashFromName(name string) (Hash, error) {
	switch strings.ToLower(name) {
	case "":
		return DefaultHash, nil
	case SHA256.name:
		return SHA256, nil
	case SHA512.name:
		return SHA512, nil
	case SHA3_256.name, "sha3_256":
		return SHA3_256, nil
	case SHA3_512.name, "sha3_512":
		return SHA3_512, nil
	default:
		return Hash{}, fmt.Errorf("%w: %s", ErrUnsupportedHash, name)
	}
}

// SupportedHashes lists the names understood by HashFromName.
func SupportedHashes() []string {
	return []string{SHA256.name, SHA512.name, SHA3_256.name, SHA3_512.name}
}
