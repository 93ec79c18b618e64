package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iam0-cloud/iam0-core/pkg/id"
)

// User statuses.
const (
	StatusActive = "active"
	StatusBanned = "banned"
)

// Client represents a tenant application. Tokens for its users are signed
// with SigningKey and, when EncryptionKey is set, sealed with it.
type Client struct {
	ID              id.Identifier `json:"id"`
	ParentID        id.Identifier `json:"parent_id"`        // Nil for a root client
	KeyID           string        `json:"kid"`              // Published id of the signing key
	SigningKey      []byte        `json:"-"`                // 32-byte P-256 scalar
	VerificationKey []byte        `json:"verification_key"` // Uncompressed SEC1 point
	EncryptionKey   []byte        `json:"-"`                // 32-byte AEAD key, optional
	AEAD            string        `json:"aead,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// User represents a registered user of one client.
type User struct {
	ID        id.Identifier `json:"id"`
	ClientID  id.Identifier `json:"client_id"`
	Email     string        `json:"email"`
	Curve     string        `json:"curve"`
	PublicKey []byte        `json:"public_key"` // Encoded curve point
	Status    string        `json:"status"`     // active|banned
	CreatedAt time.Time     `json:"created_at"`
}

// ClientStore resolves client records and their key material.
type ClientStore interface {
	// GetClient retrieves a client by id
	GetClient(ctx context.Context, clientID id.Identifier) (*Client, error)

	// SigningKey returns the signing key bytes for a client, inheriting
	// from the nearest ancestor that has one
	SigningKey(ctx context.Context, clientID id.Identifier) ([]byte, string, error)
}

// UserStore resolves users by their login credential.
type UserStore interface {
	// GetUserByEmail retrieves a user of a client by email
	GetUserByEmail(ctx context.Context, clientID id.Identifier, email string) (*User, error)
}

// DenylistStore tracks revoked public keys. Keys are compared byte for
// byte, so callers store and query one canonical encoding per key.
type DenylistStore interface {
	// AddToDenylist revokes a public key
	AddToDenylist(ctx context.Context, pk []byte) error

	// IsInDenylist checks if a public key is revoked
	IsInDenylist(ctx context.Context, pk []byte) (bool, error)

	// RemoveFromDenylist reinstates a public key
	RemoveFromDenylist(ctx context.Context, pk []byte) error
}

// Store combines all storage interfaces
type Store interface {
	ClientStore
	UserStore
	DenylistStore

	// Close closes the storage connection
	Close() error

	// Ping checks if the storage is healthy
	Ping(ctx context.Context) error
}

var (
	// ErrNotFound indicates a missing record of any kind
	ErrNotFound = errors.New("storage: not found")

	// ErrClientNotFound indicates a client was not found
	ErrClientNotFound = fmt.Errorf("%w: client", ErrNotFound)

	// ErrUserNotFound indicates a user was not found
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	// ErrSigningKeyNotFound indicates neither the client nor its ancestors
	// hold a signing key
	ErrSigningKeyNotFound = fmt.Errorf("%w: signing key", ErrNotFound)

	// ErrUserExists indicates a user already exists
	ErrUserExists = errors.New("storage: user already exists")

	// ErrUnavailable indicates the backing store could not be reached
	ErrUnavailable = errors.New("storage: unavailable")
)
