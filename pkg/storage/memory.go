package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iam0-cloud/iam0-core/pkg/id"
)

// maxParentDepth bounds the ancestor walk in SigningKey.
const maxParentDepth = 16

type userKey struct {
	client id.Identifier
	email  string
}

// MemoryStore implements the Store interface using in-memory storage
// This is suitable for development and testing, but not for production
type MemoryStore struct {
	mu       sync.RWMutex
	clients  map[id.Identifier]*Client
	users    map[userKey]*User
	denylist map[string]bool
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:  make(map[id.Identifier]*Client),
		users:    make(map[userKey]*User),
		denylist: make(map[string]bool),
		now:      time.Now,
	}
}

// normalizeEmail folds an email to its lookup form.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneClient(c *Client) *Client {
	cp := *c
	cp.SigningKey = bytes.Clone(c.SigningKey)
	cp.VerificationKey = bytes.Clone(c.VerificationKey)
	cp.EncryptionKey = bytes.Clone(c.EncryptionKey)
	return &cp
}

func cloneUser(u *User) *User {
	cp := *u
	cp.PublicKey = bytes.Clone(u.PublicKey)
	return &cp
}

// PutClient creates or replaces a client
func (s *MemoryStore) PutClient(ctx context.Context, client *Client) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if client.ID.IsZero() {
		return fmt.Errorf("storage: client id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid race conditions
	c := cloneClient(client)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.clients[c.ID] = c
	return nil
}

// GetClient retrieves a client by id
func (s *MemoryStore) GetClient(ctx context.Context, clientID id.Identifier) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	client, exists := s.clients[clientID]
	if !exists {
		return nil, ErrClientNotFound
	}
	return cloneClient(client), nil
}

// SigningKey returns the signing key of the client or its nearest ancestor
// holding one, together with that key's id
func (s *MemoryStore) SigningKey(ctx context.Context, clientID id.Identifier) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := clientID
	for depth := 0; depth < maxParentDepth; depth++ {
		client, exists := s.clients[current]
		if !exists {
			if depth == 0 {
				return nil, "", ErrClientNotFound
			}
			break
		}
		if len(client.SigningKey) > 0 {
			return bytes.Clone(client.SigningKey), client.KeyID, nil
		}
		if client.ParentID.IsZero() {
			break
		}
		current = client.ParentID
	}
	return nil, "", ErrSigningKeyNotFound
}

// CreateUser registers a new user. Status defaults to active.
func (s *MemoryStore) CreateUser(ctx context.Context, user *User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user.ID.IsZero() {
		return fmt.Errorf("storage: user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.clients[user.ClientID]; !exists {
		return ErrClientNotFound
	}
	key := userKey{client: user.ClientID, email: normalizeEmail(user.Email)}
	if _, exists := s.users[key]; exists {
		return ErrUserExists
	}

	u := cloneUser(user)
	if u.Status == "" {
		u.Status = StatusActive
	}
	u.CreatedAt = s.now()
	s.users[key] = u
	return nil
}

// GetUserByEmail retrieves a user of a client by email
func (s *MemoryStore) GetUserByEmail(ctx context.Context, clientID id.Identifier, email string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userKey{client: clientID, email: normalizeEmail(email)}]
	if !exists {
		return nil, ErrUserNotFound
	}

	// Return a copy to avoid race conditions
	return cloneUser(user), nil
}

// UpdateUserStatus updates a user's status
func (s *MemoryStore) UpdateUserStatus(ctx context.Context, clientID id.Identifier, email, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[userKey{client: clientID, email: normalizeEmail(email)}]
	if !exists {
		return ErrUserNotFound
	}

	user.Status = status
	return nil
}

// ListUsers returns the users of a client ordered by email
func (s *MemoryStore) ListUsers(ctx context.Context, clientID id.Identifier) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]User, 0)
	for key, user := range s.users {
		if key.client == clientID {
			users = append(users, *cloneUser(user))
		}
	}
	slices.SortFunc(users, func(a, b User) int { return strings.Compare(a.Email, b.Email) })
	return users, nil
}

// AddToDenylist revokes a public key
func (s *MemoryStore) AddToDenylist(ctx context.Context, pk []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.denylist[hex.EncodeToString(pk)] = true
	return nil
}

// IsInDenylist checks if a public key is revoked
func (s *MemoryStore) IsInDenylist(ctx context.Context, pk []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.denylist[hex.EncodeToString(pk)], nil
}

// RemoveFromDenylist reinstates a public key
func (s *MemoryStore) RemoveFromDenylist(ctx context.Context, pk []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.denylist, hex.EncodeToString(pk))
	return nil
}

// Close closes the store (no-op for memory store)
func (s *MemoryStore) Close() error {
	return nil
}

// Ping checks if the store is healthy (always true for memory store)
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Stats returns storage statistics for monitoring
func (s *MemoryStore) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]int{
		"clients":  len(s.clients),
		"users":    len(s.users),
		"denylist": len(s.denylist),
	}
}

var _ Store = (*MemoryStore)(nil)
