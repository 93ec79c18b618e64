package login

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/iam0-cloud/iam0-core/pkg/crypto/schnorr"
)

// ErrProofReplayed indicates a proof whose commitment was already presented.
var ErrProofReplayed = errors.New("login: proof replayed")

// DefaultReplayWindow is how long a MemoryReplayStore remembers commitments.
const DefaultReplayWindow = 24 * time.Hour

// sweepEvery is the number of inserts between expiry sweeps.
const sweepEvery = 1024

// ReplayStore remembers the commitments of accepted proofs.
type ReplayStore interface {
	// Seen reports whether key was presented before and records it.
	Seen(ctx context.Context, key string) (bool, error)
}

// MemoryReplayStore is a ReplayStore for a single process. Entries expire
// after the window passed to NewMemoryReplayStore.
type MemoryReplayStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
	ttl     time.Duration
	inserts int
	now     func() time.Time
}

// NewMemoryReplayStore creates a MemoryReplayStore. A non-positive ttl
// means DefaultReplayWindow.
func NewMemoryReplayStore(ttl time.Duration) *MemoryReplayStore {
	if ttl <= 0 {
		ttl = DefaultReplayWindow
	}
	return &MemoryReplayStore{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Seen implements ReplayStore.
func (s *MemoryReplayStore) Seen(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, ok := s.entries[key]; ok && now.Before(expiry) {
		return true, nil
	}
	s.entries[key] = now.Add(s.ttl)

	s.inserts++
	if s.inserts%sweepEvery == 0 {
		s.sweep(now)
	}
	return false, nil
}

// Cleanup removes expired entries.
func (s *MemoryReplayStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(s.now())
}

func (s *MemoryReplayStore) sweep(now time.Time) {
	for key, expiry := range s.entries {
		if !now.Before(expiry) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of remembered commitments.
func (s *MemoryReplayStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// replayKey identifies a proof by its curve and commitment.
func replayKey(p *schnorr.Proof) string {
	return p.Curve.Name() + ":" + hex.EncodeToString(p.Commitment.Bytes())
}

var _ ReplayStore = (*MemoryReplayStore)(nil)
