package csprng

import "sync"

// Locked serializes access to a single generator so it can be shared by
// concurrent callers.
type Locked struct {
	mu  sync.Mutex
	rng *ChaCha
}

// NewLocked wraps rng. The caller must not use rng directly afterwards.
func NewLocked(rng *ChaCha) *Locked {
	return &Locked{rng: rng}
}

// Read implements io.Reader.
func (l *Locked) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Read(p)
}

// Uint32 returns four keystream bytes as a little-endian uint32.
func (l *Locked) Uint32() (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Uint32()
}
