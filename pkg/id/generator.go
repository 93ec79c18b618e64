package id

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/iam0-cloud/iam0-core/pkg/crypto/csprng"
)

// Generator issues identifiers for one service/worker pair. It is safe for
// concurrent use.
type Generator struct {
	mu       sync.Mutex
	service  uint16
	worker   uint16
	lastMS   int64
	sequence uint16
	rand     io.Reader
	now      func() time.Time
}

// NewGenerator returns a generator drawing its random bits from a freshly
// seeded ChaCha20 stream.
func NewGenerator(service, worker uint16) (*Generator, error) {
	rng, err := csprng.New()
	if err != nil {
		return nil, err
	}
	return NewGeneratorWithRand(service, worker, rng), nil
}

// NewGeneratorWithRand returns a generator drawing random bits from rand.
// The generator serializes its own reads from rand.
func NewGeneratorWithRand(service, worker uint16, rand io.Reader) *Generator {
	return &Generator{
		service: service,
		worker:  worker,
		lastMS:  -1,
		rand:    rand,
		now:     time.Now,
	}
}

// Next returns a new identifier. Within one millisecond the sequence field
// increments; once its 12 bits are exhausted Next waits for the clock to
// advance.
func (g *Generator) Next() (Identifier, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	ms := now.UnixMilli()
	switch {
	case ms > g.lastMS:
		g.sequence = 0
	case g.sequence < sequenceMask:
		// Same millisecond, or the clock went backwards: keep the last
		// timestamp so identifiers stay ordered.
		ms = g.lastMS
		g.sequence++
	default:
		for ms <= g.lastMS {
			time.Sleep(time.Millisecond / 4)
			ms = g.now().UnixMilli()
		}
		g.sequence = 0
	}
	g.lastMS = ms

	var buf [4]byte
	if _, err := io.ReadFull(g.rand, buf[:]); err != nil {
		return Nil, fmt.Errorf("id: failed to draw random bits: %w", err)
	}
	random := binary.LittleEndian.Uint32(buf[:])

	return Pack(time.UnixMilli(ms), g.sequence, g.service, g.worker, random), nil
}
