// Package csprng implements the keystream generator that every other package
// in this module draws its randomness from.
//
// # Construction
//
// The generator is the ChaCha20 block function (20 rounds, 256-bit key,
// 96-bit nonce, 32-bit little-endian block counter) run in counter mode. Key
// and nonce are read once from the operating system's entropy source; after
// that every byte comes from the keystream:
//
//	block_i = ChaCha20(key, nonce, counter=i)
//	output  = block_0 ‖ block_1 ‖ block_2 ‖ ...
//
// Bytes are handed out sequentially. When the current 64-byte block is used
// up the counter advances (wrapping) and a new block is computed.
//
// # Counter Exhaustion
//
// After 2^32 blocks (256 GiB of output) the 32-bit counter wraps and the
// keystream would repeat. A generator seeded from an entropy source reseeds
// its key and nonce from that source at the wrap point. A generator built
// with NewFromSeed has nowhere to reseed from and simply wraps.
//
// # Concurrency
//
// A ChaCha value mutates on every draw and must not be shared between
// goroutines. Use one generator per request or goroutine, or wrap a shared
// generator in Locked.
package csprng

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
)

const (
	// BlockSize is the size in bytes of one ChaCha20 keystream block.
	BlockSize = 64

	// KeySize is the size in bytes of the ChaCha20 key.
	KeySize = 32

	// NonceSize is the size in bytes of the ChaCha20 nonce.
	NonceSize = 12

	rounds = 20
)

// ErrRandomnessUnavailable is returned when the entropy source could not
// provide seed material. Callers should abort the enclosing operation and
// treat it as an infrastructure fault.
var ErrRandomnessUnavailable = errors.New("csprng: randomness unavailable")

// "expand 32-byte k"
var sigma = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574}

// ChaCha is a ChaCha20-based deterministic random bit generator.
type ChaCha struct {
	key     [KeySize]byte
	nonce   [NonceSize]byte
	counter uint32
	block   [BlockSize]byte
	offset  int

	// entropy is nil for fixed-seed generators.
	entropy io.Reader

	// stale is set once the counter has wrapped and cleared only by a
	// successful reseed. No block is produced while it is set.
	stale bool
}

// New returns a generator seeded from crypto/rand.
func New() (*ChaCha, error) {
	return NewWithEntropy(rand.Reader)
}

// NewWithEntropy returns a generator whose key and nonce are read from r.
// The same reader is used to reseed when the block counter wraps.
func NewWithEntropy(r io.Reader) (*ChaCha, error) {
	c := &ChaCha{entropy: r, offset: BlockSize}
	if err := c.reseed(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewFromSeed returns a generator with a fixed key and nonce. Its output is a
// pure function of the seed, which makes it suitable for reproducible tests
// and reference vectors but not for production secrets.
func NewFromSeed(key [KeySize]byte, nonce [NonceSize]byte) *ChaCha {
	return &ChaCha{key: key, nonce: nonce, offset: BlockSize}
}

func (c *ChaCha) reseed() error {
	var seed [KeySize + NonceSize]byte
	if _, err := io.ReadFull(c.entropy, seed[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrRandomnessUnavailable, err)
	}
	copy(c.key[:], seed[:KeySize])
	copy(c.nonce[:], seed[KeySize:])
	clear(seed[:])
	c.counter = 0
	c.offset = BlockSize
	c.stale = false
	return nil
}

// refill computes the block for the current counter and advances it. After
// the counter wraps, an entropy-seeded generator reseeds before its next
// block; until that succeeds every refill fails.
func (c *ChaCha) refill() error {
	if c.stale {
		if err := c.reseed(); err != nil {
			return err
		}
	}
	c.block = Block(&c.key, &c.nonce, c.counter)
	c.counter++
	c.offset = 0
	if c.counter == 0 && c.entropy != nil {
		c.stale = true
	}
	return nil
}

// NextByte returns the next keystream byte.
func (c *ChaCha) NextByte() (byte, error) {
	if c.offset == BlockSize {
		if err := c.refill(); err != nil {
			return 0, err
		}
	}
	b := c.block[c.offset]
	c.offset++
	return b, nil
}

// FillBytes fills buf with keystream bytes. Requests may start and end
// anywhere inside a block and span any number of blocks.
func (c *ChaCha) FillBytes(buf []byte) error {
	for len(buf) > 0 {
		if c.offset == BlockSize {
			if err := c.refill(); err != nil {
				return err
			}
		}
		n := copy(buf, c.block[c.offset:])
		c.offset += n
		buf = buf[n:]
	}
	return nil
}

// Read implements io.Reader. It always fills p unless reseeding fails.
func (c *ChaCha) Read(p []byte) (int, error) {
	if err := c.FillBytes(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Uint32 returns four keystream bytes as a little-endian uint32.
func (c *ChaCha) Uint32() (uint32, error) {
	var b [4]byte
	if err := c.FillBytes(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// Uint64 returns eight keystream bytes as a little-endian uint64.
func (c *ChaCha) Uint64() (uint64, error) {
	var b [8]byte
	if err := c.FillBytes(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func quarterRound(x *[16]uint32, a, b, c, d int) {
	x[a] += x[b]
	x[d] = bits.RotateLeft32(x[d]^x[a], 16)
	x[c] += x[d]
	x[b] = bits.RotateLeft32(x[b]^x[c], 12)
	x[a] += x[b]
	x[d] = bits.RotateLeft32(x[d]^x[a], 8)
	x[c] += x[d]
	x[b] = bits.RotateLeft32(x[b]^x[c], 7)
}

// Block computes one 64-byte ChaCha20 keystream block.
func Block(key *[KeySize]byte, nonce *[NonceSize]byte, counter uint32) [BlockSize]byte {
	var state [16]uint32
	copy(state[:4], sigma[:])
	for i := 0; i < 8; i++ {
		state[4+i] = binary.LittleEndian.Uint32(key[i*4:])
	}
	state[12] = counter
	for i := 0; i < 3; i++ {
		state[13+i] = binary.LittleEndian.Uint32(nonce[i*4:])
	}

	x := state
	for i := 0; i < rounds; i += 2 {
		// columns
		quarterRound(&x, 0, 4, 8, 12)
		quarterRound(&x, 1, 5, 9, 13)
		quarterRound(&x, 2, 6, 10, 14)
		quarterRound(&x, 3, 7, 11, 15)
		// diagonals
		quarterRound(&x, 0, 5, 10, 15)
		quarterRound(&x, 1, 6, 11, 12)
		quarterRound(&x, 2, 7, 8, 13)
		quarterRound(&x, 3, 4, 9, 14)
	}

	var out [BlockSize]byte
	for i := range x {
		binary.LittleEndian.PutUint32(out[i*4:], x[i]+state[i])
	}
	return out
}
