package curve

import (
	"fmt"
	"io"
	"math/big"
)

// IntScalar is an integer in [0, n-1] with a fixed encoded width.
type IntScalar struct {
	v    *big.Int
	size int
}

func newIntScalar(v *big.Int, n *big.Int) *IntScalar {
	r := new(big.Int).Mod(v, n)
	return &IntScalar{v: r, size: (n.BitLen() + 7) / 8}
}

// Bytes returns the scalar as a fixed-size big-endian byte slice.
func (s *IntScalar) Bytes() []byte {
	if s == nil || s.v == nil {
		return nil
	}
	return s.v.FillBytes(make([]byte, s.size))
}

// BigInt returns a copy of the scalar value.
func (s *IntScalar) BigInt() *big.Int {
	if s == nil || s.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(s.v)
}

// IsZero reports whether the scalar is zero.
func (s *IntScalar) IsZero() bool {
	return s == nil || s.v == nil || s.v.Sign() == 0
}

// Zeroize overwrites the scalar's limbs.
func (s *IntScalar) Zeroize() {
	if s == nil || s.v == nil {
		return
	}
	words := s.v.Bits()
	for i := range words {
		words[i] = 0
	}
	s.v.SetInt64(0)
}

func (s *IntScalar) String() string {
	return "Scalar(redacted)"
}

// parseScalar decodes a fixed-width big-endian scalar below n.
func parseScalar(b []byte, n *big.Int) (*IntScalar, error) {
	size := (n.BitLen() + 7) / 8
	if len(b) != size {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidScalar, size, len(b))
	}
	v := new(big.Int).SetBytes(b)
	if v.Cmp(n) >= 0 {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidScalar)
	}
	return &IntScalar{v: v, size: size}, nil
}

// randomBelow draws a uniform integer in [0, n) by rejection sampling:
// ceil(bits(n)/8) bytes are read, bits above the bit length of n are
// cleared, and values >= n are discarded.
func randomBelow(rand io.Reader, n *big.Int) (*big.Int, error) {
	bitLen := n.BitLen()
	buf := make([]byte, (bitLen+7)/8)
	excess := uint(len(buf)*8 - bitLen)
	defer clear(buf)

	for {
		if _, err := io.ReadFull(rand, buf); err != nil {
			return nil, fmt.Errorf("curve: failed to generate scalar: %w", err)
		}
		buf[0] &= byte(0xff >> excess)
		k := new(big.Int).SetBytes(buf)
		if k.Cmp(n) < 0 {
			return k, nil
		}
	}
}
