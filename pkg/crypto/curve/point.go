package curve

import (
	"fmt"
	"math/big"
)

// AffinePoint is a point on a short Weierstrass curve in affine coordinates,
// or the point at infinity.
type AffinePoint struct {
	x, y     *big.Int
	infinity bool
	size     int // coordinate width in bytes
}

// Infinity returns the point at infinity.
func Infinity() *AffinePoint {
	return &AffinePoint{x: new(big.Int), y: new(big.Int), infinity: true}
}

// NewAffinePoint returns the point (x, y) without checking the curve
// equation. Use Weierstrass.ParsePoint for untrusted input.
func NewAffinePoint(x, y *big.Int) *AffinePoint {
	return &AffinePoint{x: new(big.Int).Set(x), y: new(big.Int).Set(y)}
}

// X returns a copy of the x coordinate.
func (p *AffinePoint) X() *big.Int { return new(big.Int).Set(p.x) }

// Y returns a copy of the y coordinate.
func (p *AffinePoint) Y() *big.Int { return new(big.Int).Set(p.y) }

// IsIdentity reports whether p is the point at infinity.
func (p *AffinePoint) IsIdentity() bool {
	return p == nil || p.infinity
}

// Equal reports value equality.
func (p *AffinePoint) Equal(other Point) bool {
	o, ok := other.(*AffinePoint)
	if !ok {
		return false
	}
	if p.IsIdentity() || o.IsIdentity() {
		return p.IsIdentity() && o.IsIdentity()
	}
	return p.x.Cmp(o.x) == 0 && p.y.Cmp(o.y) == 0
}

// Bytes returns the uncompressed SEC1 encoding 0x04 ‖ x ‖ y. The point at
// infinity encodes as the single byte 0x00.
func (p *AffinePoint) Bytes() []byte {
	if p.IsIdentity() {
		return []byte{0x00}
	}
	size := p.size
	if size == 0 {
		size = (max(p.x.BitLen(), p.y.BitLen()) + 7) / 8
	}
	out := make([]byte, 1+2*size)
	out[0] = 0x04
	p.x.FillBytes(out[1 : 1+size])
	p.y.FillBytes(out[1+size:])
	return out
}

// CompressedBytes returns the compressed SEC1 encoding 0x02/0x03 ‖ x.
func (p *AffinePoint) CompressedBytes() []byte {
	if p.IsIdentity() {
		return []byte{0x00}
	}
	size := p.size
	if size == 0 {
		size = (p.x.BitLen() + 7) / 8
	}
	out := make([]byte, 1+size)
	out[0] = 0x02 | byte(p.y.Bit(0))
	p.x.FillBytes(out[1:])
	return out
}

func (p *AffinePoint) String() string {
	if p.IsIdentity() {
		return "Point(∞)"
	}
	return fmt.Sprintf("Point(%x, %x)", p.x, p.y)
}
