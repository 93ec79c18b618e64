package curve

import (
	"fmt"
	"io"
	"math/big"
	"slices"

	"github.com/gtank/ristretto255"
)

// Ristretto255Point is an element of the ristretto255 prime-order group.
type Ristretto255Point struct {
	point *ristretto255.Element
}

// Bytes returns the canonical 32-byte encoding.
func (p *Ristretto255Point) Bytes() []byte {
	if p == nil || p.point == nil {
		return nil
	}
	return p.point.Bytes()
}

// Equal reports group element equality.
func (p *Ristretto255Point) Equal(other Point) bool {
	o, ok := other.(*Ristretto255Point)
	if !ok {
		return false
	}
	switch {
	case p == nil && o == nil:
		return true
	case p == nil || o == nil:
		return false
	}
	return p.point.Equal(o.point) == 1
}

// IsIdentity reports whether the point is the identity element.
func (p *Ristretto255Point) IsIdentity() bool {
	if p == nil || p.point == nil {
		return true
	}
	return p.point.Equal(ristretto255.NewIdentityElement()) == 1
}

// Ristretto255Scalar is an integer modulo the ristretto255 group order.
type Ristretto255Scalar struct {
	scalar *ristretto255.Scalar
}

// Bytes returns the scalar as 32 big-endian bytes. The group's native
// encoding is little-endian; the order is flipped so every Scalar in this
// package shares one wire format.
func (s *Ristretto255Scalar) Bytes() []byte {
	if s == nil || s.scalar == nil {
		return nil
	}
	be := s.scalar.Bytes()
	slices.Reverse(be)
	return be
}

// BigInt returns a copy of the scalar value.
func (s *Ristretto255Scalar) BigInt() *big.Int {
	if s == nil || s.scalar == nil {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(s.Bytes())
}

// Zeroize resets the scalar to zero.
func (s *Ristretto255Scalar) Zeroize() {
	if s != nil && s.scalar != nil {
		s.scalar.Zero()
	}
}

func (s *Ristretto255Scalar) String() string {
	return "Scalar(redacted)"
}

// ristrettoOrder is l = 2^252 + 27742317777372353535851937790883648493.
var ristrettoOrder = func() *big.Int {
	l := new(big.Int).Lsh(big.NewInt(1), 252)
	addend, _ := new(big.Int).SetString("27742317777372353535851937790883648493", 10)
	return l.Add(l, addend)
}()

// Ristretto255Curve implements Curve over the ristretto255 group.
type Ristretto255Curve struct{}

// NewRistretto255 returns the ristretto255 group.
func NewRistretto255() Curve {
	return &Ristretto255Curve{}
}

// Name returns "ristretto255".
func (c *Ristretto255Curve) Name() string {
	return NameRistretto255
}

// Order returns a copy of l.
func (c *Ristretto255Curve) Order() *big.Int {
	return new(big.Int).Set(ristrettoOrder)
}

// ScalarSize returns 32.
func (c *Ristretto255Curve) ScalarSize() int {
	return 32
}

// Generator returns the canonical generator.
func (c *Ristretto255Curve) Generator() Point {
	return &Ristretto255Point{point: ristretto255.NewGeneratorElement()}
}

// Identity returns the identity element.
func (c *Ristretto255Curve) Identity() Point {
	return &Ristretto255Point{point: ristretto255.NewIdentityElement()}
}

// ParsePoint decodes a canonical 32-byte encoding and rejects the identity.
func (c *Ristretto255Curve) ParsePoint(b []byte) (Point, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidPoint, len(b))
	}
	elem := ristretto255.NewIdentityElement()
	if _, err := elem.SetCanonicalBytes(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	pt := &Ristretto255Point{point: elem}
	if pt.IsIdentity() {
		return nil, ErrIdentityPoint
	}
	return pt, nil
}

// ParseScalar decodes a 32-byte big-endian scalar in [0, l-1].
func (c *Ristretto255Curve) ParseScalar(b []byte) (Scalar, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidScalar, len(b))
	}
	le := slices.Clone(b)
	slices.Reverse(le)

	sc := ristretto255.NewScalar()
	if _, err := sc.SetCanonicalBytes(le); err != nil {
		return nil, fmt.Errorf("%w: scalar out of range", ErrInvalidScalar)
	}
	return &Ristretto255Scalar{scalar: sc}, nil
}

// NewScalar reduces v modulo l.
func (c *Ristretto255Curve) NewScalar(v *big.Int) Scalar {
	le := new(big.Int).Mod(v, ristrettoOrder).FillBytes(make([]byte, 32))
	slices.Reverse(le)

	sc := ristretto255.NewScalar()
	if _, err := sc.SetCanonicalBytes(le); err != nil {
		// unreachable: the value was reduced above
		panic("curve: reduced scalar rejected: " + err.Error())
	}
	return &Ristretto255Scalar{scalar: sc}
}

// ScalarBaseMult computes s·B.
func (c *Ristretto255Curve) ScalarBaseMult(s Scalar) Point {
	rs, ok := s.(*Ristretto255Scalar)
	if !ok || rs.scalar == nil {
		return nil
	}
	return &Ristretto255Point{point: ristretto255.NewIdentityElement().ScalarBaseMult(rs.scalar)}
}

// ScalarMult computes s·P.
func (c *Ristretto255Curve) ScalarMult(p Point, s Scalar) Point {
	rp, ok := p.(*Ristretto255Point)
	if !ok || rp.point == nil {
		return nil
	}
	rs, ok := s.(*Ristretto255Scalar)
	if !ok || rs.scalar == nil {
		return nil
	}
	return &Ristretto255Point{point: ristretto255.NewIdentityElement().ScalarMult(rs.scalar, rp.point)}
}

// Add computes P + Q.
func (c *Ristretto255Curve) Add(p, q Point) Point {
	rp, ok := p.(*Ristretto255Point)
	if !ok || rp.point == nil {
		return nil
	}
	rq, ok := q.(*Ristretto255Point)
	if !ok || rq.point == nil {
		return nil
	}
	return &Ristretto255Point{point: ristretto255.NewIdentityElement().Add(rp.point, rq.point)}
}

// RandomScalar reduces 64 uniform bytes from rand modulo l.
func (c *Ristretto255Curve) RandomScalar(rand io.Reader) (Scalar, error) {
	seed := make([]byte, 64)
	defer clear(seed)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return nil, fmt.Errorf("curve: failed to generate scalar: %w", err)
	}
	sc := ristretto255.NewScalar()
	if _, err := sc.SetUniformBytes(seed); err != nil {
		return nil, fmt.Errorf("curve: failed to derive scalar: %w", err)
	}
	return &Ristretto255Scalar{scalar: sc}, nil
}

// GenerateScalar is RandomScalar with zero rejected.
func (c *Ristretto255Curve) GenerateScalar(rand io.Reader) (Scalar, error) {
	for {
		s, err := c.RandomScalar(rand)
		if err != nil {
			return nil, err
		}
		if s.BigInt().Sign() != 0 {
			return s, nil
		}
	}
}

// ValidatePoint checks that p is a non-identity ristretto255 element.
func (c *Ristretto255Curve) ValidatePoint(p Point) error {
	rp, ok := p.(*Ristretto255Point)
	if !ok || rp.point == nil {
		return ErrInvalidPoint
	}
	if rp.IsIdentity() {
		return ErrIdentityPoint
	}
	return nil
}
