package curve

import (
	"fmt"
	"io"
	"math/big"
)

// Weierstrass implements Curve for y² = x³ + ax + b (mod p) using affine
// coordinates over math/big. One engine serves every parameter set: the
// named curves differ only in the Params they are built from.
type Weierstrass struct {
	params     *Params
	g          *AffinePoint
	fieldSize  int
	scalarSize int
}

// NewWeierstrass builds an engine over a copy of params. The caller is
// expected to have validated params (see NewCustomParams).
func NewWeierstrass(params *Params) *Weierstrass {
	p := params.Clone()
	if p.Name == "" {
		p.Name = NameCustom
	}
	w := &Weierstrass{
		params:     p,
		fieldSize:  p.FieldSize(),
		scalarSize: (p.N.BitLen() + 7) / 8,
	}
	w.g = w.point(p.Gx, p.Gy)
	return w
}

// NewP256 returns the NIST P-256 curve.
func NewP256() Curve {
	return NewWeierstrass(P256Params())
}

// Name returns the parameter set's name.
func (w *Weierstrass) Name() string {
	return w.params.Name
}

// Params returns a copy of the curve parameters.
func (w *Weierstrass) Params() *Params {
	return w.params.Clone()
}

// Order returns a copy of n.
func (w *Weierstrass) Order() *big.Int {
	return new(big.Int).Set(w.params.N)
}

// ScalarSize returns ceil(bits(n)/8).
func (w *Weierstrass) ScalarSize() int {
	return w.scalarSize
}

// Generator returns a copy of the base point.
func (w *Weierstrass) Generator() Point {
	return w.point(w.g.x, w.g.y)
}

// Identity returns the point at infinity.
func (w *Weierstrass) Identity() Point {
	return Infinity()
}

func (w *Weierstrass) point(x, y *big.Int) *AffinePoint {
	return &AffinePoint{x: new(big.Int).Set(x), y: new(big.Int).Set(y), size: w.fieldSize}
}

func (w *Weierstrass) infinity() *AffinePoint {
	pt := Infinity()
	pt.size = w.fieldSize
	return pt
}

// IsOnCurve reports whether pt satisfies the curve equation with both
// coordinates in [0, p-1]. The point at infinity is on every curve.
func (w *Weierstrass) IsOnCurve(pt *AffinePoint) bool {
	if pt.IsIdentity() {
		return true
	}
	p := w.params.P
	if pt.x.Sign() < 0 || pt.x.Cmp(p) >= 0 || pt.y.Sign() < 0 || pt.y.Cmp(p) >= 0 {
		return false
	}
	y2 := new(big.Int).Mul(pt.y, pt.y)
	y2.Mod(y2, p)
	return y2.Cmp(w.params.polynomial(pt.x)) == 0
}

// ModInverse returns a⁻¹ mod p as a^(p-2) mod p. p must be prime and a must
// not be a multiple of p.
func ModInverse(a, p *big.Int) *big.Int {
	e := new(big.Int).Sub(p, big.NewInt(2))
	r := new(big.Int).Mod(a, p)
	return r.Exp(r, e, p)
}

// AddPoints returns p + q.
func (w *Weierstrass) AddPoints(p, q *AffinePoint) *AffinePoint {
	if p.IsIdentity() {
		return w.copyOf(q)
	}
	if q.IsIdentity() {
		return w.copyOf(p)
	}

	mod := w.params.P
	var lambda *big.Int
	if p.x.Cmp(q.x) == 0 {
		if p.y.Cmp(q.y) != 0 {
			// q = -p
			return w.infinity()
		}
		if p.y.Sign() == 0 {
			// vertical tangent
			return w.infinity()
		}
		// (3x² + a) / 2y
		num := new(big.Int).Mul(p.x, p.x)
		num.Mul(num, big.NewInt(3))
		num.Add(num, w.params.A)
		den := new(big.Int).Lsh(p.y, 1)
		lambda = num.Mul(num, ModInverse(den, mod))
	} else {
		// (y2 - y1) / (x2 - x1)
		num := new(big.Int).Sub(q.y, p.y)
		den := new(big.Int).Sub(q.x, p.x)
		den.Mod(den, mod)
		lambda = num.Mul(num, ModInverse(den, mod))
	}
	lambda.Mod(lambda, mod)

	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, p.x)
	x3.Sub(x3, q.x)
	x3.Mod(x3, mod)

	y3 := new(big.Int).Sub(p.x, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, p.y)
	y3.Mod(y3, mod)

	return &AffinePoint{x: x3, y: y3, size: w.fieldSize}
}

// Double returns 2p.
func (w *Weierstrass) Double(p *AffinePoint) *AffinePoint {
	return w.AddPoints(p, p)
}

// Negate returns -p.
func (w *Weierstrass) Negate(p *AffinePoint) *AffinePoint {
	if p.IsIdentity() {
		return w.infinity()
	}
	y := new(big.Int).Neg(p.y)
	y.Mod(y, w.params.P)
	return &AffinePoint{x: new(big.Int).Set(p.x), y: y, size: w.fieldSize}
}

// Mul returns k·p by double-and-add over the bits of k from least to most
// significant. k is not reduced, so Mul(g, n) yields the point at infinity.
// Negative k multiplies -p by |k|.
func (w *Weierstrass) Mul(p *AffinePoint, k *big.Int) *AffinePoint {
	if k.Sign() < 0 {
		return w.Mul(w.Negate(p), new(big.Int).Neg(k))
	}
	result := w.infinity()
	addend := w.copyOf(p)
	for i := 0; i < k.BitLen(); i++ {
		if k.Bit(i) == 1 {
			result = w.AddPoints(result, addend)
		}
		addend = w.Double(addend)
	}
	return result
}

func (w *Weierstrass) copyOf(p *AffinePoint) *AffinePoint {
	if p.IsIdentity() {
		return w.infinity()
	}
	return w.point(p.x, p.y)
}

// Encode returns the uncompressed SEC1 encoding of p with fixed-width
// coordinates.
func (w *Weierstrass) Encode(p *AffinePoint) []byte {
	return w.copyOf(p).Bytes()
}

// ParsePoint decodes an uncompressed (0x04 ‖ x ‖ y) or compressed
// (0x02/0x03 ‖ x) SEC1 encoding. Wrong lengths, out-of-range coordinates,
// off-curve points and the identity are rejected.
func (w *Weierstrass) ParsePoint(b []byte) (Point, error) {
	pt, err := w.ParseAffine(b)
	if err != nil {
		return nil, err
	}
	return pt, nil
}

// ParseAffine is ParsePoint with a concrete return type.
func (w *Weierstrass) ParseAffine(b []byte) (*AffinePoint, error) {
	size := w.fieldSize
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidPoint)
	}
	if len(b) == 1 && b[0] == 0x00 {
		return nil, ErrIdentityPoint
	}

	p := w.params.P
	var x, y *big.Int
	switch b[0] {
	case 0x04:
		if len(b) != 1+2*size {
			return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPoint, 1+2*size, len(b))
		}
		x = new(big.Int).SetBytes(b[1 : 1+size])
		y = new(big.Int).SetBytes(b[1+size:])
	case 0x02, 0x03:
		if len(b) != 1+size {
			return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPoint, 1+size, len(b))
		}
		x = new(big.Int).SetBytes(b[1:])
		if x.Cmp(p) >= 0 {
			return nil, fmt.Errorf("%w: coordinate out of range", ErrInvalidPoint)
		}
		y = new(big.Int).ModSqrt(w.params.polynomial(x), p)
		if y == nil {
			return nil, ErrPointNotOnCurve
		}
		if y.Bit(0) != uint(b[0]&1) {
			y.Sub(p, y)
			y.Mod(y, p)
		}
	default:
		return nil, fmt.Errorf("%w: unknown prefix 0x%02x", ErrInvalidPoint, b[0])
	}

	if x.Cmp(p) >= 0 || y.Cmp(p) >= 0 {
		return nil, fmt.Errorf("%w: coordinate out of range", ErrInvalidPoint)
	}
	pt := &AffinePoint{x: x, y: y, size: size}
	if !w.IsOnCurve(pt) {
		return nil, ErrPointNotOnCurve
	}
	return pt, nil
}

// ParseScalar decodes a fixed-width big-endian scalar in [0, n-1].
func (w *Weierstrass) ParseScalar(b []byte) (Scalar, error) {
	s, err := parseScalar(b, w.params.N)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ParsePrivateKey decodes a scalar and additionally rejects zero.
func (w *Weierstrass) ParsePrivateKey(b []byte) (Scalar, error) {
	s, err := parseScalar(b, w.params.N)
	if err != nil {
		return nil, err
	}
	if s.IsZero() {
		return nil, fmt.Errorf("%w: zero private key", ErrInvalidScalar)
	}
	return s, nil
}

// NewScalar reduces v modulo n.
func (w *Weierstrass) NewScalar(v *big.Int) Scalar {
	return newIntScalar(v, w.params.N)
}

// ScalarBaseMult computes s·g.
func (w *Weierstrass) ScalarBaseMult(s Scalar) Point {
	if s == nil {
		return nil
	}
	return w.Mul(w.g, s.BigInt())
}

// ScalarMult computes s·p. It returns nil when p does not belong to this
// engine's point type.
func (w *Weierstrass) ScalarMult(p Point, s Scalar) Point {
	ap, ok := p.(*AffinePoint)
	if !ok || s == nil {
		return nil
	}
	return w.Mul(ap, s.BigInt())
}

// Add computes p + q. It returns nil when either point does not belong to
// this engine's point type.
func (w *Weierstrass) Add(p, q Point) Point {
	ap, ok := p.(*AffinePoint)
	if !ok {
		return nil
	}
	aq, ok := q.(*AffinePoint)
	if !ok {
		return nil
	}
	return w.AddPoints(ap, aq)
}

// RandomScalar draws a uniform scalar in [0, n-1].
func (w *Weierstrass) RandomScalar(rand io.Reader) (Scalar, error) {
	k, err := randomBelow(rand, w.params.N)
	if err != nil {
		return nil, err
	}
	return &IntScalar{v: k, size: w.scalarSize}, nil
}

// GenerateScalar draws a uniform scalar in [1, n-1].
func (w *Weierstrass) GenerateScalar(rand io.Reader) (Scalar, error) {
	for {
		k, err := randomBelow(rand, w.params.N)
		if err != nil {
			return nil, err
		}
		if k.Sign() != 0 {
			return &IntScalar{v: k, size: w.scalarSize}, nil
		}
	}
}

// ValidatePoint checks that p is a non-identity point on this curve.
func (w *Weierstrass) ValidatePoint(p Point) error {
	ap, ok := p.(*AffinePoint)
	if !ok || ap == nil {
		return ErrInvalidPoint
	}
	if ap.IsIdentity() {
		return ErrIdentityPoint
	}
	if !w.IsOnCurve(ap) {
		return ErrPointNotOnCurve
	}
	return nil
}
