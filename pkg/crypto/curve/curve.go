// Package curve provides the elliptic curve groups used by the Schnorr proof
// and key generation code.
//
// # Supported Curves
//
//   - p256: NIST P-256 (secp256r1), y² = x³ - 3x + b over a 256-bit prime
//     field. Points are encoded as 65-byte uncompressed SEC1 values.
//
//   - secp256k1: the Koblitz curve y² = x³ + 7. Same encodings as p256.
//
//   - custom: any short Weierstrass curve y² = x³ + ax + b (mod p) described
//     by caller-supplied Params.
//
//   - ristretto255: a prime-order group built on Curve25519. Points and
//     scalars are both 32 bytes.
//
// The three Weierstrass variants share one arithmetic engine (Weierstrass)
// that works in affine coordinates over math/big.
//
// # Elliptic Curve Basics
//
// A curve group consists of:
//   - A set of points on the curve, plus the identity ("point at infinity")
//   - A generator g of prime order n
//   - Scalars: integers modulo n
//
// A private key is a scalar x in [1, n-1]; the matching public key is x·g.
// Recovering x from x·g is the discrete logarithm problem.
//
// # Timing
//
// Scalar multiplication is double-and-add and modular inversion is
// exponentiation by p-2. Neither runs in constant time.
package curve

import (
	"errors"
	"fmt"
	"io"
	"math/big"
)

// Point represents a group element.
type Point interface {
	// Bytes returns the canonical encoding of the point.
	// Weierstrass curves: 0x04 ‖ x ‖ y with fixed-width big-endian coordinates.
	// ristretto255: 32-byte canonical encoding.
	Bytes() []byte

	// Equal reports value equality. The identity only equals the identity.
	Equal(other Point) bool

	// IsIdentity reports whether this is the group identity.
	IsIdentity() bool
}

// Scalar represents an integer modulo the group order n.
//
// Scalars are used as private keys, commitment nonces, challenges and
// responses.
type Scalar interface {
	// Bytes returns the scalar as a fixed-size big-endian byte slice.
	Bytes() []byte

	// BigInt returns a copy of the scalar value.
	BigInt() *big.Int
}

// Curve abstracts the group operations needed by the protocols in this
// module so that named curves, custom curves and ristretto255 can be used
// interchangeably.
type Curve interface {
	// Name returns the curve identifier used on the wire ("p256",
	// "secp256k1", "custom", "ristretto255").
	Name() string

	// Order returns n, the order of the generator. All scalar arithmetic is
	// performed modulo n.
	Order() *big.Int

	// ScalarSize is the fixed encoded length of a scalar in bytes.
	ScalarSize() int

	// Generator returns the base point g.
	Generator() Point

	// Identity returns the group identity.
	Identity() Point

	// ParsePoint decodes and validates a point. Malformed, off-curve and
	// identity encodings are rejected with an error wrapping
	// ErrInvalidEncoding.
	ParsePoint(b []byte) (Point, error)

	// ParseScalar decodes a fixed-width big-endian scalar in [0, n-1].
	ParseScalar(b []byte) (Scalar, error)

	// NewScalar reduces v modulo n.
	NewScalar(v *big.Int) Scalar

	// ScalarBaseMult computes s·g.
	ScalarBaseMult(s Scalar) Point

	// ScalarMult computes s·P.
	ScalarMult(p Point, s Scalar) Point

	// Add computes P + Q.
	Add(p, q Point) Point

	// RandomScalar draws a uniform scalar in [0, n-1] from rand.
	RandomScalar(rand io.Reader) (Scalar, error)

	// GenerateScalar draws a uniform scalar in [1, n-1] from rand. Used for
	// private keys and commitment nonces.
	GenerateScalar(rand io.Reader) (Scalar, error)

	// ValidatePoint checks that a point belongs to this curve and is not the
	// identity.
	ValidatePoint(p Point) error
}

var (
	// ErrInvalidEncoding is the parent of every decoding failure in this
	// package.
	ErrInvalidEncoding = errors.New("curve: invalid encoding")

	// ErrInvalidPoint indicates a malformed point encoding.
	ErrInvalidPoint = fmt.Errorf("%w: invalid point", ErrInvalidEncoding)

	// ErrInvalidScalar indicates a malformed or out-of-range scalar.
	ErrInvalidScalar = fmt.Errorf("%w: invalid scalar", ErrInvalidEncoding)

	// ErrIdentityPoint indicates the point is the identity.
	ErrIdentityPoint = fmt.Errorf("%w: point is identity", ErrInvalidEncoding)

	// ErrPointNotOnCurve indicates the coordinates do not satisfy the curve
	// equation.
	ErrPointNotOnCurve = fmt.Errorf("%w: point is not on curve", ErrInvalidEncoding)

	// ErrUnsupportedCurve indicates an unknown curve name.
	ErrUnsupportedCurve = errors.New("curve: unsupported curve")
)
