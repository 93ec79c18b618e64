package curve

import (
	"fmt"
	"io"
	"math/big"
)

// KeyPair holds a private scalar and its public point x·g.
//
// The private scalar is never part of any encoding produced by this module;
// String redacts it and Zeroize wipes it.
type KeyPair struct {
	curve   Curve
	private Scalar
	public  Point
}

// NewKeyPair derives the public key for an existing private scalar.
func NewKeyPair(crv Curve, private Scalar) (*KeyPair, error) {
	if private == nil || private.BigInt().Sign() == 0 {
		return nil, fmt.Errorf("%w: zero private key", ErrInvalidScalar)
	}
	return &KeyPair{
		curve:   crv,
		private: private,
		public:  crv.ScalarBaseMult(private),
	}, nil
}

// GenerateKeyPair draws a private key in [1, n-1] from rand.
func GenerateKeyPair(crv Curve, rand io.Reader) (*KeyPair, error) {
	x, err := crv.GenerateScalar(rand)
	if err != nil {
		return nil, err
	}
	return NewKeyPair(crv, x)
}

// Curve returns the curve the key pair belongs to.
func (kp *KeyPair) Curve() Curve { return kp.curve }

// PublicKey returns x·g.
func (kp *KeyPair) PublicKey() Point { return kp.public }

// PrivateKey returns the private scalar.
func (kp *KeyPair) PrivateKey() Scalar { return kp.private }

// String implements fmt.Stringer without exposing the private scalar.
func (kp *KeyPair) String() string {
	return fmt.Sprintf("KeyPair{curve: %s, public: %x, private: redacted}", kp.curve.Name(), kp.public.Bytes())
}

// Zeroize wipes the private scalar. The key pair must not be used afterwards.
func (kp *KeyPair) Zeroize() {
	switch s := kp.private.(type) {
	case *IntScalar:
		s.Zeroize()
	case *Ristretto255Scalar:
		s.Zeroize()
	}
	kp.private = &IntScalar{v: new(big.Int), size: kp.curve.ScalarSize()}
}
