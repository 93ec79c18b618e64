package curve

import (
	"fmt"
	"math/big"
)

// Params describes a short Weierstrass curve y² = x³ + ax + b (mod p) with a
// base point (Gx, Gy) of order N.
//
// Params values are treated as immutable once handed to NewWeierstrass.
// Primality of P and N and the order of G are the caller's responsibility.
type Params struct {
	Name string   `json:"name" yaml:"name"`
	P    *big.Int `json:"p" yaml:"p"`
	A    *big.Int `json:"a" yaml:"a"`
	B    *big.Int `json:"b" yaml:"b"`
	Gx   *big.Int `json:"gx" yaml:"gx"`
	Gy   *big.Int `json:"gy" yaml:"gy"`
	N    *big.Int `json:"n" yaml:"n"`
}

// NewCustomParams builds a parameter set for a caller-defined curve. It only
// checks that every value is present and that the base point satisfies the
// curve equation.
func NewCustomParams(p, a, b, gx, gy, n *big.Int) (*Params, error) {
	params := &Params{Name: NameCustom, P: p, A: a, B: b, Gx: gx, Gy: gy, N: n}
	if err := params.check(); err != nil {
		return nil, err
	}
	return params, nil
}

// P256Params returns NIST P-256 (secp256r1). Each call returns a fresh copy.
func P256Params() *Params {
	return &Params{
		Name: NameP256,
		P:    mustHex("ffffffff00000001000000000000000000000000ffffffffffffffffffffffff"),
		A:    mustHex("ffffffff00000001000000000000000000000000fffffffffffffffffffffffc"),
		B:    mustHex("5ac635d8aa3a93e7b3ebbd55769886bc651d06b0cc53b0f63bce3c3e27d2604b"),
		Gx:   mustHex("6b17d1f2e12c4247f8bce6e563a440f277037d812deb33a0f4a13945d898c296"),
		Gy:   mustHex("4fe342e2fe1a7f9b8ee7eb4a7c0f9e162bce33576b315ececbb6406837bf51f5"),
		N:    mustHex("ffffffff00000000ffffffffffffffffbce6faada7179e84f3b9cac2fc632551"),
	}
}

// Clone returns a deep copy of the parameters.
func (p *Params) Clone() *Params {
	return &Params{
		Name: p.Name,
		P:    new(big.Int).Set(p.P),
		A:    new(big.Int).Set(p.A),
		B:    new(big.Int).Set(p.B),
		Gx:   new(big.Int).Set(p.Gx),
		Gy:   new(big.Int).Set(p.Gy),
		N:    new(big.Int).Set(p.N),
	}
}

// FieldSize is the encoded length of one coordinate in bytes.
func (p *Params) FieldSize() int {
	return (p.P.BitLen() + 7) / 8
}

// polynomial returns x³ + ax + b mod p.
func (p *Params) polynomial(x *big.Int) *big.Int {
	r := new(big.Int).Mul(x, x)
	r.Add(r, p.A) // x² + a
	r.Mul(r, x)   // x³ + ax
	r.Add(r, p.B) // x³ + ax + b
	return r.Mod(r, p.P)
}

func (p *Params) check() error {
	for name, v := range map[string]*big.Int{"p": p.P, "a": p.A, "b": p.B, "gx": p.Gx, "gy": p.Gy, "n": p.N} {
		if v == nil {
			return fmt.Errorf("curve: missing parameter %s", name)
		}
		if v.Sign() < 0 {
			return fmt.Errorf("curve: negative parameter %s", name)
		}
	}
	if p.P.Cmp(big.NewInt(3)) < 0 || p.N.Sign() == 0 {
		return fmt.Errorf("curve: degenerate modulus or order")
	}
	y2 := new(big.Int).Mul(p.Gy, p.Gy)
	y2.Mod(y2, p.P)
	if y2.Cmp(p.polynomial(p.Gx)) != 0 {
		return fmt.Errorf("%w: base point", ErrPointNotOnCurve)
	}
	return nil
}

func mustHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("curve: bad hex constant " + s)
	}
	return v
}
