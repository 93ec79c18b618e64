package curve

import (
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Secp256k1Params returns the secp256k1 parameters as published by btcec.
// Each call returns a fresh copy.
func Secp256k1Params() *Params {
	src := btcec.S256().Params()
	return &Params{
		Name: NameSecp256k1,
		P:    new(big.Int).Set(src.P),
		A:    new(big.Int),
		B:    new(big.Int).Set(src.B),
		Gx:   new(big.Int).Set(src.Gx),
		Gy:   new(big.Int).Set(src.Gy),
		N:    new(big.Int).Set(src.N),
	}
}

// NewSecp256k1 returns the secp256k1 curve.
func NewSecp256k1() Curve {
	return NewWeierstrass(Secp256k1Params())
}
