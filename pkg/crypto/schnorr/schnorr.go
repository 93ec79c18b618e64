// Package schnorr implements a non-interactive Schnorr proof of knowledge of
// a private key, bound to an arbitrary payload.
//
// # Protocol Overview
//
// The prover convinces a verifier that they know x for a public key P = x·g
// without revealing x. The interactive challenge is replaced by a hash of the
// commitment and the payload (Fiat-Shamir):
//
//  1. COMMIT:
//     - draw a fresh nonce k in [1, n-1]
//     - R = k·g
//
//  2. CHALLENGE:
//     - c = H(encode(R) ‖ payload) mod n
//     - encode is the curve's fixed-length point encoding
//     - the digest is read as a big-endian integer
//
//  3. RESPOND:
//     - s = k + c·x (mod n)
//
//  4. VERIFY:
//     - recompute c from (R, payload)
//     - accept iff s·g == R + c·P
//
// # Why This Works
//
//	s·g = (k + c·x)·g
//	    = k·g + c·x·g
//	    = R + c·P
//
// # Nonce Reuse
//
// Two responses s1, s2 computed with the same k under challenges c1 != c2
// reveal x = (s1 - s2) / (c1 - c2) mod n. Commitments therefore draw their own
// nonce, keep it unexported, and release it for exactly one response. No
// function in this package accepts a caller-supplied nonce.
package schnorr

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/iam0-cloud/iam0-core/pkg/crypto/curve"
)

var (
	// ErrNonceConsumed is returned when a commitment is asked for a second
	// response.
	ErrNonceConsumed = errors.New("schnorr: commitment nonce already consumed")

	// ErrCurveMismatch indicates a key, proof or commitment from a different
	// curve than the one requested.
	ErrCurveMismatch = errors.New("schnorr: curve mismatch")
)

// Proof is a non-interactive Schnorr proof together with the public key it
// is made for.
type Proof struct {
	Curve      curve.Curve
	Commitment curve.Point  // R = k·g
	Response   curve.Scalar // s = k + c·x mod n
	PublicKey  curve.Point  // P = x·g
}

// VerificationResult carries the outcome of Check. Err explains a rejection
// and is nil for valid proofs.
type VerificationResult struct {
	Valid bool
	Err   error
}

// Commitment holds the prover's first message and its secret nonce.
//
// A Commitment is single use and not safe for concurrent use.
type Commitment struct {
	crv   curve.Curve
	nonce curve.Scalar
	point curve.Point
}

// Commit draws a nonce k in [1, n-1] from rand and computes R = k·g.
func Commit(crv curve.Curve, rand io.Reader) (*Commitment, error) {
	k, err := crv.GenerateScalar(rand)
	if err != nil {
		return nil, fmt.Errorf("schnorr: failed to generate nonce: %w", err)
	}
	R := crv.ScalarBaseMult(k)
	if R == nil {
		return nil, fmt.Errorf("schnorr: failed to compute commitment point")
	}
	return &Commitment{crv: crv, nonce: k, point: R}, nil
}

// Point returns R.
func (cm *Commitment) Point() curve.Point {
	return cm.point
}

// Consumed reports whether the nonce has been released.
func (cm *Commitment) Consumed() bool {
	return cm.nonce == nil
}

// Respond computes s = k + c·x mod n and destroys the nonce. Every call after
// the first returns ErrNonceConsumed.
func (cm *Commitment) Respond(c, x curve.Scalar) (curve.Scalar, error) {
	if cm.nonce == nil {
		return nil, ErrNonceConsumed
	}
	k := cm.nonce
	cm.nonce = nil
	defer wipe(k)

	n := cm.crv.Order()
	s := new(big.Int).Mul(c.BigInt(), x.BigInt())
	s.Add(s, k.BigInt())
	s.Mod(s, n)
	return cm.crv.NewScalar(s), nil
}

// Challenge derives c = H(encode(R) ‖ payload) mod n.
func Challenge(crv curve.Curve, h Hash, R curve.Point, payload []byte) curve.Scalar {
	d := h.New()
	d.Write(R.Bytes())
	d.Write(payload)
	return crv.NewScalar(new(big.Int).SetBytes(d.Sum(nil)))
}

// Prove produces a proof that the holder of kp knows its private key, bound
// to payload. A fresh nonce is drawn from rand for every call.
func Prove(h Hash, kp *curve.KeyPair, payload []byte, rand io.Reader) (*Proof, error) {
	crv := kp.Curve()
	cm, err := Commit(crv, rand)
	if err != nil {
		return nil, err
	}
	c := Challenge(crv, h, cm.Point(), payload)
	s, err := cm.Respond(c, kp.PrivateKey())
	if err != nil {
		return nil, err
	}
	return &Proof{
		Curve:      crv,
		Commitment: cm.Point(),
		Response:   s,
		PublicKey:  kp.PublicKey(),
	}, nil
}

// Verify reports whether proof is valid for payload. It never fails with an
// error: malformed or foreign values simply do not verify.
func Verify(h Hash, proof *Proof, payload []byte) bool {
	return Check(h, proof, payload).Valid
}

// Check is Verify with the reason for a rejection.
func Check(h Hash, proof *Proof, payload []byte) *VerificationResult {
	if proof == nil || proof.Curve == nil || proof.Commitment == nil || proof.Response == nil || proof.PublicKey == nil {
		return &VerificationResult{Err: errors.New("schnorr: incomplete proof")}
	}
	crv := proof.Curve

	// ═══════════════════════════════════════════════════════════════════════
	// STEP 1: Both points must be non-identity group elements
	// ═══════════════════════════════════════════════════════════════════════
	if err := crv.ValidatePoint(proof.PublicKey); err != nil {
		return &VerificationResult{Err: fmt.Errorf("invalid public key: %w", err)}
	}
	if err := crv.ValidatePoint(proof.Commitment); err != nil {
		return &VerificationResult{Err: fmt.Errorf("invalid commitment: %w", err)}
	}
	if proof.Response.BigInt().Cmp(crv.Order()) >= 0 {
		return &VerificationResult{Err: fmt.Errorf("invalid response: %w", curve.ErrInvalidScalar)}
	}

	// ═══════════════════════════════════════════════════════════════════════
	// STEP 2: Recompute the challenge from (R, payload)
	// ═══════════════════════════════════════════════════════════════════════
	c := Challenge(crv, h, proof.Commitment, payload)

	// ═══════════════════════════════════════════════════════════════════════
	// STEP 3: s·g == R + c·P
	// ═══════════════════════════════════════════════════════════════════════
	left := crv.ScalarBaseMult(proof.Response)
	if left == nil {
		return &VerificationResult{Err: fmt.Errorf("schnorr: failed to compute s·g")}
	}
	cP := crv.ScalarMult(proof.PublicKey, c)
	if cP == nil {
		return &VerificationResult{Err: fmt.Errorf("schnorr: failed to compute c·P")}
	}
	right := crv.Add(proof.Commitment, cP)
	if right == nil {
		return &VerificationResult{Err: fmt.Errorf("schnorr: failed to compute R + c·P")}
	}

	if !left.Equal(right) {
		return &VerificationResult{Err: errors.New("schnorr: verification equation does not hold")}
	}
	return &VerificationResult{Valid: true}
}

func wipe(s curve.Scalar) {
	if z, ok := s.(interface{ Zeroize() }); ok {
		z.Zeroize()
	}
}
