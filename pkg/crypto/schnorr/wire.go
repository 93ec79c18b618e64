package schnorr

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/iam0-cloud/iam0-core/pkg/crypto/curve"
)

// WireProof is the transport form of a Proof. Points are hex-encoded SEC1
// (or ristretto255) encodings and the response is a hex-encoded big-endian
// scalar. Curve tags the parameter set the values belong to.
type WireProof struct {
	Curve      string `json:"curve" msgpack:"curve" cbor:"curve" yaml:"curve" toml:"curve" bson:"curve"`
	Commitment string `json:"commitment" msgpack:"commitment" cbor:"commitment" yaml:"commitment" toml:"commitment" bson:"commitment"`
	PublicKey  string `json:"public_key" msgpack:"public_key" cbor:"public_key" yaml:"public_key" toml:"public_key" bson:"public_key"`
	Proof      string `json:"proof" msgpack:"proof" cbor:"proof" yaml:"proof" toml:"proof" bson:"proof"`
}

// Wire returns the transport form of p.
func (p *Proof) Wire() WireProof {
	return WireProof{
		Curve:      p.Curve.Name(),
		Commitment: hex.EncodeToString(p.Commitment.Bytes()),
		PublicKey:  hex.EncodeToString(p.PublicKey.Bytes()),
		Proof:      hex.EncodeToString(p.Response.Bytes()),
	}
}

// DecodeWire resolves the curve tag with curve.FromName and decodes w. Custom
// curves cannot be resolved from a tag alone; use Decode with the configured
// curve instead.
func DecodeWire(w WireProof) (*Proof, error) {
	crv, err := curve.FromName(w.Curve)
	if err != nil {
		return nil, err
	}
	return w.Decode(crv)
}

// Decode parses w on crv. The tag must name crv. Every value is checked for
// length, range and curve membership before any arithmetic is done; failures
// wrap curve.ErrInvalidEncoding.
func (w WireProof) Decode(crv curve.Curve) (*Proof, error) {
	if !strings.EqualFold(w.Curve, crv.Name()) && !sameCurve(w.Curve, crv) {
		return nil, fmt.Errorf("%w: proof for %q, expected %q", ErrCurveMismatch, w.Curve, crv.Name())
	}

	R, err := decodePoint(crv, "commitment", w.Commitment)
	if err != nil {
		return nil, err
	}
	P, err := decodePoint(crv, "public key", w.PublicKey)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(w.Proof)
	if err != nil {
		return nil, fmt.Errorf("%w: proof: %v", curve.ErrInvalidScalar, err)
	}
	s, err := crv.ParseScalar(raw)
	if err != nil {
		return nil, fmt.Errorf("proof: %w", err)
	}

	return &Proof{Curve: crv, Commitment: R, Response: s, PublicKey: P}, nil
}

func decodePoint(crv curve.Curve, field, s string) (curve.Point, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", curve.ErrInvalidPoint, field, err)
	}
	pt, err := crv.ParsePoint(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return pt, nil
}

// sameCurve accepts aliases such as "secp256r1" for a p256 curve.
func sameCurve(tag string, crv curve.Curve) bool {
	named, err := curve.FromName(tag)
	return err == nil && named.Name() == crv.Name()
}
