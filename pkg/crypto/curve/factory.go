package curve

import (
	"fmt"
	"strings"
)

// Curve identifiers used on the wire and in configuration.
const (
	NameP256         = "p256"
	NameSecp256k1    = "secp256k1"
	NameRistretto255 = "ristretto255"
	NameCustom       = "custom"
)

// Spec selects a curve: either a named standard, or NameCustom together with
// its parameters.
type Spec struct {
	Name   string  `json:"name" yaml:"name" mapstructure:"name"`
	Custom *Params `json:"custom,omitempty" yaml:"custom,omitempty" mapstructure:"custom"`
}

// FromName returns a Curve implementation that matches the provided name.
func FromName(name string) (Curve, error) {
	switch strings.ToLower(name) {
	case NameP256, "p-256", "secp256r1", "prime256v1":
		return NewP256(), nil
	case NameSecp256k1:
		return NewSecp256k1(), nil
	case NameRistretto255:
		return NewRistretto255(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurve, name)
	}
}

// FromSpec resolves a Spec. Custom parameters are checked before use.
func FromSpec(spec Spec) (Curve, error) {
	if !strings.EqualFold(spec.Name, NameCustom) {
		return FromName(spec.Name)
	}
	if spec.Custom == nil {
		return nil, fmt.Errorf("%w: custom curve without parameters", ErrUnsupportedCurve)
	}
	if err := spec.Custom.check(); err != nil {
		return nil, err
	}
	params := spec.Custom.Clone()
	params.Name = NameCustom
	return NewWeierstrass(params), nil
}

// SupportedCurves lists the curve identifiers understood by FromName.
func SupportedCurves() []string {
	return []string{NameP256, NameSecp256k1, NameRistretto255}
}
