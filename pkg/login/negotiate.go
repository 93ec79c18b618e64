package login

import (
	"errors"
	"strings"

	"github.com/iam0-cloud/iam0-core/pkg/crypto/curve"
)

// ErrNoCommonCurve indicates the client supports none of the enabled curves.
var ErrNoCommonCurve = errors.New("login: no common curve")

// Negotiate picks the curve a client should prove on: the highest priority
// enabled curve that appears in offered. Offered names may be aliases.
func (s *Service) Negotiate(offered []string) (curve.Curve, error) {
	accepted := make(map[string]bool, len(offered))
	for _, name := range offered {
		accepted[strings.ToLower(name)] = true
		if named, err := curve.FromName(name); err == nil {
			accepted[named.Name()] = true
		}
	}
	for _, crv := range s.curves {
		if accepted[crv.Name()] {
			return crv, nil
		}
	}
	return nil, ErrNoCommonCurve
}
