package login

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Login results used as the "result" label.
const (
	ResultSuccess      = "success"
	ResultRejected     = "rejected"
	ResultUnknownUser  = "unknown_user"
	ResultInactive     = "inactive"
	ResultNoSigningKey = "no_signing_key"
	ResultThrottled    = "throttled"
	ResultError        = "error"
)

// Proof verification outcomes used as the "outcome" label.
const (
	OutcomeValid     = "valid"
	OutcomeInvalid   = "invalid"
	OutcomeMalformed = "malformed"
)

// Metrics holds the login counters.
type Metrics struct {
	attempts      *prometheus.CounterVec
	verifications *prometheus.CounterVec
	duration      prometheus.Histogram
}

// NewMetrics creates the login collectors and registers them with reg. A nil
// reg gets a private registry so the global one is never touched.
// Collectors already registered by another service are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iam0",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts by result.",
		},
		[]string{"result"},
	)
	verifications := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "iam0",
			Name:      "proof_verifications_total",
			Help:      "Total number of Schnorr proof verifications by curve and outcome.",
		},
		[]string{"curve", "outcome"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "iam0",
			Name:      "login_duration_seconds",
			Help:      "Login latency distribution in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	m := &Metrics{}
	var err error
	if m.attempts, err = register(reg, attempts); err != nil {
		return nil, err
	}
	if m.verifications, err = register(reg, verifications); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}
