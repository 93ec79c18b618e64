// Package login verifies a user's Schnorr proof of key possession and
// issues a signed, optionally sealed, claims token for the user's client.
//
// The proof is bound to the login payload: the client id as 16
// little-endian bytes followed by the email. A proof made for one client or
// email does not verify for another.
package login

import (
	"context"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/iam0-cloud/iam0-core/pkg/crypto/csprng"
	"github.com/iam0-cloud/iam0-core/pkg/crypto/curve"
	"github.com/iam0-cloud/iam0-core/pkg/crypto/schnorr"
	"github.com/iam0-cloud/iam0-core/pkg/id"
	"github.com/iam0-cloud/iam0-core/pkg/storage"
	"github.com/iam0-cloud/iam0-core/pkg/token"
)

var (
	// ErrProofRejected indicates a proof that did not verify or was made
	// with a key other than the user's registered one.
	ErrProofRejected = errors.New("login: proof rejected")

	// ErrSigningKeyUnavailable indicates the client has no usable signing
	// key.
	ErrSigningKeyUnavailable = errors.New("login: signing key unavailable")

	// ErrUserInactive indicates a banned or otherwise inactive user.
	ErrUserInactive = errors.New("login: user is not active")

	// ErrKeyRevoked indicates the proof's public key is on the denylist.
	ErrKeyRevoked = errors.New("login: public key revoked")

	// ErrCurveDisabled indicates a proof on a curve this service does not
	// accept.
	ErrCurveDisabled = errors.New("login: curve not enabled")

	// ErrUnauthorized is the single error callers see for any rejected
	// login.
	ErrUnauthorized = errors.New("login: unauthorized")
)

// Payload is the data a login proof is bound to.
type Payload struct {
	ClientID id.Identifier `json:"client_id"`
	Email    string        `json:"email"`
}

// Bytes returns client_id (16 bytes, little-endian) ‖ email.
func (p Payload) Bytes() []byte {
	out := make([]byte, 0, id.Size+len(p.Email))
	out = append(out, p.ClientID.LittleEndian()...)
	return append(out, p.Email...)
}

// Request is a login request. Its JSON form is flat:
//
//	{"client_id": "...", "email": "...", "curve": "p256",
//	 "commitment": "04...", "public_key": "04...", "proof": "..."}
type Request struct {
	Payload
	schnorr.WireProof
}

// Response carries the issued token.
type Response struct {
	Token     string        `json:"token"`
	Sealed    bool          `json:"sealed"`
	KeyID     string        `json:"kid,omitempty"`
	UserID    id.Identifier `json:"user_id"`
	ExpiresAt int64         `json:"expires_at,omitempty"`
}

// Config configures a Service.
type Config struct {
	// Curves lists the accepted curves, highest priority first. Empty
	// means p256 only.
	Curves []curve.Spec

	// Hash names the challenge hash. Empty means the schnorr default.
	Hash string

	// AEAD is used for clients that do not name one.
	AEAD string

	// TokenTTL is the token lifetime. Zero issues tokens without expiry.
	TokenTTL time.Duration

	// Rand supplies token nonces. Nil means a fresh ChaCha20 stream.
	Rand io.Reader

	// Replay remembers accepted commitments. Nil means a
	// MemoryReplayStore with DefaultReplayWindow.
	Replay ReplayStore

	// RateLimit bounds attempts per client and email. Nil disables it.
	RateLimit *RateLimit

	// Registerer receives the login metrics. Nil keeps them private.
	Registerer prometheus.Registerer

	// Logger defaults to the logrus standard logger.
	Logger *logrus.Logger
}

// Service performs logins against a store.
type Service struct {
	store   storage.Store
	curves  []curve.Curve
	byName  map[string]curve.Curve
	hash    schnorr.Hash
	aead    string
	ttl     time.Duration
	rand    io.Reader
	replay  ReplayStore
	limiter *rateLimiter
	now     func() time.Time
	metrics *Metrics
	log     *logrus.Logger
}

// NewService creates a login service.
func NewService(store storage.Store, config Config) (*Service, error) {
	specs := config.Curves
	if len(specs) == 0 {
		specs = []curve.Spec{{Name: curve.NameP256}}
	}

	s := &Service{
		store:  store,
		byName: make(map[string]curve.Curve, len(specs)),
		aead:   config.AEAD,
		ttl:    config.TokenTTL,
		rand:   config.Rand,
		replay: config.Replay,
		now:    time.Now,
		log:    config.Logger,
	}

	for _, spec := range specs {
		crv, err := curve.FromSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		if _, dup := s.byName[crv.Name()]; dup {
			return nil, fmt.Errorf("login: curve %q listed twice", crv.Name())
		}
		s.curves = append(s.curves, crv)
		s.byName[crv.Name()] = crv
	}

	var err error
	if s.hash, err = schnorr.HashFromName(config.Hash); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if _, err := token.NewAEAD(s.aead, make([]byte, token.KeySize)); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if s.rand == nil {
		rng, err := csprng.New()
		if err != nil {
			return nil, err
		}
		s.rand = csprng.NewLocked(rng)
	}
	if config.RateLimit != nil {
		if s.limiter, err = newRateLimiter(*config.RateLimit); err != nil {
			return nil, err
		}
	}
	if s.replay == nil {
		s.replay = NewMemoryReplayStore(DefaultReplayWindow)
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.metrics, err = NewMetrics(config.Registerer); err != nil {
		return nil, fmt.Errorf("login: failed to register metrics: %w", err)
	}
	return s, nil
}

// Curves returns the accepted curve names, highest priority first.
func (s *Service) Curves() []string {
	names := make([]string, len(s.curves))
	for i, crv := range s.curves {
		names[i] = crv.Name()
	}
	return names
}

// Hash returns the challenge hash in use.
func (s *Service) Hash() schnorr.Hash {
	return s.hash
}

// Login verifies req and issues a token for the user. Errors keep their
// cause for logging; pass them through Unauthorized before showing them to
// a caller.
func (s *Service) Login(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	log := s.log.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"client_id":  req.ClientID.String(),
		"curve":      req.Curve,
	})

	resp, err := s.login(ctx, req, log)

	result := resultOf(err)
	s.metrics.attempts.WithLabelValues(result).Inc()
	s.metrics.duration.Observe(time.Since(start).Seconds())

	if err != nil {
		entry := log.WithFields(logrus.Fields{"result": result, "error": err.Error()})
		if result == ResultError {
			entry.Error("login failed")
		} else {
			entry.Warn("login rejected")
		}
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"user_id": resp.UserID.String(),
		"kid":     resp.KeyID,
		"sealed":  resp.Sealed,
	}).Info("login succeeded")
	return resp, nil
}

func (s *Service) login(ctx context.Context, req *Request, log *logrus.Entry) (*Response, error) {
	if s.limiter != nil && !s.limiter.allow(req.ClientID, req.Email) {
		return nil, ErrRateLimited
	}

	crv, err := s.curveFor(req.Curve)
	if err != nil {
		s.metrics.verifications.WithLabelValues("unknown", OutcomeMalformed).Inc()
		return nil, err
	}
	label := crv.Name()

	proof, err := req.WireProof.Decode(crv)
	if err != nil {
		s.metrics.verifications.WithLabelValues(label, OutcomeMalformed).Inc()
		return nil, err
	}

	result := schnorr.Check(s.hash, proof, req.Payload.Bytes())
	if !result.Valid {
		s.metrics.verifications.WithLabelValues(label, OutcomeInvalid).Inc()
		return nil, fmt.Errorf("%w: %v", ErrProofRejected, result.Err)
	}
	s.metrics.verifications.WithLabelValues(label, OutcomeValid).Inc()

	user, err := s.store.GetUserByEmail(ctx, req.ClientID, req.Email)
	if err != nil {
		return nil, err
	}
	if user.Status != storage.StatusActive {
		return nil, ErrUserInactive
	}
	if err := checkRegisteredKey(crv, user, proof.PublicKey); err != nil {
		return nil, err
	}

	revoked, err := s.store.IsInDenylist(ctx, proof.PublicKey.Bytes())
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrKeyRevoked
	}

	client, err := s.store.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	signer, err := s.signer(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	claims := &token.Claims{
		UserID:   user.ID,
		ClientID: req.ClientID,
		IssuedAt: now.Unix(),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = now.Add(s.ttl).Unix()
	}

	tok, err := token.SignClaims(claims, signer)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		KeyID:     signer.KeyID(),
		UserID:    user.ID,
		ExpiresAt: claims.ExpiresAt,
	}
	if len(client.EncryptionKey) == 0 {
		log.Debug("client has no encryption key, issuing unsealed token")
		if resp.Token, err = token.Encode(tok); err != nil {
			return nil, err
		}
	} else {
		aead, err := s.clientAEAD(client)
		if err != nil {
			return nil, err
		}
		if resp.Token, err = token.Seal(tok, aead, s.rand); err != nil {
			return nil, err
		}
		resp.Sealed = true
	}

	// The commitment is recorded only once a token exists, so a request
	// that failed on a fault can be retried unchanged.
	replayed, err := s.replay.Seen(ctx, replayKey(proof))
	if err != nil {
		return nil, err
	}
	if replayed {
		return nil, ErrProofReplayed
	}
	return resp, nil
}

// Revoke adds pub to the denylist in its canonical encoding, so a key is
// revoked whichever point encoding it is presented in.
func (s *Service) Revoke(ctx context.Context, curveTag string, pub []byte) error {
	crv, err := s.curveFor(curveTag)
	if err != nil {
		return err
	}
	pt, err := crv.ParsePoint(pub)
	if err != nil {
		return err
	}
	return s.store.AddToDenylist(ctx, pt.Bytes())
}

// curveFor resolves a wire tag to an enabled curve, accepting aliases such
// as "secp256r1".
func (s *Service) curveFor(tag string) (curve.Curve, error) {
	if crv, ok := s.byName[strings.ToLower(tag)]; ok {
		return crv, nil
	}
	if named, err := curve.FromName(tag); err == nil {
		if crv, ok := s.byName[named.Name()]; ok {
			return crv, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrCurveDisabled, tag)
}

func (s *Service) signer(ctx context.Context, clientID id.Identifier) (*token.ES256Signer, error) {
	key, kid, err := s.store.SigningKey(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrSigningKeyUnavailable, err)
		}
		return nil, err
	}
	defer clear(key)

	signer, err := token.NewES256SignerFromBytes(key, kid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningKeyUnavailable, err)
	}
	return signer, nil
}

func (s *Service) clientAEAD(client *storage.Client) (cipher.AEAD, error) {
	alg := client.AEAD
	if alg == "" {
		alg = s.aead
	}
	aead, err := token.NewAEAD(alg, client.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("login: client %s: %w", client.ID, err)
	}
	return aead, nil
}

// checkRegisteredKey ensures pub is the key the user registered on crv.
func checkRegisteredKey(crv curve.Curve, user *storage.User, pub curve.Point) error {
	if user.Curve != "" && user.Curve != crv.Name() {
		return fmt.Errorf("%w: user registered on %s", ErrProofRejected, user.Curve)
	}
	registered, err := crv.ParsePoint(user.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: registered key: %v", ErrProofRejected, err)
	}
	if !registered.Equal(pub) {
		return fmt.Errorf("%w: public key is not registered", ErrProofRejected)
	}
	return nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, ErrProofRejected), errors.Is(err, ErrProofReplayed),
		errors.Is(err, ErrKeyRevoked), errors.Is(err, ErrCurveDisabled),
		errors.Is(err, curve.ErrInvalidEncoding), errors.Is(err, schnorr.ErrCurveMismatch):
		return ResultRejected
	case errors.Is(err, ErrRateLimited):
		return ResultThrottled
	case errors.Is(err, ErrSigningKeyUnavailable):
		return ResultNoSigningKey
	case errors.Is(err, storage.ErrNotFound):
		return ResultUnknownUser
	case errors.Is(err, ErrUserInactive):
		return ResultInactive
	default:
		return ResultError
	}
}

// Unauthorized maps a Login error to what a caller may see. Every
// rejection becomes ErrUnauthorized so the reason cannot be probed.
// Infrastructure faults and throttling pass through.
func Unauthorized(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, csprng.ErrRandomnessUnavailable),
		errors.Is(err, storage.ErrUnavailable),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case resultOf(err) == ResultError:
		return err
	default:
		return ErrUnauthorized
	}
}
