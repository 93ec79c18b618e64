package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iam0-cloud/iam0-core/pkg/crypto/csprng"
	"github.com/iam0-cloud/iam0-core/pkg/crypto/schnorr"
	"github.com/iam0-cloud/iam0-core/pkg/id"
	"github.com/iam0-cloud/iam0-core/pkg/login"
)

var (
	proveKey      string
	proveClientID string
	proveEmail    string
	proveOutput   string

	verifyInput string
)

// RequestFile is the on-disk form of a login request. Fields are flat in
// every codec.
type RequestFile struct {
	ClientID          string `json:"client_id" yaml:"client_id" msgpack:"client_id" cbor:"client_id" toml:"client_id" bson:"client_id"`
	Email             string `json:"email" yaml:"email" msgpack:"email" cbor:"email" toml:"email" bson:"email"`
	schnorr.WireProof `yaml:",inline" bson:",inline"`
}

// Request converts f to a login request.
func (f *RequestFile) Request() (*login.Request, error) {
	clientID, err := id.ParseHex(f.ClientID)
	if err != nil {
		return nil, err
	}
	return &login.Request{
		Payload:   login.Payload{ClientID: clientID, Email: f.Email},
		WireProof: f.WireProof,
	}, nil
}

// errInvalidProof is returned by verify so the process exits non-zero.
var errInvalidProof = errors.New("proof is invalid")

// proveCmd represents the prove command
var proveCmd = &cobra.Command{
	Use:   "prove",
	Short: "Create a login request",
	Long: `Create a login request carrying a Schnorr proof of possession of the
user's private key, bound to the client id and email.

Examples:
  iam0 prove --key alice.key --client-id 0123abcd --email alice@example.com`,
	RunE: runProve,
}

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a login request",
	Long: `Verify the Schnorr proof in a login request produced by 'iam0 prove'.

The proof is checked against the payload (client id and email) carried in
the request, using the configured challenge hash.

Examples:
  iam0 prove --key alice.key --client-id 1 --email alice@example.com | iam0 verify`,
	RunE: runVerify,
}

func init() {
	proveCmd.Flags().StringVarP(&proveKey, "key", "k", "", "user key file")
	proveCmd.Flags().StringVar(&proveClientID, "client-id", "", "client identifier (hex)")
	proveCmd.Flags().StringVar(&proveEmail, "email", "", "user email")
	proveCmd.Flags().StringVarP(&proveOutput, "out", "o", "", "output file (default: stdout)")
	for _, name := range []string{"key", "client-id", "email"} {
		if err := proveCmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}

	verifyCmd.Flags().StringVarP(&verifyInput, "in", "i", "-", "login request file (default: stdin)")
}

func runProve(cmd *cobra.Command, args []string) error {
	h, err := configuredHash()
	if err != nil {
		return err
	}
	s, err := configuredCodec()
	if err != nil {
		return err
	}
	clientID, err := id.ParseHex(proveClientID)
	if err != nil {
		return err
	}
	kp, err := loadKeyPair(cmd, proveKey)
	if err != nil {
		return err
	}
	defer kp.Zeroize()

	rng, err := csprng.New()
	if err != nil {
		return err
	}

	payload := login.Payload{ClientID: clientID, Email: proveEmail}
	proof, err := schnorr.Prove(h, kp, payload.Bytes(), rng)
	if err != nil {
		return fmt.Errorf("failed to create proof: %w", err)
	}

	data, err := s.Marshal(RequestFile{
		ClientID:  clientID.Hex(),
		Email:     proveEmail,
		WireProof: proof.Wire(),
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"curve":     kp.Curve().Name(),
		"hash":      h.Name(),
		"client_id": clientID.String(),
	}).Debug("Created login proof")

	return writeOutput(cmd, proveOutput, data, s, 0o644)
}

func runVerify(cmd *cobra.Command, args []string) error {
	h, err := configuredHash()
	if err != nil {
		return err
	}
	s, err := configuredCodec()
	if err != nil {
		return err
	}
	data, err := readInput(cmd, verifyInput, s)
	if err != nil {
		return err
	}

	var file RequestFile
	if err := s.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse login request: %w", err)
	}
	req, err := file.Request()
	if err != nil {
		return err
	}

	proof, err := schnorr.DecodeWire(req.WireProof)
	if err != nil {
		return fmt.Errorf("failed to decode proof: %w", err)
	}

	result := schnorr.Check(h, proof, req.Payload.Bytes())
	if !result.Valid {
		logrus.WithError(result.Err).Debug("Proof verification failed")
		fmt.Fprintln(cmd.OutOrStdout(), "invalid")
		return errInvalidProof
	}

	fmt.Fprintln(cmd.OutOrStdout(), "valid")
	return nil
}
