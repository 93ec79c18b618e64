package main

import (
	"encoding/hex"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iam0-cloud/iam0-core/pkg/crypto/csprng"
	"github.com/iam0-cloud/iam0-core/pkg/crypto/curve"
)

var keygenOutput string

// KeyFile is the on-disk form of a user key pair.
type KeyFile struct {
	Curve      string `json:"curve" yaml:"curve" msgpack:"curve" cbor:"curve" toml:"curve" bson:"curve"`
	PrivateKey string `json:"private_key" yaml:"private_key" msgpack:"private_key" cbor:"private_key" toml:"private_key" bson:"private_key"`
	PublicKey  string `json:"public_key" yaml:"public_key" msgpack:"public_key" cbor:"public_key" toml:"public_key" bson:"public_key"`
}

// keygenCmd represents the keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a user key pair",
	Long: `Generate a key pair on the configured curve.

The private scalar and public point are written hex-encoded in the
configured codec. The public key is what a user registers with a client.

Examples:
  # Generate a p256 key pair
  iam0 keygen --out alice.key

  # Generate a ristretto255 key pair as YAML on stdout
  iam0 keygen --curve ristretto255 --codec yaml`,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenOutput, "out", "o", "", "output file (default: stdout)")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	crv, err := configuredCurve()
	if err != nil {
		return err
	}
	s, err := configuredCodec()
	if err != nil {
		return err
	}

	rng, err := csprng.New()
	if err != nil {
		return err
	}
	kp, err := curve.GenerateKeyPair(crv, rng)
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}
	defer kp.Zeroize()

	data, err := s.Marshal(KeyFile{
		Curve:      crv.Name(),
		PrivateKey: hex.EncodeToString(kp.PrivateKey().Bytes()),
		PublicKey:  hex.EncodeToString(kp.PublicKey().Bytes()),
	})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"curve":      crv.Name(),
		"public_key": hex.EncodeToString(kp.PublicKey().Bytes()),
	}).Debug("Generated key pair")

	return writeOutput(cmd, keygenOutput, data, s, 0o600)
}

// loadKeyPair reads a KeyFile and checks that its public key matches the
// private scalar.
func loadKeyPair(cmd *cobra.Command, path string) (*curve.KeyPair, error) {
	s, err := configuredCodec()
	if err != nil {
		return nil, err
	}
	data, err := readInput(cmd, path, s)
	if err != nil {
		return nil, err
	}

	var kf KeyFile
	if err := s.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("failed to parse key file: %w", err)
	}
	crv, err := curve.FromName(kf.Curve)
	if err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(kf.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", curve.ErrInvalidScalar, err)
	}
	private, err := crv.ParseScalar(raw)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	kp, err := curve.NewKeyPair(crv, private)
	if err != nil {
		return nil, err
	}

	if kf.PublicKey != "" && kf.PublicKey != hex.EncodeToString(kp.PublicKey().Bytes()) {
		kp.Zeroize()
		return nil, fmt.Errorf("key file public key does not match private key")
	}
	return kp, nil
}
