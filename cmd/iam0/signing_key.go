package main

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iam0-cloud/iam0-core/pkg/crypto/csprng"
	"github.com/iam0-cloud/iam0-core/pkg/keys"
)

var (
	signingKeyFile   string
	signingKeyConfig string
	signingKeyIssuer string
)

// signingKeyCmd represents the signing-key command
var signingKeyCmd = &cobra.Command{
	Use:   "signing-key",
	Short: "Manage issuer signing keys",
	Long: `Generate and publish the ES256 keys that sign tokens.

A signing key is a P-256 private key stored as PEM next to a small JSON
file holding its key id and issuer.

Examples:
  # Generate a signing key
  iam0 signing-key generate --key issuer.pem --key-config issuer.json

  # Publish its public half as a JWK set
  iam0 signing-key jwks --key issuer.pem --key-config issuer.json`,
}

var signingKeyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a signing key",
	RunE:  runSigningKeyGenerate,
}

var signingKeyJWKSCmd = &cobra.Command{
	Use:   "jwks",
	Short: "Print the public JWK set",
	RunE:  runSigningKeyJWKS,
}

var signingKeyThumbprintCmd = &cobra.Command{
	Use:   "thumbprint",
	Short: "Print the RFC 7638 thumbprint of the public key",
	RunE:  runSigningKeyThumbprint,
}

func init() {
	signingKeyCmd.PersistentFlags().StringVar(&signingKeyFile, "key", "issuer.pem", "signing key PEM file")
	signingKeyCmd.PersistentFlags().StringVar(&signingKeyConfig, "key-config", "issuer.json", "signing key config file")
	signingKeyGenerateCmd.Flags().StringVar(&signingKeyIssuer, "issuer", "https://iam0.example", "issuer name")

	signingKeyCmd.AddCommand(signingKeyGenerateCmd)
	signingKeyCmd.AddCommand(signingKeyJWKSCmd)
	signingKeyCmd.AddCommand(signingKeyThumbprintCmd)
}

func runSigningKeyGenerate(cmd *cobra.Command, args []string) error {
	rng, err := csprng.New()
	if err != nil {
		return err
	}
	config, err := keys.GenerateFiles(rng, signingKeyIssuer, signingKeyFile, signingKeyConfig)
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"kid":    config.KeyID,
		"key":    signingKeyFile,
		"config": signingKeyConfig,
	}).Info("Generated signing key")

	fmt.Fprintf(cmd.OutOrStdout(), "Generated signing key %s\n", config.KeyID)
	return nil
}

func runSigningKeyJWKS(cmd *cobra.Command, args []string) error {
	signer, _, err := keys.LoadSigner(signingKeyFile, signingKeyConfig)
	if err != nil {
		return err
	}
	set, err := keys.JWKS(signer)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JWK set: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runSigningKeyThumbprint(cmd *cobra.Command, args []string) error {
	signer, _, err := keys.LoadSigner(signingKeyFile, signingKeyConfig)
	if err != nil {
		return err
	}
	tp, err := keys.Thumbprint(signer.Public())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tp)
	return nil
}
