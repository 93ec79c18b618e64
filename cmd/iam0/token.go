package main

import (
	"crypto/cipher"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iam0-cloud/iam0-core/pkg/crypto/csprng"
	"github.com/iam0-cloud/iam0-core/pkg/id"
	"github.com/iam0-cloud/iam0-core/pkg/keys"
	"github.com/iam0-cloud/iam0-core/pkg/token"
)

var (
	tokenSigningKey    string
	tokenSigningConfig string
	tokenEncKey        string
	tokenUserID        string
	tokenClientID      string
	tokenTTL           time.Duration
	tokenExtra         map[string]string

	tokenInput string
	tokenJWKS  string
	tokenKeyID string
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint, seal and open tokens",
	Long: `Mint signed claims tokens and open them again.

A token is a canonical CBOR claims payload signed with an issuer ES256 key.
With --enc-key it is sealed with the configured AEAD; without it the signed
token is only framed and base64url encoded.

Examples:
  iam0 token seal --user-id 1 --client-id 2 --enc-key $(openssl rand -hex 32)
  iam0 token open --enc-key ... --in token.txt`,
}

var tokenSealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Mint and seal a token",
	RunE:  runTokenSeal,
}

var tokenOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a token and verify its claims",
	RunE:  runTokenOpen,
}

func init() {
	tokenCmd.PersistentFlags().StringVar(&tokenSigningKey, "signing-key", "issuer.pem", "issuer signing key PEM file")
	tokenCmd.PersistentFlags().StringVar(&tokenSigningConfig, "signing-key-config", "issuer.json", "issuer signing key config file")
	tokenCmd.PersistentFlags().StringVar(&tokenEncKey, "enc-key", "", "client encryption key (hex, 32 bytes)")

	tokenSealCmd.Flags().StringVar(&tokenUserID, "user-id", "", "user identifier (hex)")
	tokenSealCmd.Flags().StringVar(&tokenClientID, "client-id", "", "client identifier (hex)")
	tokenSealCmd.Flags().DurationVar(&tokenTTL, "ttl", 15*time.Minute, "token lifetime (0 for none)")
	tokenSealCmd.Flags().StringToStringVar(&tokenExtra, "extra", nil, "extra claims (key=value)")
	for _, name := range []string{"user-id", "client-id"} {
		if err := tokenSealCmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}
	if err := viper.BindPFlag("token_ttl", tokenSealCmd.Flags().Lookup("ttl")); err != nil {
		panic(fmt.Sprintf("failed to bind ttl flag: %v", err))
	}

	tokenOpenCmd.Flags().StringVarP(&tokenInput, "in", "i", "-", "token file (default: stdin)")
	tokenOpenCmd.Flags().StringVar(&tokenJWKS, "jwks", "", "verify against this JWK set file instead of the signing key")
	tokenOpenCmd.Flags().StringVar(&tokenKeyID, "kid", "", "key id to select from --jwks")

	tokenCmd.AddCommand(tokenSealCmd)
	tokenCmd.AddCommand(tokenOpenCmd)
}

func clientAEAD() (cipher.AEAD, error) {
	if tokenEncKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(tokenEncKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	return token.NewAEAD(viper.GetString("aead"), key)
}

func runTokenSeal(cmd *cobra.Command, args []string) error {
	userID, err := id.ParseHex(tokenUserID)
	if err != nil {
		return err
	}
	clientID, err := id.ParseHex(tokenClientID)
	if err != nil {
		return err
	}
	signer, _, err := keys.LoadSigner(tokenSigningKey, tokenSigningConfig)
	if err != nil {
		return err
	}
	aead, err := clientAEAD()
	if err != nil {
		return err
	}

	now := time.Now()
	claims := &token.Claims{
		UserID:   userID,
		ClientID: clientID,
		IssuedAt: now.Unix(),
	}
	if len(tokenExtra) > 0 {
		claims.Extra = tokenExtra
	}
	if ttl := viper.GetDuration("token_ttl"); ttl > 0 {
		claims.ExpiresAt = now.Add(ttl).Unix()
	}

	tok, err := token.SignClaims(claims, signer)
	if err != nil {
		return err
	}

	var text string
	if aead == nil {
		text, err = token.Encode(tok)
	} else {
		rng, rerr := csprng.New()
		if rerr != nil {
			return rerr
		}
		text, err = token.Seal(tok, aead, rng)
	}
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"kid":    signer.KeyID(),
		"sealed": aead != nil,
	}).Debug("Minted token")

	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func runTokenOpen(cmd *cobra.Command, args []string) error {
	var raw []byte
	var err error
	if tokenInput == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(filepath.Clean(tokenInput))
	}
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	text := strings.TrimSpace(string(raw))

	aead, err := clientAEAD()
	if err != nil {
		return err
	}
	var tok *token.Token
	if aead == nil {
		tok, err = token.Decode(text)
	} else {
		tok, err = token.Open(text, aead)
	}
	if err != nil {
		return err
	}

	verifier, err := tokenVerifier()
	if err != nil {
		return err
	}
	claims, err := token.VerifyClaims(tok, verifier, time.Now())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(claims, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func tokenVerifier() (*token.ES256Verifier, error) {
	if tokenJWKS == "" {
		signer, _, err := keys.LoadSigner(tokenSigningKey, tokenSigningConfig)
		if err != nil {
			return nil, err
		}
		return signer.Verifier(), nil
	}

	data, err := os.ReadFile(filepath.Clean(tokenJWKS))
	if err != nil {
		return nil, fmt.Errorf("failed to read JWK set: %w", err)
	}
	set, err := jwk.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWK set: %w", err)
	}
	kid := tokenKeyID
	if kid == "" {
		if set.Len() != 1 {
			return nil, fmt.Errorf("JWK set holds %d keys, select one with --kid", set.Len())
		}
		key, _ := set.Key(0)
		kid = key.KeyID()
	}
	return keys.VerifierFromJWKS(set, kid)
}
