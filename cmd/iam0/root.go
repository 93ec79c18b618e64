package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iam0-cloud/iam0-core/pkg/codec"
	"github.com/iam0-cloud/iam0-core/pkg/crypto/curve"
	"github.com/iam0-cloud/iam0-core/pkg/crypto/schnorr"
)

// Version information - set via ldflags at build time
var (
	// Version is the semantic version
	Version = "dev"
	// GitCommit is the git commit hash
	GitCommit = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

var (
	cfgFile string
	verbose bool
)

// Global flags
var (
	curveName string
	hashName  string
	aeadName  string
	codecName string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "iam0",
	Short: "iam0 authentication core tool",
	Long: `iam0 is a command-line tool for the iam0 authentication core.

It generates user key pairs, produces and checks Schnorr proofs of key
possession bound to a login payload, manages issuer signing keys and
mints, seals and opens tokens.

Use 'iam0 keygen' to create a user key pair.
Use 'iam0 prove' and 'iam0 verify' to produce and check a login proof.
Use 'iam0 signing-key' to manage issuer keys.
Use 'iam0 token seal' and 'iam0 token open' to work with tokens.
Use 'iam0 demo' to run a complete login in memory.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize config
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.AddConfigPath("$HOME/.iam0")
			viper.AddConfigPath(".")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}

		// Environment variables
		viper.SetEnvPrefix("IAM0")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		viper.AutomaticEnv()

		logrus.SetOutput(cmd.ErrOrStderr())
		logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		if viper.GetBool("verbose") {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.WarnLevel)
		}

		// Read config file if it exists
		if err := viper.ReadInConfig(); err == nil {
			logrus.WithField("file", viper.ConfigFileUsed()).Debug("Using config file")
		}
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version number and build information of iam0.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "iam0 version %s\n", Version)
		fmt.Fprintf(out, "Git commit: %s\n", GitCommit)
		fmt.Fprintf(out, "Build date: %s\n", BuildTime)
		fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
		fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(out, "Curves: %s\n", strings.Join(curve.SupportedCurves(), ", "))
		fmt.Fprintf(out, "Hashes: %s\n", strings.Join(schnorr.SupportedHashes(), ", "))
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.iam0/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&curveName, "curve", curve.NameP256, "curve (p256, secp256k1, ristretto255)")
	rootCmd.PersistentFlags().StringVar(&hashName, "hash", schnorr.DefaultHash.Name(), "challenge hash (sha256, sha512, sha3-256, sha3-512)")
	rootCmd.PersistentFlags().StringVar(&aeadName, "aead", "aes-256-gcm", "token AEAD (aes-256-gcm, chacha20-poly1305, xchacha20-poly1305)")
	rootCmd.PersistentFlags().StringVar(&codecName, "codec", codec.JSON, "serialization format (json, msgpack, cbor, yaml, toml, bson)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	for key, flag := range map[string]string{
		"curve":   "curve",
		"hash":    "hash",
		"aead":    "aead",
		"codec":   "codec",
		"verbose": "verbose",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
		}
	}

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(proveCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(signingKeyCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(idCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(configCmd)
}

func configuredCurve() (curve.Curve, error) {
	return curve.FromName(viper.GetString("curve"))
}

func configuredHash() (schnorr.Hash, error) {
	return schnorr.HashFromName(viper.GetString("hash"))
}

func configuredCodec() (*codec.Serializer, error) {
	return codec.NewSerializer(viper.GetString("codec"))
}

// readInput reads path, or stdin for "-". Binary codecs are base64url text
// on stdin.
func readInput(cmd *cobra.Command, path string, s *codec.Serializer) ([]byte, error) {
	if path != "-" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return data, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	if s.Binary() {
		return base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(data)))
	}
	return data, nil
}

// writeOutput writes data to path with mode perm, or to stdout when path is
// empty. Binary codecs are base64url text on stdout.
func writeOutput(cmd *cobra.Command, path string, data []byte, s *codec.Serializer, perm os.FileMode) error {
	if path != "" {
		if err := os.WriteFile(path, data, perm); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		return nil
	}
	out := cmd.OutOrStdout()
	if s.Binary() {
		_, err := fmt.Fprintln(out, base64.RawURLEncoding.EncodeToString(data))
		return err
	}
	if _, err := out.Write(data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		_, err := fmt.Fprintln(out)
		return err
	}
	return nil
}
