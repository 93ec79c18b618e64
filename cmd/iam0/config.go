package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	configOutput string
	configForce  bool
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Generate and inspect iam0 configuration files.

Configuration files use YAML and can set defaults for the global flags.
Command-line flags override config file values.

Environment variables can also be used with the IAM0_ prefix.
For example: IAM0_CURVE=secp256k1

Examples:
  # Generate default config file
  iam0 config init

  # Generate config file in custom location
  iam0 config init --output ./iam0.yaml

  # Show current config
  iam0 config show`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a sample configuration file",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().StringVarP(&configOutput, "output", "o", "", "output path (default: $HOME/.iam0/config.yaml)")
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

const sampleConfig = `# iam0 configuration file
# Command-line flags override these values

# Curve for user key pairs
# Options: p256, secp256k1, ristretto255
curve: p256

# Fiat-Shamir challenge hash
# Options: sha256, sha512, sha3-256, sha3-512
hash: sha3-512

# Token AEAD
# Options: aes-256-gcm, chacha20-poly1305, xchacha20-poly1305
aead: aes-256-gcm

# Serialization codec for key files and login requests
# Options: json, msgpack, cbor, yaml, toml, bson
codec: json

# Token lifetime
token_ttl: 15m

# Identifier generator
service_id: 0
worker_id: 0

# Verbose output
verbose: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	outputPath := configOutput
	if outputPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		outputPath = filepath.Join(homeDir, ".iam0", "config.yaml")
	}

	if _, err := os.Stat(outputPath); err == nil && !configForce {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", outputPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created: %s\n", outputPath)
	fmt.Fprintf(out, "\nTo use this config file:\n")
	fmt.Fprintf(out, "  iam0 --config %s <command>\n", outputPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if _, err := out.Write(data); err != nil {
		return err
	}

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "\n# Loaded from: %s\n", used)
	}
	return nil
}
