package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iam0-cloud/iam0-core/pkg/id"
)

// resetFlags restores every flag of cmd and its children to its default so
// consecutive executions do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Value.Type() == "stringToString" {
			return
		}
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	resetFlags(rootCmd)
	clear(tokenExtra)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	require.NotNil(t, rootCmd)
	assert.Equal(t, "iam0", rootCmd.Use)

	expected := []string{"version", "keygen", "prove", "verify", "signing-key", "token", "id", "demo", "config"}
	for _, name := range expected {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "expected subcommand %s not found", name)
	}
}

func TestGlobalFlags(t *testing.T) {
	for _, name := range []string{"config", "curve", "hash", "aead", "codec", "verbose"} {
		t.Run(name, func(t *testing.T) {
			require.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "flag %s not found", name)
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "iam0 version dev")
	assert.Contains(t, out, "ristretto255")
	assert.Contains(t, out, "sha3-512")
}

func TestKeygenProveVerify(t *testing.T) {
	clientID := id.FromUint128(1, 2).Hex()

	tests := []struct {
		curve string
		codec string
	}{
		{"p256", "json"},
		{"secp256k1", "yaml"},
		{"ristretto255", "cbor"},
		{"p256", "msgpack"},
		{"secp256k1", "toml"},
		{"ristretto255", "bson"},
	}

	for _, tt := range tests {
		t.Run(tt.curve+"/"+tt.codec, func(t *testing.T) {
			dir := t.TempDir()
			keyFile := filepath.Join(dir, "user.key")
			reqFile := filepath.Join(dir, "request")

			_, err := execute(t, "", "keygen", "--curve", tt.curve, "--codec", tt.codec, "--out", keyFile)
			require.NoError(t, err)

			info, err := os.Stat(keyFile)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			_, err = execute(t, "", "prove", "--codec", tt.codec,
				"--key", keyFile, "--client-id", clientID, "--email", "alice@example.com", "--out", reqFile)
			require.NoError(t, err)

			out, err := execute(t, "", "verify", "--codec", tt.codec, "--in", reqFile)
			require.NoError(t, err)
			assert.Equal(t, "valid\n", out)
		})
	}
}

func TestVerifyStdin(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "user.key")

	_, err := execute(t, "", "keygen", "--out", keyFile)
	require.NoError(t, err)

	request, err := execute(t, "", "prove", "--key", keyFile, "--client-id", "2a", "--email", "bob@example.com")
	require.NoError(t, err)

	out, err := execute(t, request, "verify")
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	// Binary codecs travel as base64url on stdin and stdout.
	binKey := filepath.Join(dir, "user.msgpack")
	_, err = execute(t, "", "keygen", "--codec", "msgpack", "--out", binKey)
	require.NoError(t, err)
	request, err = execute(t, "", "prove", "--codec", "msgpack", "--key", binKey, "--client-id", "2a", "--email", "bob@example.com")
	require.NoError(t, err)
	assert.NotContains(t, strings.TrimSpace(request), "\n")

	out, err = execute(t, request, "verify", "--codec", "msgpack")
	require.NoError(t, err)
	assert.Equal(t, "valid\n", out)

	_, err = execute(t, "", "prove", "--key", filepath.Join(dir, "missing.key"), "--client-id", "2a", "--email", "bob@example.com")
	assert.Error(t, err)
}

func TestVerifyTampered(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "user.key")
	reqFile := filepath.Join(dir, "request.json")

	_, err := execute(t, "", "keygen", "--out", keyFile)
	require.NoError(t, err)
	_, err = execute(t, "", "prove", "--key", keyFile, "--client-id", "2a", "--email", "alice@example.com", "--out", reqFile)
	require.NoError(t, err)

	data, err := os.ReadFile(reqFile)
	require.NoError(t, err)
	var file RequestFile
	require.NoError(t, json.Unmarshal(data, &file))

	tests := []struct {
		name   string
		mutate func(f *RequestFile)
	}{
		{"email", func(f *RequestFile) { f.Email = "mallory@example.com" }},
		{"client", func(f *RequestFile) { f.ClientID = "2b" }},
		{"hash", func(f *RequestFile) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := file
			tt.mutate(&tampered)
			data, err := json.Marshal(tampered)
			require.NoError(t, err)
			path := filepath.Join(dir, tt.name+".json")
			require.NoError(t, os.WriteFile(path, data, 0o600))

			args := []string{"verify", "--in", path}
			if tt.name == "hash" {
				args = append(args, "--hash", "sha256")
			}
			out, err := execute(t, "", args...)
			assert.ErrorIs(t, err, errInvalidProof)
			assert.Equal(t, "invalid\n", out)
		})
	}
}

func TestKeygenMismatchedPublicKey(t *testing.T) {
	dir := t.TempDir()
	keyA := filepath.Join(dir, "a.key")
	keyB := filepath.Join(dir, "b.key")

	_, err := execute(t, "", "keygen", "--out", keyA)
	require.NoError(t, err)
	_, err = execute(t, "", "keygen", "--out", keyB)
	require.NoError(t, err)

	var a, b KeyFile
	data, err := os.ReadFile(keyA)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &a))
	data, err = os.ReadFile(keyB)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &b))

	a.PublicKey = b.PublicKey
	data, err = json.Marshal(a)
	require.NoError(t, err)
	mixed := filepath.Join(dir, "mixed.key")
	require.NoError(t, os.WriteFile(mixed, data, 0o600))

	_, err = execute(t, "", "prove", "--key", mixed, "--client-id", "1", "--email", "a@example.com")
	assert.ErrorContains(t, err, "does not match")
}

func TestIDCommand(t *testing.T) {
	out, err := execute(t, "", "id", "-n", "3", "--service", "7", "--worker", "9")
	require.NoError(t, err)

	lines := strings.Fields(out)
	require.Len(t, lines, 3)
	seen := map[string]bool{}
	for _, line := range lines {
		assert.Len(t, line, 32)
		assert.False(t, seen[line], "duplicate identifier %s", line)
		seen[line] = true
	}

	out, err = execute(t, "", "id", "--decode", lines[0])
	require.NoError(t, err)
	assert.Contains(t, out, "hex:       "+lines[0])
	assert.Contains(t, out, "service:   7\n")
	assert.Contains(t, out, "worker:    9\n")

	v, err := id.ParseHex(lines[1])
	require.NoError(t, err)
	out, err = execute(t, "", "id", "--decode", v.Base64())
	require.NoError(t, err)
	assert.Contains(t, out, "hex:       "+lines[1])

	_, err = execute(t, "", "id", "--decode", "not-an-id")
	assert.Error(t, err)

	_, err = execute(t, "", "id", "--count", "0")
	assert.Error(t, err)
}

// signingKeyFiles generates an issuer key in a temp dir.
func signingKeyFiles(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "issuer.pem")
	configFile := filepath.Join(dir, "issuer.json")

	out, err := execute(t, "", "signing-key", "generate", "--key", keyFile, "--key-config", configFile, "--issuer", "https://auth.test")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated signing key")
	return keyFile, configFile
}

func TestSigningKeyCommands(t *testing.T) {
	keyFile, configFile := signingKeyFiles(t)

	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err := execute(t, "", "signing-key", "jwks", "--key", keyFile, "--key-config", configFile)
	require.NoError(t, err)

	var set struct {
		Keys []map[string]any `json:"keys"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &set))
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "EC", set.Keys[0]["kty"])
	assert.Equal(t, "P-256", set.Keys[0]["crv"])
	assert.Equal(t, "ES256", set.Keys[0]["alg"])
	assert.NotContains(t, set.Keys[0], "d")

	out, err = execute(t, "", "signing-key", "thumbprint", "--key", keyFile, "--key-config", configFile)
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 43)

	_, err = execute(t, "", "signing-key", "jwks", "--key", filepath.Join(t.TempDir(), "missing.pem"), "--key-config", configFile)
	assert.Error(t, err)
}

func TestTokenSealOpen(t *testing.T) {
	keyFile, configFile := signingKeyFiles(t)
	encKey := hex.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
	userID := id.FromUint128(0, 10).Hex()
	clientID := id.FromUint128(0, 20).Hex()

	tests := []struct {
		name   string
		encKey string
		aead   string
	}{
		{"sealed aes", encKey, "aes-256-gcm"},
		{"sealed chacha", encKey, "chacha20-poly1305"},
		{"sealed xchacha", encKey, "xchacha20-poly1305"},
		{"unsealed", "", "aes-256-gcm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []string{"token", "seal", "--aead", tt.aead,
				"--signing-key", keyFile, "--signing-key-config", configFile,
				"--user-id", userID, "--client-id", clientID}
			if tt.encKey != "" {
				args = append(args, "--enc-key", tt.encKey)
			}
			text, err := execute(t, "", args...)
			require.NoError(t, err)
			text = strings.TrimSpace(text)
			require.NotEmpty(t, text)

			args = []string{"token", "open", "--aead", tt.aead,
				"--signing-key", keyFile, "--signing-key-config", configFile}
			if tt.encKey != "" {
				args = append(args, "--enc-key", tt.encKey)
			}
			out, err := execute(t, text, args...)
			require.NoError(t, err)

			var claims map[string]any
			require.NoError(t, json.Unmarshal([]byte(out), &claims))
			assert.Equal(t, userID, claims["user_id"])
			assert.Equal(t, clientID, claims["client_id"])
			assert.Contains(t, claims, "exp")
		})
	}
}

func TestTokenOpenRejects(t *testing.T) {
	keyFile, configFile := signingKeyFiles(t)
	otherKey, otherConfig := signingKeyFiles(t)
	encKey := hex.EncodeToString(bytes.Repeat([]byte{0x42}, 32))
	wrongKey := hex.EncodeToString(bytes.Repeat([]byte{0x24}, 32))

	text, err := execute(t, "", "token", "seal",
		"--signing-key", keyFile, "--signing-key-config", configFile,
		"--user-id", "1", "--client-id", "2", "--enc-key", encKey)
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
	}{
		{"wrong encryption key", []string{"--signing-key", keyFile, "--signing-key-config", configFile, "--enc-key", wrongKey}},
		{"wrong signing key", []string{"--signing-key", otherKey, "--signing-key-config", otherConfig, "--enc-key", encKey}},
		{"missing encryption key", []string{"--signing-key", keyFile, "--signing-key-config", configFile}},
		{"bad encryption key", []string{"--signing-key", keyFile, "--signing-key-config", configFile, "--enc-key", "zz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, text, append([]string{"token", "open"}, tt.args...)...)
			assert.Error(t, err)
		})
	}
}

func TestTokenOpenWithJWKS(t *testing.T) {
	keyFile, configFile := signingKeyFiles(t)
	dir := t.TempDir()

	jwks, err := execute(t, "", "signing-key", "jwks", "--key", keyFile, "--key-config", configFile)
	require.NoError(t, err)
	jwksFile := filepath.Join(dir, "jwks.json")
	require.NoError(t, os.WriteFile(jwksFile, []byte(jwks), 0o600))

	text, err := execute(t, "", "token", "seal",
		"--signing-key", keyFile, "--signing-key-config", configFile,
		"--user-id", "1", "--client-id", "2", "--extra", "role=admin", "--ttl", "0")
	require.NoError(t, err)
	tokenFile := filepath.Join(dir, "token.txt")
	require.NoError(t, os.WriteFile(tokenFile, []byte(text), 0o600))

	out, err := execute(t, "", "token", "open", "--in", tokenFile, "--jwks", jwksFile)
	require.NoError(t, err)

	var claims map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &claims))
	assert.Equal(t, map[string]any{"role": "admin"}, claims["extra"])
	assert.NotContains(t, claims, "exp")

	_, err = execute(t, "", "token", "open", "--in", tokenFile, "--jwks", jwksFile, "--kid", "unknown")
	assert.Error(t, err)
}

func TestDemoCommand(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		sealed string
	}{
		{"p256 sealed", nil, "sealed=true"},
		{"ristretto255 unsealed", []string{"--curve", "ristretto255", "--unsealed"}, "sealed=false"},
		{"secp256k1 chacha", []string{"--curve", "secp256k1", "--aead", "chacha20-poly1305", "--hash", "sha256"}, "sealed=true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "", append([]string{"demo", "--email", "carol@example.com"}, tt.args...)...)
			require.NoError(t, err)
			assert.Contains(t, out, "1. client ")
			assert.Contains(t, out, tt.sealed)
			assert.Contains(t, out, "5. verified claims ")
		})
	}
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	out, err := execute(t, "", "config", "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleConfig, string(data))

	_, err = execute(t, "", "config", "init", "--output", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "", "config", "init", "--output", path, "--force")
	require.NoError(t, err)

	out, err = execute(t, "", "config", "show", "--curve", "secp256k1")
	require.NoError(t, err)
	assert.Contains(t, out, "curve: secp256k1")
}

func TestUnknownNames(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"curve", []string{"keygen", "--curve", "p384"}},
		{"codec", []string{"keygen", "--codec", "xml"}},
		{"hash", []string{"demo", "--hash", "md5"}},
		{"aead", []string{"demo", "--aead", "rot13"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			assert.Error(t, err)
		})
	}
}
