package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iam0-cloud/iam0-core/pkg/crypto/csprng"
	"github.com/iam0-cloud/iam0-core/pkg/crypto/curve"
	"github.com/iam0-cloud/iam0-core/pkg/crypto/schnorr"
	"github.com/iam0-cloud/iam0-core/pkg/id"
	"github.com/iam0-cloud/iam0-core/pkg/keys"
	"github.com/iam0-cloud/iam0-core/pkg/login"
	"github.com/iam0-cloud/iam0-core/pkg/storage"
	"github.com/iam0-cloud/iam0-core/pkg/token"
)

var (
	demoEmail    string
	demoUnsealed bool
)

// demoCmd represents the demo command
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a complete login in memory",
	Long: `Run the whole login flow against an in-memory store:

  1. create a client with a signing key and an encryption key
  2. register a user key pair on the configured curve
  3. prove possession of the user key over the login payload
  4. log in and receive a signed, sealed token
  5. open the token and verify its claims`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&demoEmail, "email", "alice@example.com", "demo user email")
	demoCmd.Flags().BoolVar(&demoUnsealed, "unsealed", false, "do not give the client an encryption key")
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	crv, err := configuredCurve()
	if err != nil {
		return err
	}
	h, err := configuredHash()
	if err != nil {
		return err
	}
	rng, err := csprng.New()
	if err != nil {
		return err
	}
	rand := csprng.NewLocked(rng)
	gen := id.NewGeneratorWithRand(uint16(viper.GetUint("service_id")), uint16(viper.GetUint("worker_id")), rand)

	// Client
	store := storage.NewMemoryStore()
	defer store.Close()

	signingKey, err := keys.GenerateES256(rand)
	if err != nil {
		return err
	}
	clientID, err := gen.Next()
	if err != nil {
		return err
	}
	client := &storage.Client{
		ID:              clientID,
		KeyID:           keys.NewKeyID(),
		SigningKey:      keys.RawScalar(signingKey),
		VerificationKey: keys.PublicBytes(&signingKey.PublicKey),
		AEAD:            viper.GetString("aead"),
	}
	if !demoUnsealed {
		client.EncryptionKey = make([]byte, token.KeySize)
		if _, err := rand.Read(client.EncryptionKey); err != nil {
			return err
		}
	}
	if err := store.PutClient(ctx, client); err != nil {
		return err
	}
	fmt.Fprintf(out, "1. client %s (signing key %s)\n", clientID.Hex(), client.KeyID)

	// User
	kp, err := curve.GenerateKeyPair(crv, rand)
	if err != nil {
		return err
	}
	defer kp.Zeroize()
	userID, err := gen.Next()
	if err != nil {
		return err
	}
	if err := store.CreateUser(ctx, &storage.User{
		ID:        userID,
		ClientID:  clientID,
		Email:     demoEmail,
		Curve:     crv.Name(),
		PublicKey: kp.PublicKey().Bytes(),
	}); err != nil {
		return err
	}
	fmt.Fprintf(out, "2. user %s on %s, public key %s\n", userID.Hex(), crv.Name(), hex.EncodeToString(kp.PublicKey().Bytes()))

	// Proof
	payload := login.Payload{ClientID: clientID, Email: demoEmail}
	proof, err := schnorr.Prove(h, kp, payload.Bytes(), rand)
	if err != nil {
		return err
	}
	req := &login.Request{Payload: payload, WireProof: proof.Wire()}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "3. login request %s\n", reqJSON)

	// Login
	svc, err := login.NewService(store, login.Config{
		Curves:     []curve.Spec{{Name: crv.Name()}},
		Hash:       h.Name(),
		AEAD:       viper.GetString("aead"),
		TokenTTL:   15 * time.Minute,
		Rand:       rand,
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		return err
	}
	resp, err := svc.Login(ctx, req)
	if err != nil {
		return login.Unauthorized(err)
	}
	fmt.Fprintf(out, "4. token (sealed=%t) %s\n", resp.Sealed, resp.Token)

	// Open
	var tok *token.Token
	if resp.Sealed {
		aead, err := token.NewAEAD(client.AEAD, client.EncryptionKey)
		if err != nil {
			return err
		}
		tok, err = token.Open(resp.Token, aead)
		if err != nil {
			return err
		}
	} else if tok, err = token.Decode(resp.Token); err != nil {
		return err
	}
	verifier, err := token.NewES256VerifierFromBytes(client.VerificationKey, client.KeyID)
	if err != nil {
		return err
	}
	claims, err := token.VerifyClaims(tok, verifier, time.Now())
	if err != nil {
		return err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "5. verified claims %s\n", claimsJSON)
	return nil
}
