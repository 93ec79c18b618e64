package token

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iam0-cloud/iam0-core/pkg/crypto/csprng"
	"github.com/iam0-cloud/iam0-core/pkg/id"
)

func newSigner(t *testing.T) *ES256Signer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	s, err := NewES256Signer(key, "test-key")
	require.NoError(t, err)
	return s
}

func newKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestSignVerify(t *testing.T) {
	signer := newSigner(t)
	verifier := signer.Verifier()

	tok, err := Sign([]byte("payload"), signer)
	require.NoError(t, err)
	assert.Len(t, tok.Signature, 64)
	assert.True(t, tok.Verify(verifier))

	t.Run("TamperedPayload", func(t *testing.T) {
		forged := &Token{Payload: []byte("payloae"), Signature: tok.Signature}
		assert.False(t, forged.Verify(verifier))
	})

	t.Run("WrongKey", func(t *testing.T) {
		assert.False(t, tok.Verify(newSigner(t).Verifier()))
	})

	t.Run("MissingSignature", func(t *testing.T) {
		assert.False(t, (&Token{Payload: tok.Payload}).Verify(verifier))
	})

	t.Run("PayloadCopied", func(t *testing.T) {
		payload := []byte("abc")
		tok, err := Sign(payload, signer)
		require.NoError(t, err)
		payload[0] = 'x'
		assert.True(t, tok.Verify(verifier))
	})
}

func TestES256FromBytes(t *testing.T) {
	orig := newSigner(t)
	raw := orig.privateKey.D.FillBytes(make([]byte, 32))

	signer, err := NewES256SignerFromBytes(raw, "kid")
	require.NoError(t, err)
	assert.True(t, signer.Public().Equal(orig.Public()))

	tok, err := Sign([]byte("x"), signer)
	require.NoError(t, err)
	assert.True(t, tok.Verify(orig.Verifier()))

	pub := elliptic.MarshalCompressed(elliptic.P256(), orig.Public().X, orig.Public().Y)
	_, err = NewES256VerifierFromBytes(pub, "")
	assert.Error(t, err, "compressed keys are not accepted")

	uncompressed := append([]byte{0x04}, orig.Public().X.FillBytes(make([]byte, 32))...)
	uncompressed = append(uncompressed, orig.Public().Y.FillBytes(make([]byte, 32))...)
	v, err := NewES256VerifierFromBytes(uncompressed, "")
	require.NoError(t, err)
	assert.True(t, tok.Verify(v))

	_, err = NewES256SignerFromBytes(make([]byte, 32), "")
	assert.Error(t, err)
	_, err = NewES256SignerFromBytes(raw[:31], "")
	assert.Error(t, err)
}

func TestSealOpenRoundTrip(t *testing.T) {
	signer := newSigner(t)

	for _, alg := range SupportedAEADs() {
		for _, size := range []int{0, 1, 64, 4096} {
			t.Run(fmt.Sprintf("%s/%d", alg, size), func(t *testing.T) {
				aead, err := NewAEAD(alg, newKey(t))
				require.NoError(t, err)

				payload := make([]byte, size)
				_, err = rand.Read(payload)
				require.NoError(t, err)

				tok, err := Sign(payload, signer)
				require.NoError(t, err)

				text, err := Seal(tok, aead, rand.Reader)
				require.NoError(t, err)
				assert.NotContains(t, text, "=")
				assert.NotContains(t, text, "+")
				assert.NotContains(t, text, "/")

				opened, err := Open(text, aead)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(payload, opened.Payload))
				assert.Equal(t, tok.Signature, opened.Signature)
				assert.True(t, opened.Verify(signer.Verifier()))
			})
		}
	}
}

func TestSealFreshNonce(t *testing.T) {
	aead, err := NewAEAD(AES256GCM, newKey(t))
	require.NoError(t, err)
	tok, err := Sign([]byte("same"), newSigner(t))
	require.NoError(t, err)

	a, err := Seal(tok, aead, rand.Reader)
	require.NoError(t, err)
	b, err := Seal(tok, aead, rand.Reader)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	rawA, _ := base64.RawURLEncoding.DecodeString(a)
	rawB, _ := base64.RawURLEncoding.DecodeString(b)
	assert.NotEqual(t, rawA[:aead.NonceSize()], rawB[:aead.NonceSize()])
}

func TestOpenFailsClosed(t *testing.T) {
	key := newKey(t)
	aead, err := NewAEAD(ChaCha20Poly1305, key)
	require.NoError(t, err)
	tok, err := Sign([]byte("sensitive claims"), newSigner(t))
	require.NoError(t, err)
	raw, err := SealBytes(tok, aead, rand.Reader)
	require.NoError(t, err)

	t.Run("EveryByteFlip", func(t *testing.T) {
		for i := range raw {
			tampered := append([]byte(nil), raw...)
			tampered[i] ^= 0x80
			opened, err := OpenBytes(tampered, aead)
			assert.ErrorIs(t, err, ErrAuthenticationFailed, "byte %d", i)
			assert.Nil(t, opened)
		}
	})

	t.Run("WrongKey", func(t *testing.T) {
		other, err := NewAEAD(ChaCha20Poly1305, newKey(t))
		require.NoError(t, err)
		_, err = OpenBytes(raw, other)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("WrongAlgorithm", func(t *testing.T) {
		other, err := NewAEAD(AES256GCM, key)
		require.NoError(t, err)
		_, err = OpenBytes(raw, other)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := OpenBytes(raw[:aead.NonceSize()+aead.Overhead()-1], aead)
		assert.ErrorIs(t, err, ErrMalformedToken)

		_, err = OpenBytes(nil, aead)
		assert.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("BadBase64", func(t *testing.T) {
		_, err := Open("not base64!", aead)
		assert.ErrorIs(t, err, ErrMalformedToken)

		_, err = Open(base64.StdEncoding.EncodeToString(raw), aead)
		assert.Error(t, err)
	})
}

func TestOpenLengthPrefix(t *testing.T) {
	aead, err := NewAEAD(AES256GCM, newKey(t))
	require.NoError(t, err)

	seal := func(plaintext []byte) []byte {
		nonce := make([]byte, aead.NonceSize())
		_, err := rand.Read(nonce)
		require.NoError(t, err)
		return aead.Seal(nonce, nonce, plaintext, nil)
	}

	t.Run("MissingPrefix", func(t *testing.T) {
		_, err := OpenBytes(seal([]byte{1, 0}), aead)
		assert.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("PrefixExceedsBody", func(t *testing.T) {
		_, err := OpenBytes(seal([]byte{0xff, 0, 0, 0, 'a', 'b'}), aead)
		assert.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("NoSignature", func(t *testing.T) {
		_, err := OpenBytes(seal([]byte{2, 0, 0, 0, 'a', 'b'}), aead)
		assert.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("Consistent", func(t *testing.T) {
		tok, err := OpenBytes(seal([]byte{1, 0, 0, 0, 'a', 's', 'i', 'g'}), aead)
		require.NoError(t, err)
		assert.Equal(t, []byte("a"), tok.Payload)
		assert.Equal(t, []byte("sig"), tok.Signature)
	})
}

func TestEncodeDecode(t *testing.T) {
	signer := newSigner(t)
	tok, err := Sign([]byte("plain payload"), signer)
	require.NoError(t, err)

	text, err := Encode(tok)
	require.NoError(t, err)
	got, err := Decode(text)
	require.NoError(t, err)
	assert.Equal(t, tok.Payload, got.Payload)
	assert.True(t, got.Verify(signer.Verifier()))

	for _, bad := range []string{"!!!", "", encoding.EncodeToString([]byte{9, 0, 0, 0, 1})} {
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrMalformedToken, bad)
	}
}

func TestNewAEAD(t *testing.T) {
	for _, alg := range SupportedAEADs() {
		a, err := NewAEAD(alg, newKey(t))
		require.NoError(t, err, alg)
		assert.Equal(t, 16, a.Overhead())
	}

	a, err := NewAEAD(XChaCha20Poly1305, newKey(t))
	require.NoError(t, err)
	assert.Equal(t, 24, a.NonceSize())

	_, err = NewAEAD(AES256GCM, make([]byte, 16))
	assert.Error(t, err)
	_, err = NewAEAD("rot13", newKey(t))
	assert.Error(t, err)
}

func TestOpenAs(t *testing.T) {
	signer := newSigner(t)
	aead, err := NewAEAD(AES256GCM, newKey(t))
	require.NoError(t, err)

	gen := id.NewGeneratorWithRand(1, 1, csprng.NewFromSeed([csprng.KeySize]byte{3}, [csprng.NonceSize]byte{}))
	uid, err := gen.Next()
	require.NoError(t, err)
	cid, err := gen.Next()
	require.NoError(t, err)

	claims := &Claims{UserID: uid, ClientID: cid, IssuedAt: 1000, ExpiresAt: 2000}
	tok, err := SignClaims(claims, signer)
	require.NoError(t, err)
	text, err := Seal(tok, aead, rand.Reader)
	require.NoError(t, err)

	got, opened, err := OpenAs(text, aead, ParseClaims)
	require.NoError(t, err)
	assert.Equal(t, claims, got)
	assert.True(t, opened.Verify(signer.Verifier()))

	_, _, err = OpenAs(text, aead, func([]byte) (string, error) { return "", assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
}

func TestClaims(t *testing.T) {
	signer := newSigner(t)
	verifier := signer.Verifier()
	now := time.Unix(1_700_000_000, 0)

	claims := &Claims{
		UserID:    id.Pack(now, 0, 1, 2, 3),
		ClientID:  id.Pack(now, 1, 1, 2, 4),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(time.Hour).Unix(),
		Extra:     map[string]string{"b": "2", "a": "1", "c": "3"},
	}

	t.Run("Deterministic", func(t *testing.T) {
		first, err := claims.MarshalCanonical()
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			again, err := claims.MarshalCanonical()
			require.NoError(t, err)
			require.Equal(t, first, again)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		tok, err := SignClaims(claims, signer)
		require.NoError(t, err)
		got, err := VerifyClaims(tok, verifier, now)
		require.NoError(t, err)
		assert.Equal(t, claims, got)
	})

	t.Run("Expired", func(t *testing.T) {
		tok, err := SignClaims(claims, signer)
		require.NoError(t, err)
		_, err = VerifyClaims(tok, verifier, now.Add(2*time.Hour))
		assert.ErrorIs(t, err, ErrExpired)
	})

	t.Run("NoExpiry", func(t *testing.T) {
		c := *claims
		c.ExpiresAt = 0
		assert.False(t, c.Expired(now.Add(100*365*24*time.Hour)))
	})

	t.Run("BadSignature", func(t *testing.T) {
		tok, err := SignClaims(claims, signer)
		require.NoError(t, err)
		_, err = VerifyClaims(tok, newSigner(t).Verifier(), now)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := ParseClaims([]byte{0xff, 0x00})
		assert.ErrorIs(t, err, ErrMalformedToken)
	})

	t.Run("NonCanonical", func(t *testing.T) {
		// Same claims with a non-minimal integer encoding for iat.
		payload, err := claims.MarshalCanonical()
		require.NoError(t, err)
		c, err := ParseClaims(payload)
		require.NoError(t, err)
		assert.Equal(t, claims, c)

		// map(1) { "iat": uint64(5) } written with an 8-byte argument
		raw := []byte{0xa1, 0x63, 'i', 'a', 't', 0x1b, 0, 0, 0, 0, 0, 0, 0, 5}
		_, err = ParseClaims(raw)
		assert.ErrorIs(t, err, ErrNonCanonical)
	})
}

func BenchmarkSeal(b *testing.B) {
	key, _ := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	signer, _ := NewES256Signer(key, "")
	aead, _ := NewAEAD(AES256GCM, make([]byte, KeySize))
	tok, _ := Sign(make([]byte, 256), signer)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Seal(tok, aead, rand.Reader); err != nil {
			b.Fatal(err)
		}
	}
}
