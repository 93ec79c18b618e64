package codec

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iam0-cloud/iam0-core/pkg/crypto/curve"
	"github.com/iam0-cloud/iam0-core/pkg/crypto/schnorr"
)

func TestNewSerializer_ValidCodecs(t *testing.T) {
	for _, codec := range SupportedCodecs() {
		t.Run(codec, func(t *testing.T) {
			s, err := NewSerializer(codec)
			require.NoError(t, err)
			assert.Equal(t, codec, s.Name())
		})
	}

	s, err := NewSerializer("")
	require.NoError(t, err)
	assert.Equal(t, JSON, s.Name())

	s, err = NewSerializer("CBOR")
	require.NoError(t, err)
	assert.Equal(t, CBOR, s.Name())
	assert.True(t, s.Binary())
}

func TestNewSerializer_InvalidCodec(t *testing.T) {
	s, err := NewSerializer("invalid")
	require.Error(t, err)
	assert.Nil(t, s)

	var serErr *SerializerError
	require.True(t, errors.As(err, &serErr), "expected SerializerError, got %T", err)
	assert.Equal(t, "create", serErr.Operation)
	assert.Equal(t, "invalid", serErr.CodecType)
}

func TestSerializer_WireProofRoundTrip(t *testing.T) {
	kp, err := curve.GenerateKeyPair(curve.NewP256(), rand.Reader)
	require.NoError(t, err)
	payload := []byte("codec payload")
	proof, err := schnorr.Prove(schnorr.DefaultHash, kp, payload, rand.Reader)
	require.NoError(t, err)
	original := proof.Wire()

	for _, codec := range SupportedCodecs() {
		t.Run(codec, func(t *testing.T) {
			s, err := NewSerializer(codec)
			require.NoError(t, err)

			data, err := s.Marshal(original)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			var decoded schnorr.WireProof
			require.NoError(t, s.Unmarshal(data, &decoded))
			assert.Equal(t, original, decoded)

			back, err := schnorr.DecodeWire(decoded)
			require.NoError(t, err)
			assert.True(t, schnorr.Verify(schnorr.DefaultHash, back, payload))
		})
	}
}

func TestSerializer_TextCodecsUseWireNames(t *testing.T) {
	w := schnorr.WireProof{Curve: "p256", Commitment: "aa", PublicKey: "bb", Proof: "cc"}
	for _, codec := range []string{JSON, YAML, TOML} {
		s, err := NewSerializer(codec)
		require.NoError(t, err)
		assert.False(t, s.Binary())

		data, err := s.Marshal(w)
		require.NoError(t, err)
		assert.Contains(t, string(data), "public_key", codec)
	}
}

func TestSerializer_UnmarshalGarbage(t *testing.T) {
	garbage := map[string][]byte{
		JSON:    []byte("{"),
		MsgPack: {0xc1},
		CBOR:    {0xff},
		YAML:    []byte("a: ["),
		TOML:    []byte("= ="),
		BSON:    {0x01, 0x02},
	}
	for codec, data := range garbage {
		t.Run(codec, func(t *testing.T) {
			s, err := NewSerializer(codec)
			require.NoError(t, err)

			var w schnorr.WireProof
			err = s.Unmarshal(data, &w)
			require.Error(t, err)

			var serErr *SerializerError
			require.True(t, errors.As(err, &serErr))
			assert.Equal(t, "unmarshal", serErr.Operation)
			assert.Equal(t, codec, serErr.CodecType)
			assert.NotNil(t, errors.Unwrap(err))
		})
	}
}

func TestSerializer_MarshalError(t *testing.T) {
	s, err := NewSerializer(JSON)
	require.NoError(t, err)

	_, err = s.Marshal(make(chan int))
	var serErr *SerializerError
	require.True(t, errors.As(err, &serErr))
	assert.Equal(t, "marshal", serErr.Operation)
}
