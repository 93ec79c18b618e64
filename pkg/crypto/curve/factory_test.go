package curve

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "p256", want: NameP256},
		{name: "P-256", want: NameP256},
		{name: "secp256r1", want: NameP256},
		{name: "prime256v1", want: NameP256},
		{name: "secp256k1", want: NameSecp256k1},
		{name: "SECP256K1", want: NameSecp256k1},
		{name: "ristretto255", want: NameRistretto255},
		{name: "ed25519", wantErr: true},
		{name: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crv, err := FromName(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedCurve)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, crv.Name())
		})
	}
}

func TestSupportedCurvesResolve(t *testing.T) {
	for _, name := range SupportedCurves() {
		crv, err := FromName(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, crv.Name())
	}
}

func TestFromSpec(t *testing.T) {
	t.Run("Named", func(t *testing.T) {
		crv, err := FromSpec(Spec{Name: NameSecp256k1})
		require.NoError(t, err)
		assert.Equal(t, NameSecp256k1, crv.Name())
	})

	t.Run("Custom", func(t *testing.T) {
		crv, err := FromSpec(Spec{Name: NameCustom, Custom: toyParams(t)})
		require.NoError(t, err)
		assert.Equal(t, NameCustom, crv.Name())
		assert.Equal(t, int64(19), crv.Order().Int64())
	})

	t.Run("CustomP256Params", func(t *testing.T) {
		crv, err := FromSpec(Spec{Name: NameCustom, Custom: P256Params()})
		require.NoError(t, err)

		k, err := crv.GenerateScalar(rand.Reader)
		require.NoError(t, err)
		assert.Equal(t, NewP256().ScalarBaseMult(k).Bytes(), crv.ScalarBaseMult(k).Bytes())
	})

	t.Run("CustomWithoutParams", func(t *testing.T) {
		_, err := FromSpec(Spec{Name: NameCustom})
		assert.ErrorIs(t, err, ErrUnsupportedCurve)
	})

	t.Run("CustomBadBasePoint", func(t *testing.T) {
		params := toyParams(t)
		params.Gy = big.NewInt(2)
		_, err := FromSpec(Spec{Name: NameCustom, Custom: params})
		assert.ErrorIs(t, err, ErrPointNotOnCurve)
	})
}

func TestParamsAreCopied(t *testing.T) {
	params := P256Params()
	w := NewWeierstrass(params)
	params.N.SetInt64(7)

	assert.NotEqual(t, int64(7), w.Order().Int64())
	w.Order().SetInt64(9)
	assert.NotEqual(t, int64(9), w.Params().N.Int64())
}
