package tap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)

	params := func(created, expires int64) SignatureParams {
		p := SignatureParams{Created: time.Unix(created, 0)}
		if expires != 0 {
			p.Expires = time.Unix(expires, 0)
		}
		return p
	}

	t.Run("valid window passes", func(t *testing.T) {
		assert.Nil(t, ValidateWindow(params(now.Unix()-10, now.Unix()+470), now))
	})

	t.Run("window at exactly max passes", func(t *testing.T) {
		assert.Nil(t, ValidateWindow(params(now.Unix(), now.Unix()+480), now))
	})

	t.Run("missing expires fails", func(t *testing.T) {
		err := ValidateWindow(params(now.Unix(), 0), now)
		require.NotNil(t, err)
		assert.Equal(t, CodeTimeInvalid, err.Code)
	})

	t.Run("window over max fails regardless of signature validity", func(t *testing.T) {
		err := ValidateWindow(params(now.Unix(), now.Unix()+481), now)
		require.NotNil(t, err)
		assert.Equal(t, CodeWindowTooLarge, err.Code)
	})

	t.Run("expires before created fails", func(t *testing.T) {
		err := ValidateWindow(params(now.Unix(), now.Unix()-1), now)
		require.NotNil(t, err)
		assert.Equal(t, CodeTimeInvalid, err.Code)
	})

	t.Run("expired signature fails", func(t *testing.T) {
		err := ValidateWindow(params(now.Unix()-400, now.Unix()-100), now)
		require.NotNil(t, err)
		assert.Equal(t, CodeTimeInvalid, err.Code)
	})

	t.Run("created in future beyond skew fails", func(t *testing.T) {
		err := ValidateWindow(params(now.Unix()+31, now.Unix()+400), now)
		require.NotNil(t, err)
		assert.Equal(t, CodeTimeInvalid, err.Code)
	})

	t.Run("created within skew passes", func(t *testing.T) {
		assert.Nil(t, ValidateWindow(params(now.Unix()+29, now.Unix()+400), now))
	})
}

func TestValidateAlgorithm(t *testing.T) {
	t.Run("ed25519 passes", func(t *testing.T) {
		assert.Nil(t, ValidateAlgorithm(SignatureParams{Alg: AlgorithmEd25519}))
	})

	t.Run("anything else fails", func(t *testing.T) {
		for _, alg := range []Algorithm{"rsa-pss-sha512", "ecdsa-p256-sha256", "hmac-sha256", ""} {
			err := ValidateAlgorithm(SignatureParams{Alg: alg})
			require.NotNil(t, err, "alg %q", alg)
			assert.Equal(t, CodeAlgorithmInvalid, err.Code)
		}
	})
}

func TestValidateTag(t *testing.T) {
	t.Run("known tag passes", func(t *testing.T) {
		assert.Nil(t, ValidateTag(SignatureParams{Tag: "web-bot-auth"}, false))
	})

	t.Run("absent tag tolerated", func(t *testing.T) {
		assert.Nil(t, ValidateTag(SignatureParams{}, false))
	})

	t.Run("unknown tag fails", func(t *testing.T) {
		err := ValidateTag(SignatureParams{Tag: "mystery"}, false)
		require.NotNil(t, err)
		assert.Equal(t, CodeTagUnknown, err.Code)
	})

	t.Run("unknown tag allowed with override", func(t *testing.T) {
		assert.Nil(t, ValidateTag(SignatureParams{Tag: "mystery"}, true))
	})
}
