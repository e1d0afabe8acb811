package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhub-io/streamhub/config"
	"github.com/streamhub-io/streamhub/internal/types"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		SecretKey:       "test-secret",
		SessionTokenTTL: 15 * time.Minute,
		Issuer:          "test-issuer",
		Audience:        "test-audience",
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()

	t.Run("ValidToken", func(t *testing.T) {
		token, err := GenerateSessionToken(cfg, "user123", "testuser", "user")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := ValidateSessionToken(cfg, token)
		require.NoError(t, err)
		assert.Equal(t, "user123", claims.UserID)
		assert.Equal(t, "testuser", claims.Username)
		assert.Equal(t, "user", claims.Role)
		assert.Equal(t, "test-issuer", claims.Issuer)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		expiredCfg := cfg
		expiredCfg.SessionTokenTTL = -1 * time.Minute

		token, err := GenerateSessionToken(expiredCfg, "user123", "testuser", "user")
		require.NoError(t, err)

		_, err = ValidateSessionToken(cfg, token)
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token, err := GenerateSessionToken(cfg, "user123", "testuser", "user")
		require.NoError(t, err)

		otherCfg := cfg
		otherCfg.SecretKey = "other-secret"
		_, err = ValidateSessionToken(otherCfg, token)
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		token, err := GenerateSessionToken(cfg, "user123", "testuser", "user")
		require.NoError(t, err)

		otherCfg := cfg
		otherCfg.Issuer = "someone-else"
		_, err = ValidateSessionToken(otherCfg, token)
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := ValidateSessionToken(cfg, "not.a.token")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})
}

func TestOneTimeToken(t *testing.T) {
	t.Run("HashMatchesPlaintext", func(t *testing.T) {
		plaintext, hash, err := GenerateOneTimeToken()
		require.NoError(t, err)
		assert.Len(t, plaintext, 64) // 32 bytes hex-encoded
		assert.Equal(t, HashOneTimeToken(plaintext), hash)
		assert.NotEqual(t, plaintext, hash)
	})

	t.Run("TokensAreUnique", func(t *testing.T) {
		a, _, err := GenerateOneTimeToken()
		require.NoError(t, err)
		b, _, err := GenerateOneTimeToken()
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("ConstantTimeCompare", func(t *testing.T) {
		_, hash, err := GenerateOneTimeToken()
		require.NoError(t, err)
		assert.True(t, TokenHashEqual(hash, hash))
		assert.False(t, TokenHashEqual(hash, HashOneTimeToken("other")))
	})
}
