package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/streamhub-io/streamhub/config"
	"github.com/streamhub-io/streamhub/internal/api"
	"github.com/streamhub-io/streamhub/internal/types"
)

// oneTimeTokenBytes gives 256 bits of entropy per one-time token.
const oneTimeTokenBytes = 32

// GenerateSessionToken mints the signed bearer credential handed out on
// login and registration. The claims carry only what the request gate
// needs: user ID, username and role.
func GenerateSessionToken(cfg config.JWTConfig, userID, username, role string) (string, error) {
	now := time.Now()
	claims := types.Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.SessionTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ValidateSessionToken parses and verifies a session token. Every failure
// mode (bad signature, expiry, wrong issuer or audience) collapses into the
// same ErrUnauthenticated so the caller cannot learn why a token was
// rejected.
func ValidateSessionToken(cfg config.JWTConfig, tokenString string) (*types.Claims, error) {
	claims := &types.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.SecretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, types.ErrUnauthenticated
	}
	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return nil, types.ErrUnauthenticated
	}
	if !api.VerifyAudience(claims.Audience, cfg.Audience) {
		return nil, types.ErrUnauthenticated
	}
	return claims, nil
}

// GenerateOneTimeToken creates a high-entropy random token for password
// reset or email verification. The plaintext is returned for delivery to
// the user exactly once; only the hash may be persisted.
func GenerateOneTimeToken() (plaintext, hash string, err error) {
	buf := make([]byte, oneTimeTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate one-time token: %w", err)
	}
	plaintext = hex.EncodeToString(buf)
	return plaintext, HashOneTimeToken(plaintext), nil
}

// HashOneTimeToken derives the storable representation of a one-time token.
func HashOneTimeToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenHashEqual compares two token hashes in constant time.
func TokenHashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
