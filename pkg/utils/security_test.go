package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"melodia-go/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadJWTConfig(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "app:\n  name: melodia-test\njwt:\n  secret: unit-test-secret\n  expire_hours: 1\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	_, err := config.Load(path)
	require.NoError(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	loadJWTConfig(t)

	token, err := GenerateToken(42)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.EqualValues(t, 42, claims.UserID)
	assert.Equal(t, "melodia-test", claims.Issuer)
}

func TestParseTokenRejects(t *testing.T) {
	loadJWTConfig(t)

	sign := func(claims Claims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	_, err := ParseToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken(sign(Claims{UserID: 1, RegisteredClaims: valid}, "other-secret"))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken(sign(Claims{UserID: 0, RegisteredClaims: valid}, "unit-test-secret"))
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}
	_, err = ParseToken(sign(Claims{UserID: 1, RegisteredClaims: expired}, "unit-test-secret"))
	assert.ErrorIs(t, err, ErrExpiredToken)

	// 没有过期时间的令牌不接受
	_, err = ParseToken(sign(Claims{UserID: 1}, "unit-test-secret"))
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{UserID: 1, RegisteredClaims: valid}).
		SignedString([]byte("unit-test-secret"))
	require.NoError(t, err)
	_, err = ParseToken(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenToleratesClockSkew(t *testing.T) {
	loadJWTConfig(t)

	justExpired := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-10 * time.Second))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 5, RegisteredClaims: justExpired}).
		SignedString([]byte("unit-test-secret"))
	require.NoError(t, err)

	id, err := ViewerID(token)
	require.NoError(t, err)
	assert.EqualValues(t, 5, id)
}
