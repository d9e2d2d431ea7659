package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessToken(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "STAFF", "ops@example.com", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Exp, 5*time.Second)

	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(42), claims["sub"])
	assert.Equal(t, "STAFF", claims["role"])
	assert.Equal(t, "ops@example.com", claims["email"])
}

func TestNewAccessTokenWithoutEmail(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 1, "CUSTOMER", "", time.Minute)
	require.NoError(t, err)
	parsed, err := jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	_, has := parsed.Claims.(jwt.MapClaims)["email"]
	assert.False(t, has)
}

func TestExpiredTokenRejected(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 1, "CUSTOMER", "", -time.Minute)
	require.NoError(t, err)
	_, err = jwt.Parse(tok.Token, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
