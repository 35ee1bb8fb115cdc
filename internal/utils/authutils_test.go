package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-session-secret")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func TestParseSessionToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"uid": 42, "admin": true})

	session, err := ParseSessionToken(testSecret, "Bearer "+token)

	require.NoError(t, err)
	assert.Equal(t, int64(42), session.UserID)
	assert.True(t, session.IsAdmin)
}

func TestParseSessionTokenRejectsBadSignature(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"uid": 42})

	_, err := ParseSessionToken([]byte("some-other-secret"), token)

	assert.Error(t, err)
}

func TestParseSessionTokenRejectsMissingUID(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"admin": true})

	_, err := ParseSessionToken(testSecret, token)

	assert.Error(t, err)
}

func TestParseSessionTokenRejectsGarbage(t *testing.T) {
	_, err := ParseSessionToken(testSecret, "not-a-jwt")

	assert.Error(t, err)
}
