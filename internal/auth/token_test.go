// ABOUTME: Tests for JWT token generation, verification, and refresh
// ABOUTME: Covers expiry, tampering, and missing-claim failure modes

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"), time.Hour)

	token, err := v.Generate("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"), -time.Minute)

	token, err := v.Generate("alice")
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.ErrorIs(t, err, ErrExpiredToken)

	_, err = v.Refresh(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"), time.Hour)
	other := NewJWTVerifier([]byte("other-secret"), time.Hour)

	token, err := v.Generate("alice")
	require.NoError(t, err)

	_, err = other.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_RejectsUnsignedToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"), time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTVerifier_MissingSubClaim(t *testing.T) {
	secret := []byte("test-secret")
	v := NewJWTVerifier(secret, time.Hour)

	claims := jwt.MapClaims{"iat": time.Now().Unix(), "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.ErrorIs(t, err, ErrMissingClaim)
}

func TestJWTVerifier_RefreshIssuesNewToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"), time.Hour)

	token, err := v.Generate("alice")
	require.NoError(t, err)

	fresh, err := v.Refresh(token)
	require.NoError(t, err)

	userID, err := v.Verify(fresh)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash)

	require.NoError(t, CheckPassword(hash, "hunter2"))
	require.ErrorIs(t, CheckPassword(hash, "wrong"), ErrWrongPassword)
}
