package security

import (
	"testing"
	"time"

	"musicstore-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager(t *testing.T) {
	tm := NewTokenManager(testSecret)

	t.Run("Round Trip", func(t *testing.T) {
		token, err := tm.GenerateAccessToken("user-1", "jane@example.com", domain.RoleAdmin, time.Hour)
		require.NoError(t, err)

		claims, err := tm.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "jane@example.com", claims.Email)

		caller := claims.Caller()
		assert.True(t, caller.IsAdmin())
		assert.Equal(t, "user-1", caller.UserID)
	})

	t.Run("Unknown Role Is A Plain User", func(t *testing.T) {
		token, err := tm.GenerateAccessToken("user-1", "", domain.Role("superuser"), time.Hour)
		require.NoError(t, err)

		claims, err := tm.ValidateToken(token)
		require.NoError(t, err)
		assert.False(t, claims.Caller().IsAdmin())
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := tm.GenerateAccessToken("user-1", "", domain.RoleUser, -time.Minute)
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("Wrong Secret", func(t *testing.T) {
		token, err := NewTokenManager("another-secret-another-secret-xx").GenerateAccessToken("user-1", "", domain.RoleUser, time.Hour)
		require.NoError(t, err)

		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Subject Fallback", func(t *testing.T) {
		claims := jwt.RegisteredClaims{Subject: "user-9", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		parsed, err := tm.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-9", parsed.UserID)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := tm.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
