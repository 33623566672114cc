package middleware

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/pkg/domain"
)

func TestHS256Validator(t *testing.T) {
	validator := NewHS256Validator("test-signing-key")

	t.Run("round-trips an issued token", func(t *testing.T) {
		principal := domain.NewPrincipal()
		token, err := validator.IssueToken(principal)
		require.NoError(t, err)

		got, err := validator.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, principal, got)
	})

	t.Run("rejects a token signed with a different key", func(t *testing.T) {
		forged, err := NewHS256Validator("other-key").IssueToken(domain.NewPrincipal())
		require.NoError(t, err)

		_, err = validator.ValidateToken(forged)
		require.Error(t, err)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := validator.ValidateToken("not.a.token")
		require.Error(t, err)
	})

	t.Run("rejects a token without a subject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"aud": "custodia"})
		signed, err := token.SignedString([]byte("test-signing-key"))
		require.NoError(t, err)

		_, err = validator.ValidateToken(signed)
		require.Error(t, err)
	})

	t.Run("rejects a subject that is not a principal", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "admin"})
		signed, err := token.SignedString([]byte("test-signing-key"))
		require.NoError(t, err)

		_, err = validator.ValidateToken(signed)
		require.Error(t, err)
	})
}
