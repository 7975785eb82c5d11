package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/eshop/config"
)

func TestIssueAndParse(t *testing.T) {
	config.Override("JWT_SECRET", "test-secret")
	t.Cleanup(config.Reset)

	raw, exp, err := IssueToken(7, "admin@eshop.local", "admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), exp, 5*time.Second)

	claims, err := ParseToken(raw)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.AdminID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "7", claims.Subject)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	config.Override("JWT_SECRET", "one")
	raw, _, err := IssueToken(1, "a@b.cz", "staff")
	require.NoError(t, err)

	config.Override("JWT_SECRET", "two")
	t.Cleanup(config.Reset)

	_, err = ParseToken(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	config.Override("JWT_SECRET", "test-secret")
	t.Cleanup(config.Reset)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	raw, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = ParseToken(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err = foreign.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = ParseToken(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("tajne-heslo")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "tajne-heslo"))
	assert.False(t, CheckPassword(hash, "spatne"))
}
