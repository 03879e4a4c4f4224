package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infostore/internal/domain"
	"infostore/internal/domain/models"
)

func testVerifier(t *testing.T) (*JWKSVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	kf := func(*jwt.Token) (interface{}, error) { return &key.PublicKey, nil }
	return newVerifier(kf, slog.New(slog.NewTextHandler(io.Discard, nil))), key
}

func sign(t *testing.T, key *rsa.PrivateKey, claims *models.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() *models.Claims {
	return &models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		ContextID: 1,
		UserID:    7,
		Role:      "authenticated",
	}
}

func TestVerifyToken_Accepts(t *testing.T) {
	v, key := testVerifier(t)

	claims, err := v.VerifyToken(sign(t, key, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.Caller().ContextID)
	assert.Equal(t, int64(7), claims.Caller().UserID)
}

func TestVerifyToken_Rejects(t *testing.T) {
	v, key := testVerifier(t)

	tests := []struct {
		name   string
		mutate func(*models.Claims)
	}{
		{"missing context", func(c *models.Claims) { c.ContextID = 0 }},
		{"missing user", func(c *models.Claims) { c.UserID = 0 }},
		{"anonymous role", func(c *models.Claims) { c.Role = "anon" }},
		{"expired", func(c *models.Claims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)
			_, err := v.VerifyToken(sign(t, key, claims))
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestVerifyToken_RejectsSymmetricAlgorithms(t *testing.T) {
	v, _ := testVerifier(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = v.VerifyToken(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerifyToken_RejectsForeignKey(t *testing.T) {
	v, _ := testVerifier(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	_, err = v.VerifyToken(sign(t, other, validClaims()))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestNewJWTVerifier_RequiresURL(t *testing.T) {
	_, err := NewJWTVerifier("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
