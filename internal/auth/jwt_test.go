package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims SupabaseClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return tok
}

func TestJWTVerifierAcceptsValidToken(t *testing.T) {
	tok := sign(t, jwt.SigningMethodHS256, []byte(testSecret), SupabaseClaims{
		Email:        "ada@example.com",
		Role:         "authenticated",
		UserMetadata: map[string]any{"full_name": "Ada Lovelace"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "8a6b0d1e-0000-4000-8000-000000000001",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	id, err := NewJWTVerifier(testSecret).Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "8a6b0d1e-0000-4000-8000-000000000001", id.ID)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.Equal(t, "Ada Lovelace", id.Name)
}

func TestJWTVerifierRejects(t *testing.T) {
	valid := jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("another-secret"), SupabaseClaims{RegisteredClaims: valid})},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(testSecret), SupabaseClaims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}})},
		{"no subject", sign(t, jwt.SigningMethodHS256, []byte(testSecret), SupabaseClaims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}})},
		{"unsigned", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, SupabaseClaims{RegisteredClaims: valid})},
		{"garbage", "not-a-jwt"},
	}

	v := NewJWTVerifier(testSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			assert.Error(t, err)
		})
	}
}
