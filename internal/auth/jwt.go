package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// SupabaseClaims are the claims of a Supabase access token
type SupabaseClaims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 access tokens locally with the project's JWT secret.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for tokens signed with secret
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates token and returns the user it was issued to
func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	claims := &SupabaseClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("invalid token: %w", err)
	}
	if !parsed.Valid {
		return Identity{}, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("token has no subject")
	}

	id := Identity{ID: claims.Subject, Email: claims.Email}
	if name, ok := claims.UserMetadata["full_name"].(string); ok {
		id.Name = name
	}
	return id, nil
}
