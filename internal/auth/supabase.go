package auth

import (
	"context"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// SupabaseVerifier asks the hosted auth service who owns a token.
type SupabaseVerifier struct {
	client *supabase.Client
}

// NewSupabaseVerifier creates a verifier backed by client
func NewSupabaseVerifier(client *supabase.Client) *SupabaseVerifier {
	return &SupabaseVerifier{client: client}
}

// Verify resolves token through the auth service's user endpoint
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	// GetUser takes no context; the request is bounded by the client's own timeout.
	user, err := v.client.Auth.WithToken(token).GetUser()
	if err != nil {
		return Identity{}, fmt.Errorf("invalid token: %w", err)
	}

	id := Identity{ID: user.ID.String(), Email: user.Email}
	if name, ok := user.UserMetadata["full_name"].(string); ok {
		id.Name = name
	}
	return id, nil
}
