package repositories

import (
	"context"
	"sort"
	"strings"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/rowstore"
)

// UserRepository defines the interface for profile data operations
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, id string, patch rowstore.Row) (*models.User, error)
	SearchUsers(ctx context.Context, query string) ([]*models.User, error)
}

// RowStoreUserRepository implements UserRepository over the profiles table
type RowStoreUserRepository struct {
	profiles table[*models.User]
}

// NewRowStoreUserRepository creates a new RowStoreUserRepository
func NewRowStoreUserRepository(store rowstore.Client) *RowStoreUserRepository {
	return &RowStoreUserRepository{profiles: newTable[*models.User](store, models.TypeUser)}
}

// GetUserByID retrieves a profile by id
func (r *RowStoreUserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.profiles.first(ctx, rowstore.Eq("id", id))
}

// GetUsers retrieves all profiles ordered by name
func (r *RowStoreUserRepository) GetUsers(ctx context.Context) ([]*models.User, error) {
	users, err := r.profiles.list(ctx, nil)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool {
		return strings.ToLower(users[i].FullName) < strings.ToLower(users[j].FullName)
	})
	return users, nil
}

// UpdateUser applies patch to a profile and returns the stored row
func (r *RowStoreUserRepository) UpdateUser(ctx context.Context, id string, patch rowstore.Row) (*models.User, error) {
	return r.profiles.update(ctx, id, patch)
}

// SearchUsers returns profiles whose full name contains query, case-insensitively
func (r *RowStoreUserRepository) SearchUsers(ctx context.Context, query string) ([]*models.User, error) {
	users, err := r.GetUsers(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return users, nil
	}
	out := users[:0]
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.FullName), q) {
			out = append(out, u)
		}
	}
	return out, nil
}
