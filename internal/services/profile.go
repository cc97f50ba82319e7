package services

import (
	"context"

	"github.com/anonto42/linkup/backend/internal/cache"
	"github.com/anonto42/linkup/backend/internal/coordinator"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
)

// Profile is a profile page: the user and whether the viewer follows them.
type Profile struct {
	User      *models.User `json:"user"`
	IsSelf    bool         `json:"is_self"`
	Following bool         `json:"following"`
}

// ProfileService backs profile pages.
type ProfileService struct {
	base
	users   repositories.UserRepository
	network *NetworkService
}

// NewProfileService creates a new ProfileService
func NewProfileService(d Deps, users repositories.UserRepository, network *NetworkService) *ProfileService {
	return &ProfileService{base: newBase(d, "profile"), users: users, network: network}
}

// LoadProfile fetches one profile into the cache.
func (s *ProfileService) LoadProfile(ctx context.Context, userID string) (Profile, error) {
	me, err := s.me()
	if err != nil {
		return Profile{}, err
	}
	_, err = s.co.Refresh(ctx, models.TypeUser, func(ctx context.Context) ([]models.Entity, error) {
		u, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		return []models.Entity{u}, nil
	})
	if err != nil {
		return Profile{}, err
	}
	u, ok := cache.Lookup[*models.User](s.cache, models.TypeUser, userID)
	if !ok {
		return Profile{}, ErrNotLoaded
	}
	return Profile{User: u, IsSelf: userID == me, Following: s.IsFollowing(userID)}, nil
}

// IsFollowing reports whether the viewer follows userID, as cached.
func (s *ProfileService) IsFollowing(userID string) bool {
	return s.network.IsFollowing(userID)
}

// UpdateProfile edits the viewer's own profile. The cached profile changes
// at once and reverts if the update fails.
func (s *ProfileService) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (coordinator.Result, error) {
	me, err := s.me()
	if err != nil {
		return coordinator.Result{}, err
	}
	if err := s.check(req); err != nil {
		return coordinator.Result{}, err
	}
	current, ok := cache.Lookup[*models.User](s.cache, models.TypeUser, me)
	if !ok {
		return coordinator.Result{}, ErrNotLoaded
	}
	_, patch := req.Apply(current)
	if len(patch) == 0 {
		return coordinator.Result{Outcome: coordinator.Confirmed, Value: current}, nil
	}
	return s.co.Mutate(ctx, models.KeyOf(current),
		func(cur models.Entity) models.Entity {
			u, ok := cur.(*models.User)
			if !ok {
				return cur
			}
			updated, _ := req.Apply(u)
			updated.UpdatedAt = s.now().UTC()
			return updated
		},
		func(ctx context.Context) (models.Entity, error) {
			return s.users.UpdateUser(ctx, me, patch)
		}), nil
}
