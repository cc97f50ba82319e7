package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/anonto42/linkup/backend/internal/cache"
	"github.com/anonto42/linkup/backend/internal/coordinator"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrSelfFollow = errors.New("a user cannot follow themselves")

// Group is a people group built on the network page. Groups are not stored.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name" validate:"required,max=100"`
	Members []string `json:"members" validate:"min=1,dive,required"`
}

// NetworkService backs the network page: people and follow edges.
type NetworkService struct {
	base
	users   repositories.UserRepository
	follows repositories.FollowRepository
	toggles inflight
}

// NewNetworkService creates a new NetworkService
func NewNetworkService(d Deps, users repositories.UserRepository, follows repositories.FollowRepository) *NetworkService {
	return &NetworkService{
		base:    newBase(d, "network"),
		users:   users,
		follows: follows,
	}
}

func (s *NetworkService) mine(me string) func(models.Entity) bool {
	return cache.Where(func(c *models.Connection) bool { return c.FollowerID == me })
}

// LoadFollowing refreshes the viewer's outgoing follow edges.
func (s *NetworkService) LoadFollowing(ctx context.Context) (map[string]bool, error) {
	me, err := s.me()
	if err != nil {
		return nil, err
	}
	rows, err := s.co.Refresh(ctx, models.TypeConnection, func(ctx context.Context) ([]models.Entity, error) {
		conns, err := s.follows.GetFollowing(ctx, me)
		if err != nil {
			return nil, err
		}
		return entities(conns), nil
	})
	if err != nil {
		return nil, err
	}
	s.co.Prune(models.TypeConnection, s.mine(me), rows)
	return s.Following(), nil
}

// Following is the set of user ids the viewer follows, as cached.
func (s *NetworkService) Following() map[string]bool {
	me, err := s.me()
	if err != nil {
		return map[string]bool{}
	}
	out := map[string]bool{}
	for _, c := range cache.Collect[*models.Connection](s.cache.List(models.TypeConnection, s.mine(me))) {
		out[c.FollowingID] = true
	}
	return out
}

// IsFollowing reports whether the viewer follows userID, as cached.
func (s *NetworkService) IsFollowing(userID string) bool {
	_, ok := s.edge(userID)
	return ok
}

func (s *NetworkService) edge(userID string) (*models.Connection, bool) {
	me, err := s.me()
	if err != nil {
		return nil, false
	}
	for _, c := range cache.Collect[*models.Connection](s.cache.List(models.TypeConnection, s.mine(me))) {
		if c.FollowingID == userID {
			return c, true
		}
	}
	return nil, false
}

// ToggleFollow follows userID, or unfollows when already following. The
// button state flips immediately and reverts if the remote write fails.
func (s *NetworkService) ToggleFollow(ctx context.Context, userID string) (coordinator.Result, error) {
	me, err := s.me()
	if err != nil {
		return coordinator.Result{}, err
	}
	if userID == me {
		return coordinator.Result{}, ErrSelfFollow
	}
	pair := models.Key{Type: models.TypeConnection, ID: me + ":" + userID}
	release, err := s.toggles.acquire(pair)
	if err != nil {
		return coordinator.Result{}, err
	}
	defer release()

	if existing, ok := s.edge(userID); ok {
		return s.co.Mutate(ctx, models.KeyOf(existing),
			func(models.Entity) models.Entity { return nil },
			func(ctx context.Context) (models.Entity, error) {
				if err := s.follows.DeleteFollow(ctx, me, userID); err != nil {
					return nil, err
				}
				return nil, nil
			}), nil
	}

	conn := &models.Connection{
		ID:          uuid.NewString(),
		FollowerID:  me,
		FollowingID: userID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.check(conn); err != nil {
		return coordinator.Result{}, err
	}
	return s.co.Mutate(ctx, models.KeyOf(conn),
		func(models.Entity) models.Entity { return conn },
		func(ctx context.Context) (models.Entity, error) {
			return s.follows.CreateFollow(ctx, conn)
		}), nil
}

// LoadPeople refreshes profiles and returns everyone but the viewer whose
// name contains query, ignoring case, ordered by name. With followingOnly
// set only followed users are returned.
func (s *NetworkService) LoadPeople(ctx context.Context, query string, followingOnly bool) ([]*models.User, error) {
	rows, err := s.co.Refresh(ctx, models.TypeUser, func(ctx context.Context) ([]models.Entity, error) {
		users, err := s.users.GetUsers(ctx)
		if err != nil {
			return nil, err
		}
		return entities(users), nil
	})
	if err != nil {
		return nil, err
	}
	s.co.Prune(models.TypeUser, nil, rows)
	return s.People(query, followingOnly), nil
}

// People filters the cached profiles like LoadPeople.
func (s *NetworkService) People(query string, followingOnly bool) []*models.User {
	me, _ := s.me()
	q := strings.ToLower(strings.TrimSpace(query))
	var following map[string]bool
	if followingOnly {
		following = s.Following()
	}
	people := cache.Collect[*models.User](s.cache.List(models.TypeUser, cache.Where(func(u *models.User) bool {
		if u.ID == me {
			return false
		}
		if following != nil && !following[u.ID] {
			return false
		}
		return q == "" || strings.Contains(strings.ToLower(u.FullName), q)
	})))
	sort.Slice(people, func(i, j int) bool {
		a, b := strings.ToLower(people[i].FullName), strings.ToLower(people[j].FullName)
		if a != b {
			return a < b
		}
		return people[i].ID < people[j].ID
	})
	return people
}

// CreateGroup validates a group and returns it with an id. Groups live only
// in the caller's view state; nothing is written to the Row Store.
func (s *NetworkService) CreateGroup(_ context.Context, g Group) (Group, error) {
	if _, err := s.me(); err != nil {
		return Group{}, err
	}
	g.Name = strings.TrimSpace(g.Name)
	if err := s.check(g); err != nil {
		return Group{}, err
	}
	g.ID = uuid.NewString()
	s.logger.Info("group created",
		zap.String("id", g.ID),
		zap.Int("members", len(g.Members)),
	)
	return g, nil
}
