// Package services is the data layer every view calls. Reads go through
// the Entity Cache; every write is an optimistic mutation.
package services

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/linkup/backend/internal/auth"
	"github.com/anonto42/linkup/backend/internal/cache"
	"github.com/anonto42/linkup/backend/internal/coordinator"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/internal/rowstore"
	"go.uber.org/zap"
)

var (
	// ErrInFlight is returned by a toggle while the previous one on the
	// same item has not resolved.
	ErrInFlight  = errors.New("a change to this item is still in flight")
	ErrForbidden = errors.New("not allowed for the current user")
	ErrNotLoaded = errors.New("item is not loaded")
)

// Validator checks request structs by their validate tags.
type Validator interface {
	Validate(i interface{}) error
}

// Deps are shared by every service.
type Deps struct {
	Coordinator *coordinator.Coordinator
	Session     *auth.Session
	Validator   Validator
	Logger      *zap.Logger
	Now         func() time.Time
}

type base struct {
	co       *coordinator.Coordinator
	cache    *cache.Cache
	session  *auth.Session
	validate Validator
	logger   *zap.Logger
	now      func() time.Time
}

func newBase(d Deps, name string) base {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return base{
		co:       d.Coordinator,
		cache:    d.Coordinator.Cache(),
		session:  d.Session,
		validate: d.Validator,
		logger:   logger.Named(name),
		now:      now,
	}
}

// me returns the signed-in user's id.
func (b base) me() (string, error) {
	id, ok := b.session.CurrentUser()
	if !ok {
		return "", auth.ErrNoSession
	}
	return id.ID, nil
}

func (b base) check(req interface{}) error {
	if b.validate == nil {
		return nil
	}
	return b.validate.Validate(req)
}

// inflight coalesces toggles: one unresolved mutation per key.
type inflight struct {
	mu   sync.Mutex
	keys map[models.Key]struct{}
}

func (f *inflight) acquire(key models.Key) (release func(), err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = make(map[models.Key]struct{})
	}
	if _, busy := f.keys[key]; busy {
		return nil, ErrInFlight
	}
	f.keys[key] = struct{}{}
	return func() {
		f.mu.Lock()
		delete(f.keys, key)
		f.mu.Unlock()
	}, nil
}

func newestFirst[T models.Entity](items []T) []T {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := models.StampOf(items[i]), models.StampOf(items[j])
		if !a.Equal(b) {
			return a.After(b)
		}
		return items[i].EntityID() > items[j].EntityID()
	})
	return items
}

func entities[T models.Entity](items []T) []models.Entity {
	out := make([]models.Entity, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// Registry holds one of each service over a shared store.
type Registry struct {
	Feed          *FeedService
	Network       *NetworkService
	Notifications *NotificationService
	Jobs          *JobService
	Profile       *ProfileService
	Search        *SearchService
}

// NewRegistry builds every service with Row Store backed repositories.
func NewRegistry(d Deps, store rowstore.Client) *Registry {
	users := repositories.NewRowStoreUserRepository(store)
	posts := repositories.NewRowStorePostRepository(store)
	likes := repositories.NewRowStoreLikeRepository(store)
	comments := repositories.NewRowStoreCommentRepository(store)
	follows := repositories.NewRowStoreFollowRepository(store)
	notifications := repositories.NewRowStoreNotificationRepository(store)
	jobs := repositories.NewRowStoreJobRepository(store)

	network := NewNetworkService(d, users, follows)
	return &Registry{
		Feed:          NewFeedService(d, posts, likes, comments, users),
		Network:       network,
		Notifications: NewNotificationService(d, notifications),
		Jobs:          NewJobService(d, jobs),
		Profile:       NewProfileService(d, users, network),
		Search:        NewSearchService(d, posts, users),
	}
}
