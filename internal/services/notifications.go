package services

import (
	"context"
	"errors"

	"github.com/anonto42/linkup/backend/internal/cache"
	"github.com/anonto42/linkup/backend/internal/coordinator"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/repositories"
	"github.com/anonto42/linkup/backend/internal/rowstore"
)

// NotificationGroups is the notifications page split by day.
type NotificationGroups struct {
	Today     []*models.Notification `json:"today"`
	Yesterday []*models.Notification `json:"yesterday"`
	ThisWeek  []*models.Notification `json:"this_week"`
	Older     []*models.Notification `json:"older"`
}

// NotificationService backs the notifications page and the unread badge.
type NotificationService struct {
	base
	notifications repositories.NotificationRepository
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(d Deps, notifications repositories.NotificationRepository) *NotificationService {
	return &NotificationService{
		base:          newBase(d, "notifications"),
		notifications: notifications,
	}
}

func (s *NotificationService) mine(me string) func(models.Entity) bool {
	return cache.Where(func(n *models.Notification) bool { return n.UserID == me })
}

// Load refreshes the viewer's notifications.
func (s *NotificationService) Load(ctx context.Context) ([]*models.Notification, error) {
	me, err := s.me()
	if err != nil {
		return nil, err
	}
	rows, err := s.co.Refresh(ctx, models.TypeNotification, func(ctx context.Context) ([]models.Entity, error) {
		ns, err := s.notifications.GetByRecipientID(ctx, me)
		if err != nil {
			return nil, err
		}
		return entities(ns), nil
	})
	if err != nil {
		return nil, err
	}
	s.co.Prune(models.TypeNotification, s.mine(me), rows)
	return s.List(false), nil
}

// List returns the cached notifications newest first.
func (s *NotificationService) List(unreadOnly bool) []*models.Notification {
	me, err := s.me()
	if err != nil {
		return nil
	}
	return newestFirst(cache.Collect[*models.Notification](s.cache.List(models.TypeNotification,
		cache.Where(func(n *models.Notification) bool {
			return n.UserID == me && (!unreadOnly || !n.IsRead)
		}))))
}

// UnreadCount is the badge number.
func (s *NotificationService) UnreadCount() int {
	return len(s.List(true))
}

// Grouped returns List(unreadOnly) bucketed relative to the current time.
func (s *NotificationService) Grouped(unreadOnly bool) NotificationGroups {
	var g NotificationGroups
	g.Today, g.Yesterday, g.ThisWeek, g.Older = repositories.GroupByDay(s.List(unreadOnly), s.now())
	return g
}

// OnChange calls fn after any cached notification changes. fn must not block.
func (s *NotificationService) OnChange(fn func()) (cancel func()) {
	return s.cache.OnChange(func(key models.Key) {
		if key.Type == models.TypeNotification {
			fn()
		}
	})
}

// MarkRead marks one notification read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) (coordinator.Result, error) {
	n, err := s.owned(id)
	if err != nil {
		return coordinator.Result{}, err
	}
	return s.co.Mutate(ctx, models.KeyOf(n),
		func(current models.Entity) models.Entity {
			cur, ok := current.(*models.Notification)
			if !ok {
				return current
			}
			cp := *cur
			cp.IsRead = true
			return &cp
		},
		func(ctx context.Context) (models.Entity, error) {
			return s.notifications.MarkAsRead(ctx, id)
		}), nil
}

// Delete removes one notification.
func (s *NotificationService) Delete(ctx context.Context, id string) (coordinator.Result, error) {
	n, err := s.owned(id)
	if err != nil {
		return coordinator.Result{}, err
	}
	return s.co.Mutate(ctx, models.KeyOf(n),
		func(models.Entity) models.Entity { return nil },
		func(ctx context.Context) (models.Entity, error) {
			if err := s.notifications.DeleteNotification(ctx, id); err != nil && !errors.Is(err, rowstore.ErrNotFound) {
				return nil, err
			}
			return nil, nil
		}), nil
}

func (s *NotificationService) owned(id string) (*models.Notification, error) {
	me, err := s.me()
	if err != nil {
		return nil, err
	}
	n, ok := cache.Lookup[*models.Notification](s.cache, models.TypeNotification, id)
	if !ok {
		return nil, ErrNotLoaded
	}
	if n.UserID != me {
		return nil, ErrForbidden
	}
	return n, nil
}
