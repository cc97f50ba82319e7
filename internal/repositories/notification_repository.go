package repositories

import (
	"context"
	"time"

	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/rowstore"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error)
	GetByRecipientID(ctx context.Context, recipientID string) ([]*models.Notification, error)
	GetUnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkAsRead(ctx context.Context, notificationID string) (*models.Notification, error)
	DeleteNotification(ctx context.Context, notificationID string) error
}

type rowStoreNotificationRepository struct {
	notifications table[*models.Notification]
}

func NewRowStoreNotificationRepository(store rowstore.Client) NotificationRepository {
	return &rowStoreNotificationRepository{notifications: newTable[*models.Notification](store, models.TypeNotification)}
}

func (r *rowStoreNotificationRepository) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	return r.notifications.insert(ctx, n)
}

func (r *rowStoreNotificationRepository) GetByRecipientID(ctx context.Context, recipientID string) ([]*models.Notification, error) {
	ns, err := r.notifications.list(ctx, rowstore.Eq("user_id", recipientID))
	if err != nil {
		return nil, err
	}
	newestFirst(ns)
	return ns, nil
}

func (r *rowStoreNotificationRepository) GetUnreadCount(ctx context.Context, recipientID string) (int, error) {
	return r.notifications.count(ctx, rowstore.Eq("user_id", recipientID).And("is_read", false))
}

func (r *rowStoreNotificationRepository) MarkAsRead(ctx context.Context, notificationID string) (*models.Notification, error) {
	return r.notifications.update(ctx, notificationID, rowstore.Row{"is_read": true})
}

func (r *rowStoreNotificationRepository) DeleteNotification(ctx context.Context, notificationID string) error {
	return r.notifications.delete(ctx, rowstore.Eq("id", notificationID))
}

// GroupByDay splits notifications into today, yesterday, the rest of the
// last week, and older, relative to now. Input order is kept.
func GroupByDay(ns []*models.Notification, now time.Time) (today, yesterday, thisWeek, older []*models.Notification) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	for _, n := range ns {
		switch {
		case !n.CreatedAt.Before(todayStart):
			today = append(today, n)
		case !n.CreatedAt.Before(yesterdayStart):
			yesterday = append(yesterday, n)
		case !n.CreatedAt.Before(weekStart):
			thisWeek = append(thisWeek, n)
		default:
			older = append(older, n)
		}
	}
	return today, yesterday, thisWeek, older
}
