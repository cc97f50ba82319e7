package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/anonto42/linkup/backend/internal/auth"
	"github.com/anonto42/linkup/backend/internal/models"
	"github.com/anonto42/linkup/backend/internal/services"
	"github.com/anonto42/linkup/backend/internal/view"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notifications *services.NotificationService
	session       *auth.Session
	logger        *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications *services.NotificationService, session *auth.Session, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		session:       session,
		logger:        logger.Named("notifications"),
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.GET("/notifications/stream", h.Stream)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.DELETE("/notifications/:id", h.DeleteNotification)
}

// GetNotifications returns paginated notifications; ?filter=unread keeps
// only unread ones
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	if _, err := h.notifications.Load(c.Request().Context()); err != nil {
		return listError(c, err, "notifications")
	}
	list := h.notifications.List(c.QueryParam("filter") == "unread")

	page, limit := pageParams(c, 20)
	paged, meta := paginate(list, page, limit)
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"notifications": paged},
		"meta":    meta,
	})
}

// GetGroupedNotifications returns notifications bucketed by day
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	if _, err := h.notifications.Load(c.Request().Context()); err != nil {
		return listError(c, err, "notifications")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    h.notifications.Grouped(c.QueryParam("filter") == "unread"),
	})
}

// GetUnreadCount returns the badge number from the cache
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "unread_count": h.notifications.UnreadCount()})
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	res, err := h.notifications.MarkRead(c.Request().Context(), c.Param("id"))
	if err != nil {
		return serviceError(err)
	}
	return mutationResult(c, res, http.StatusOK, res.Value)
}

// DeleteNotification deletes a notification
func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	res, err := h.notifications.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return serviceError(err)
	}
	return mutationResult(c, res, http.StatusNoContent, nil)
}

type streamFrame struct {
	UnreadCount   int                    `json:"unread_count"`
	Notifications []*models.Notification `json:"notifications"`
}

// Stream pushes the notification list as server-sent events whenever the
// cached notifications change. The request is a mounted view: frames stop
// when the client leaves or the session ends.
func (h *NotificationHandler) Stream(c echo.Context) error {
	if _, ok := h.session.CurrentUser(); !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	sessionDone := h.session.Done()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	mount := view.NewMount("notifications stream")
	defer mount.Unmount()

	changed := make(chan struct{}, 1)
	cancel := h.notifications.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	send := func() error {
		frame := streamFrame{
			UnreadCount:   h.notifications.UnreadCount(),
			Notifications: h.notifications.List(false),
		}
		var werr error
		if err := mount.Deliver(func() { werr = writeEvent(w, "notifications", frame) }); err != nil {
			return err
		}
		return werr
	}

	if err := send(); err != nil {
		return nil
	}
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sessionDone:
			return nil
		case <-changed:
			if err := send(); err != nil {
				h.logger.Debug("stream closed", zap.Error(err))
				return nil
			}
		}
	}
}

func writeEvent(w *echo.Response, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
