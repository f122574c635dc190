package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialsync/internal/models"
	"github.com/anonto42/nano-midea/socialsync/internal/repositories"
)

// NotificationHandler handles notification HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationRepo repositories.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notificationRepository: notificationRepo}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.POST("/notifications", h.MarkNotificationsRead)
}

// MarkNotificationsRead marks the caller's listed notifications as read
func (h *NotificationHandler) MarkNotificationsRead(c echo.Context) error {
	handle, err := currentHandle(c)
	if err != nil {
		return err
	}
	var req models.MarkNotificationsReadRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	n, err := h.notificationRepository.MarkAsRead(c.Request().Context(), handle, req.NotificationIDs)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Notifications marked read", "updated": n})
}
