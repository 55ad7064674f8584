package handlers

import (
	"github.com/gofiber/fiber/v2"

	"short-drama-service/internal/services"
)

type NotifyHandler struct {
	notifications *services.NotificationService
}

func NewNotifyHandler(notifications *services.NotificationService) *NotifyHandler {
	return &NotifyHandler{notifications: notifications}
}

type emailPreferenceRequest struct {
	Email string `json:"email"`
}

// Send
// @Summary Send a task notification
// @Description Uses the email in the body or the caller's stored preference
// @Tags notify
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.Notification true "Notification"
// @Success 200 {object} services.NotifyResult
// @Failure 400 {object} errorResponse "Missing required fields"
// @Router /api/notify [post]
func (h *NotifyHandler) Send(c *fiber.Ctx) error {
	var n services.Notification
	if ok, err := parseBody(c, &n); !ok {
		return err
	}

	res, err := h.notifications.Notify(c.UserContext(), userID(c), n)
	if err != nil {
		return serviceError(c, "sending notification", "Not found", err)
	}
	return c.JSON(res)
}

// SetEmail
// @Summary Store the notification email
// @Tags notify
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body emailPreferenceRequest true "Email"
// @Success 200 {object} services.NotifyResult
// @Failure 400 {object} errorResponse "Missing email"
// @Router /api/notify [put]
func (h *NotifyHandler) SetEmail(c *fiber.Ctx) error {
	var req emailPreferenceRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	if err := h.notifications.SetEmail(userID(c), req.Email); err != nil {
		return serviceError(c, "updating email preference", "Not found", err)
	}
	return c.JSON(services.NotifyResult{Success: true, Message: "Email preference updated"})
}
