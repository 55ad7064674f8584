package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"short-drama-service/internal/queue"
)

type QueueHandler struct {
	registry *queue.Registry
}

func NewQueueHandler(registry *queue.Registry) *QueueHandler {
	return &QueueHandler{registry: registry}
}

type enqueueRequest struct {
	Type    string                 `json:"type"`
	Context map[string]interface{} `json:"context"`
}

// ListTasks returns every task in the queue, newest first
// @Summary Queue status
// @Tags queue
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string][]queue.Task
// @Router /api/queue [get]
func (h *QueueHandler) ListTasks(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"queue": h.registry.List()})
}

// Enqueue
// @Summary Enqueue a generation task
// @Tags queue
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body enqueueRequest true "Task type and context"
// @Success 200 {object} map[string]queue.Task
// @Failure 400 {object} errorResponse "Missing type"
// @Router /api/queue [post]
func (h *QueueHandler) Enqueue(c *fiber.Ctx) error {
	var req enqueueRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if req.Type == "" {
		return fail(c, fiber.StatusBadRequest, "Missing type")
	}

	task := h.registry.Enqueue(req.Type, userID(c), req.Context)
	return c.JSON(fiber.Map{"task": task})
}

// Cancel removes a pending task
// @Summary Cancel a pending task
// @Tags queue
// @Produce json
// @Security BearerAuth
// @Param id query string true "Task ID"
// @Success 200 {object} successResponse
// @Failure 400 {object} errorResponse "Missing id or task not pending"
// @Failure 404 {object} errorResponse "Task not found"
// @Router /api/queue [delete]
func (h *QueueHandler) Cancel(c *fiber.Ctx) error {
	id := c.Query("id")
	if id == "" {
		return fail(c, fiber.StatusBadRequest, "Missing task id")
	}

	switch err := h.registry.Cancel(id); {
	case err == nil:
		return c.JSON(successResponse{Success: true})
	case errors.Is(err, queue.ErrTaskNotFound):
		return fail(c, fiber.StatusNotFound, "Task not found")
	case errors.Is(err, queue.ErrTaskNotPending):
		return fail(c, fiber.StatusBadRequest, "Cannot cancel task that is not pending")
	default:
		return err
	}
}
