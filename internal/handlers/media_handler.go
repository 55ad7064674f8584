package handlers

import (
	"github.com/gofiber/fiber/v2"

	"short-drama-service/internal/generation"
)

// MediaHandler submits image and video jobs and reports backend status.
type MediaHandler struct {
	gen *generation.Service
}

func NewMediaHandler(gen *generation.Service) *MediaHandler {
	return &MediaHandler{gen: gen}
}

type imageResponse struct {
	Success bool              `json:"success"`
	Mock    bool              `json:"mock"`
	Source  generation.Source `json:"source"`
	generation.ImageJob
}

type videoResponse struct {
	Success bool              `json:"success"`
	Mock    bool              `json:"mock"`
	Source  generation.Source `json:"source"`
	generation.VideoJob
}

// GenerateImage
// @Summary Submit a text-to-image job
// @Description Falls back to a mock job when ComfyUI is unavailable
// @Tags generate
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body generation.ImageRequest true "Image request"
// @Success 200 {object} imageResponse
// @Failure 400 {object} errorResponse "Missing prompt"
// @Router /api/generate/image [post]
func (h *MediaHandler) GenerateImage(c *fiber.Ctx) error {
	var req generation.ImageRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if req.Prompt == "" {
		return fail(c, fiber.StatusBadRequest, "Missing prompt")
	}

	res := h.gen.Image(c.UserContext(), req)
	return c.JSON(imageResponse{Success: true, Mock: !res.Upstream(), Source: res.Source, ImageJob: res.Value})
}

// ImageStatus
// @Summary ComfyUI availability
// @Tags generate
// @Produce json
// @Success 200 {object} generation.ServiceStatus
// @Router /api/generate/image [get]
func (h *MediaHandler) ImageStatus(c *fiber.Ctx) error {
	return c.JSON(h.gen.ImageStatus(c.UserContext()))
}

// GenerateVideo
// @Summary Submit an image-to-video job
// @Description Falls back to a mock job when LTX-Video is unavailable
// @Tags generate
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body generation.VideoRequest true "Video request"
// @Success 200 {object} videoResponse
// @Failure 400 {object} errorResponse "Missing images"
// @Router /api/generate/video [post]
func (h *MediaHandler) GenerateVideo(c *fiber.Ctx) error {
	var req generation.VideoRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if len(req.Images) == 0 {
		return fail(c, fiber.StatusBadRequest, "Missing images - provide at least one image frame")
	}

	res := h.gen.Video(c.UserContext(), req)
	return c.JSON(videoResponse{Success: true, Mock: !res.Upstream(), Source: res.Source, VideoJob: res.Value})
}

// VideoStatus
// @Summary LTX-Video availability
// @Tags generate
// @Produce json
// @Success 200 {object} generation.ServiceStatus
// @Router /api/generate/video [get]
func (h *MediaHandler) VideoStatus(c *fiber.Ctx) error {
	return c.JSON(h.gen.VideoStatus(c.UserContext()))
}
