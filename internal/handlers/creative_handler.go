package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"short-drama-service/internal/generation"
)

// CreativeHandler serves the wizard steps (theme, outline, script, scenes) and
// field suggestions.
type CreativeHandler struct {
	gen *generation.Service
}

func NewCreativeHandler(gen *generation.Service) *CreativeHandler {
	return &CreativeHandler{gen: gen}
}

type suggestRequest struct {
	Type    string                 `json:"type"`
	Context map[string]interface{} `json:"context"`
}

type suggestResponse struct {
	Suggestion map[string]interface{} `json:"suggestion"`
	Source     generation.Source      `json:"source"`
}

type outlinesRequest struct {
	Theme string `json:"theme"`
}

type outlinesResponse struct {
	Outlines []generation.Outline `json:"outlines"`
	Source   generation.Source    `json:"source"`
}

type scriptRequest struct {
	Outline *generation.Outline `json:"outline"`
}

type scriptResponse struct {
	Script string            `json:"script"`
	Source generation.Source `json:"source"`
}

type scenesRequest struct {
	Script string `json:"script"`
}

type scenesResponse struct {
	Scenes []generation.SceneDraft `json:"scenes"`
}

// Suggest proposes field values
// @Summary Suggest fields for a project, scene or character
// @Tags ai
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body suggestRequest true "Suggestion type and context"
// @Success 200 {object} suggestResponse
// @Failure 400 {object} errorResponse "Missing type or context"
// @Router /api/ai/suggest [post]
func (h *CreativeHandler) Suggest(c *fiber.Ctx) error {
	var req suggestRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if req.Type == "" || req.Context == nil {
		return fail(c, fiber.StatusBadRequest, "Missing type or context")
	}

	res := h.gen.Suggest(c.UserContext(), req.Type, req.Context)
	return c.JSON(suggestResponse{Suggestion: res.Value, Source: res.Source})
}

// GenerateOutlines
// @Summary Generate three story outlines for a theme
// @Tags creative
// @Accept json
// @Produce json
// @Param body body outlinesRequest true "Theme"
// @Success 200 {object} outlinesResponse
// @Failure 400 {object} errorResponse "Theme is required"
// @Router /api/creative/generate-outlines [post]
func (h *CreativeHandler) GenerateOutlines(c *fiber.Ctx) error {
	var req outlinesRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	theme := strings.TrimSpace(req.Theme)
	if theme == "" {
		return fail(c, fiber.StatusBadRequest, "Theme is required")
	}

	res := h.gen.Outlines(c.UserContext(), theme)
	return c.JSON(outlinesResponse{Outlines: res.Value, Source: res.Source})
}

// GenerateScript
// @Summary Expand an outline into a script
// @Tags creative
// @Accept json
// @Produce json
// @Param body body scriptRequest true "Outline"
// @Success 200 {object} scriptResponse
// @Failure 400 {object} errorResponse "Outline is required"
// @Router /api/creative/generate-script [post]
func (h *CreativeHandler) GenerateScript(c *fiber.Ctx) error {
	var req scriptRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if req.Outline == nil || (strings.TrimSpace(req.Outline.Title) == "" && strings.TrimSpace(req.Outline.Description) == "") {
		return fail(c, fiber.StatusBadRequest, "Outline is required")
	}

	res := h.gen.Script(c.UserContext(), *req.Outline)
	return c.JSON(scriptResponse{Script: res.Value, Source: res.Source})
}

// GenerateScenes
// @Summary Split a script into scene drafts
// @Tags creative
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body scenesRequest true "Script"
// @Success 200 {object} scenesResponse
// @Failure 400 {object} errorResponse "Script is required"
// @Router /api/creative/generate-scenes [post]
func (h *CreativeHandler) GenerateScenes(c *fiber.Ctx) error {
	var req scenesRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	if strings.TrimSpace(req.Script) == "" {
		return fail(c, fiber.StatusBadRequest, "Script is required")
	}
	return c.JSON(scenesResponse{Scenes: generation.ParseScenes(req.Script)})
}
