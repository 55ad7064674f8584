// internal/handlers/project_handler.go
package handlers

import (
	"bytes"
	"log"

	"github.com/gofiber/fiber/v2"

	"short-drama-service/internal/export"
	"short-drama-service/internal/models"
	"short-drama-service/internal/services"
)

// ExportObserver is told the size of every project archive served.
type ExportObserver interface {
	ObserveExport(bytes int64)
}

type ProjectHandler struct {
	projects *services.ProjectService
	exports  ExportObserver
}

func NewProjectHandler(projects *services.ProjectService, exports ExportObserver) *ProjectHandler {
	return &ProjectHandler{projects: projects, exports: exports}
}

// ListProjects returns the caller's projects
// @Summary List projects
// @Description Projects of the authenticated user, newest first
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string][]models.Project
// @Router /api/projects [get]
func (h *ProjectHandler) ListProjects(c *fiber.Ctx) error {
	projects, err := h.projects.ListProjects(userID(c))
	if err != nil {
		return serviceError(c, "listing projects", "Project not found", err)
	}
	return c.JSON(fiber.Map{"projects": projects})
}

// CreateProject creates a new project
// @Summary Create a new project
// @Description Name defaults to 新項目 and status to draft
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param project body services.NewProject true "Project data"
// @Success 201 {object} map[string]models.Project
// @Failure 400 {object} errorResponse "Invalid status"
// @Router /api/projects [post]
func (h *ProjectHandler) CreateProject(c *fiber.Ctx) error {
	var in services.NewProject
	if ok, err := parseBody(c, &in); !ok {
		return err
	}

	project, err := h.projects.CreateProject(userID(c), in)
	if err != nil {
		return serviceError(c, "creating project", "Project not found", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"project": project})
}

// GetProject returns a project with its scenes
// @Summary Get a project by ID
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} map[string]interface{} "project and scenes"
// @Failure 404 {object} errorResponse "Project not found"
// @Router /api/projects/{id} [get]
func (h *ProjectHandler) GetProject(c *fiber.Ctx) error {
	project, scenes, err := h.projects.GetProject(userID(c), c.Params("id"))
	if err != nil {
		return serviceError(c, "fetching project", "Project not found", err)
	}
	return c.JSON(fiber.Map{"project": project, "scenes": scenes})
}

// UpdateProject applies a partial update
// @Summary Update a project
// @Description Only the fields present in the body change
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param project body models.ProjectPatch true "Fields to change"
// @Success 200 {object} map[string]models.Project
// @Failure 400 {object} errorResponse "Invalid status"
// @Failure 404 {object} errorResponse "Project not found"
// @Router /api/projects/{id} [put]
func (h *ProjectHandler) UpdateProject(c *fiber.Ctx) error {
	var patch models.ProjectPatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}

	project, err := h.projects.UpdateProject(userID(c), c.Params("id"), patch)
	if err != nil {
		return serviceError(c, "updating project", "Project not found", err)
	}
	return c.JSON(fiber.Map{"project": project})
}

// DeleteProject removes a project and its scenes
// @Summary Delete a project
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} successResponse
// @Failure 404 {object} errorResponse "Project not found"
// @Router /api/projects/{id} [delete]
func (h *ProjectHandler) DeleteProject(c *fiber.Ctx) error {
	if err := h.projects.DeleteProject(userID(c), c.Params("id")); err != nil {
		return serviceError(c, "deleting project", "Project not found", err)
	}
	return c.JSON(successResponse{Success: true})
}

// ExportProject downloads the project as a zip archive
// @Summary Export a project
// @Description Zip with project.json, scenes.json and script.txt
// @Tags projects
// @Produce application/zip
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {file} file
// @Failure 404 {object} errorResponse "Project not found"
// @Router /api/projects/{id}/export [get]
func (h *ProjectHandler) ExportProject(c *fiber.Ctx) error {
	id := c.Params("id")

	// buffered so an ownership failure can still answer with a JSON error
	var buf bytes.Buffer
	if err := h.projects.ExportProject(c.UserContext(), userID(c), id, &buf); err != nil {
		return serviceError(c, "exporting project", "Project not found", err)
	}
	if h.exports != nil {
		h.exports.ObserveExport(int64(buf.Len()))
	}
	log.Printf("Exported project %s (%d bytes)", id, buf.Len())

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=\""+export.FileName(models.Project{ID: id})+"\"")
	return c.Send(buf.Bytes())
}

// ListScenes returns the project's scenes in order
// @Summary List scenes
// @Tags scenes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} map[string][]models.Scene
// @Failure 404 {object} errorResponse "Project not found"
// @Router /api/projects/{id}/scenes [get]
func (h *ProjectHandler) ListScenes(c *fiber.Ctx) error {
	scenes, err := h.projects.ListScenes(userID(c), c.Params("id"))
	if err != nil {
		return serviceError(c, "listing scenes", "Project not found", err)
	}
	return c.JSON(fiber.Map{"scenes": scenes})
}

// CreateScene appends a scene
// @Summary Create a scene
// @Description The order number is assigned by the server; duration defaults to 5
// @Tags scenes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param scene body models.ScenePatch true "Scene data"
// @Success 201 {object} map[string]models.Scene
// @Failure 404 {object} errorResponse "Project not found"
// @Router /api/projects/{id}/scenes [post]
func (h *ProjectHandler) CreateScene(c *fiber.Ctx) error {
	var in models.ScenePatch
	if ok, err := parseBody(c, &in); !ok {
		return err
	}

	scene, err := h.projects.CreateScene(userID(c), c.Params("id"), in)
	if err != nil {
		return serviceError(c, "creating scene", "Project not found", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"scene": scene})
}

// GetScene returns one scene
// @Summary Get a scene
// @Tags scenes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param sceneId path string true "Scene ID"
// @Success 200 {object} map[string]models.Scene
// @Failure 404 {object} errorResponse "Project not found or scene not found"
// @Router /api/projects/{id}/scenes/{sceneId} [get]
func (h *ProjectHandler) GetScene(c *fiber.Ctx) error {
	scene, err := h.projects.GetScene(userID(c), c.Params("id"), c.Params("sceneId"))
	if err != nil {
		return serviceError(c, "fetching scene", "Project not found", err)
	}
	return c.JSON(fiber.Map{"scene": scene})
}

// UpdateScene applies a partial update
// @Summary Update a scene
// @Tags scenes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param sceneId path string true "Scene ID"
// @Param scene body models.ScenePatch true "Fields to change"
// @Success 200 {object} map[string]models.Scene
// @Failure 404 {object} errorResponse "Project not found or scene not found"
// @Router /api/projects/{id}/scenes/{sceneId} [put]
func (h *ProjectHandler) UpdateScene(c *fiber.Ctx) error {
	var patch models.ScenePatch
	if ok, err := parseBody(c, &patch); !ok {
		return err
	}

	scene, err := h.projects.UpdateScene(userID(c), c.Params("id"), c.Params("sceneId"), patch)
	if err != nil {
		return serviceError(c, "updating scene", "Project not found", err)
	}
	return c.JSON(fiber.Map{"scene": scene})
}

// DeleteScene removes a scene
// @Summary Delete a scene
// @Tags scenes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param sceneId path string true "Scene ID"
// @Success 200 {object} successResponse
// @Failure 404 {object} errorResponse "Project not found or scene not found"
// @Router /api/projects/{id}/scenes/{sceneId} [delete]
func (h *ProjectHandler) DeleteScene(c *fiber.Ctx) error {
	if err := h.projects.DeleteScene(userID(c), c.Params("id"), c.Params("sceneId")); err != nil {
		return serviceError(c, "deleting scene", "Project not found", err)
	}
	return c.JSON(successResponse{Success: true})
}
