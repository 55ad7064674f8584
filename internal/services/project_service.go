package services

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/datatypes"

	"short-drama-service/internal/export"
	"short-drama-service/internal/models"
	"short-drama-service/internal/repository"
)

const defaultProjectName = "新項目"

// ProjectService owns projects and their scenes on behalf of a requesting user.
// Every method checks that the project belongs to userID and reports ErrNotFound
// otherwise.
type ProjectService struct {
	store repository.Store
}

func NewProjectService(store repository.Store) *ProjectService {
	return &ProjectService{store: store}
}

// NewProject is the body accepted when creating a project.
type NewProject struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Theme       string         `json:"theme"`
	Outline     string         `json:"outline"`
	Script      string         `json:"script"`
	Settings    datatypes.JSON `json:"settings" swaggertype:"object"`
}

func (s *ProjectService) ListProjects(userID string) ([]models.Project, error) {
	return s.store.ListProjects(userID)
}

func (s *ProjectService) CreateProject(userID string, in NewProject) (*models.Project, error) {
	if strings.TrimSpace(in.Name) == "" {
		in.Name = defaultProjectName
	}
	if in.Status == "" {
		in.Status = models.ProjectStatusDraft
	}
	if !models.ValidProjectStatus(in.Status) {
		return nil, invalid("Invalid status")
	}

	project := &models.Project{
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		Theme:       in.Theme,
		Outline:     in.Outline,
		Script:      in.Script,
		Settings:    in.Settings,
	}
	if len(project.Settings) == 0 || string(project.Settings) == "null" {
		project.Settings = models.EmptySettings()
	}
	if err := s.store.CreateProject(project); err != nil {
		return nil, err
	}
	return project, nil
}

// GetProject returns the project and its scenes in order.
func (s *ProjectService) GetProject(userID, id string) (*models.Project, []models.Scene, error) {
	project, err := s.owned(userID, id)
	if err != nil {
		return nil, nil, err
	}
	scenes, err := s.store.ListScenes(id)
	if err != nil {
		return nil, nil, err
	}
	return project, scenes, nil
}

func (s *ProjectService) UpdateProject(userID, id string, patch models.ProjectPatch) (*models.Project, error) {
	if _, err := s.owned(userID, id); err != nil {
		return nil, err
	}
	if patch.Status != nil && !models.ValidProjectStatus(*patch.Status) {
		return nil, invalid("Invalid status")
	}
	if patch.Settings != nil && (len(*patch.Settings) == 0 || string(*patch.Settings) == "null") {
		empty := models.EmptySettings()
		patch.Settings = &empty
	}

	project, err := s.store.UpdateProject(id, patch)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrNotFound
	}
	return project, nil
}

func (s *ProjectService) DeleteProject(userID, id string) error {
	if _, err := s.owned(userID, id); err != nil {
		return err
	}
	return s.store.DeleteProject(id)
}

// ExportProject writes a zip of the project, its scenes and its script to w.
func (s *ProjectService) ExportProject(ctx context.Context, userID, id string, w io.Writer) error {
	project, scenes, err := s.GetProject(userID, id)
	if err != nil {
		return err
	}
	return export.WriteProject(ctx, w, *project, scenes)
}

func (s *ProjectService) ListScenes(userID, projectID string) ([]models.Scene, error) {
	if _, err := s.owned(userID, projectID); err != nil {
		return nil, err
	}
	return s.store.ListScenes(projectID)
}

// CreateScene appends a scene to the project. Fields missing from in take their
// defaults; the order number is always assigned by the store.
func (s *ProjectService) CreateScene(userID, projectID string, in models.ScenePatch) (*models.Scene, error) {
	if _, err := s.owned(userID, projectID); err != nil {
		return nil, err
	}
	if in.Duration != nil && *in.Duration <= 0 {
		return nil, invalid("Duration must be positive")
	}

	scene := &models.Scene{ProjectID: projectID, Duration: models.DefaultSceneDuration}
	in.OrderNum = nil
	in.Apply(scene)
	if err := s.store.CreateScene(scene); err != nil {
		if errors.Is(err, repository.ErrProjectMissing) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.store.TouchProject(projectID); err != nil {
		return nil, err
	}
	return scene, nil
}

func (s *ProjectService) GetScene(userID, projectID, sceneID string) (*models.Scene, error) {
	if _, err := s.owned(userID, projectID); err != nil {
		return nil, err
	}
	scene, err := s.store.GetScene(projectID, sceneID)
	if err != nil {
		return nil, err
	}
	if scene == nil {
		return nil, ErrSceneNotFound
	}
	return scene, nil
}

func (s *ProjectService) UpdateScene(userID, projectID, sceneID string, patch models.ScenePatch) (*models.Scene, error) {
	if _, err := s.owned(userID, projectID); err != nil {
		return nil, err
	}
	if patch.Duration != nil && *patch.Duration <= 0 {
		return nil, invalid("Duration must be positive")
	}

	scene, err := s.store.UpdateScene(projectID, sceneID, patch)
	if err != nil {
		return nil, err
	}
	if scene == nil {
		return nil, ErrSceneNotFound
	}
	if err := s.store.TouchProject(projectID); err != nil {
		return nil, err
	}
	return scene, nil
}

func (s *ProjectService) DeleteScene(userID, projectID, sceneID string) error {
	if _, err := s.GetScene(userID, projectID, sceneID); err != nil {
		return err
	}
	if err := s.store.DeleteScene(projectID, sceneID); err != nil {
		return err
	}
	return s.store.TouchProject(projectID)
}

func (s *ProjectService) owned(userID, id string) (*models.Project, error) {
	project, err := s.store.GetProject(id)
	if err != nil {
		return nil, err
	}
	if project == nil || project.UserID != userID {
		return nil, ErrNotFound
	}
	return project, nil
}
