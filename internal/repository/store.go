package repository

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"short-drama-service/internal/models"
)

// ErrDuplicateEmail is returned when a user is created with an email that is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrProjectMissing is returned when a scene is created for a project that does not exist.
var ErrProjectMissing = errors.New("project does not exist")

// Store is the persistence boundary for users, projects, scenes and characters.
//
// Getters return (nil, nil) when the record does not exist. Ownership is not
// checked here; callers compare UserID themselves.
type Store interface {
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)

	CreateProject(project *models.Project) error
	ListProjects(userID string) ([]models.Project, error)
	GetProject(id string) (*models.Project, error)
	UpdateProject(id string, patch models.ProjectPatch) (*models.Project, error)
	// DeleteProject removes the project together with its scenes.
	DeleteProject(id string) error
	TouchProject(id string) error

	// CreateScene assigns scene.OrderNum as one past the highest order number the
	// project has ever used, so numbers are never handed out twice.
	CreateScene(scene *models.Scene) error
	ListScenes(projectID string) ([]models.Scene, error)
	GetScene(projectID, sceneID string) (*models.Scene, error)
	UpdateScene(projectID, sceneID string, patch models.ScenePatch) (*models.Scene, error)
	DeleteScene(projectID, sceneID string) error

	CreateCharacter(character *models.Character) error
	ListCharacters(userID string) ([]models.Character, error)
	GetCharacter(id string) (*models.Character, error)
	UpdateCharacter(id string, patch models.CharacterPatch) (*models.Character, error)
	DeleteCharacter(id string) error

	Ping() error
	Close() error
}

func newID() string {
	return uuid.NewString()
}

func nextOrderNum(seq int, scenes []models.Scene) int {
	high := seq
	for _, s := range scenes {
		if s.OrderNum > high {
			high = s.OrderNum
		}
	}
	return high + 1
}
