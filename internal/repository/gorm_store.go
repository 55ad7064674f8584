package repository

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"short-drama-service/internal/models"
)

// GormStore implements Store on top of a GORM connection (sqlite or postgres).
type GormStore struct {
	db  *gorm.DB
	now func() time.Time

	// serializes order number assignment within this process
	sceneMu sync.Mutex
}

// NewGormStore creates a new GormStore with the provided GORM database connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// Migrate creates or updates the tables backing the store.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Project{}, &models.Scene{}, &models.Character{})
}

func (s *GormStore) CreateUser(user *models.User) error {
	existing, err := s.GetUserByEmail(user.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicateEmail
	}
	if user.ID == "" {
		user.ID = newID()
	}
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	if err := s.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}
		return errors.Wrap(err, "create user")
	}
	return nil
}

func (s *GormStore) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	return firstOrNil(s.db.Where("email = ?", email).First(&user), &user)
}

func (s *GormStore) GetUserByID(id string) (*models.User, error) {
	var user models.User
	return firstOrNil(s.db.First(&user, "id = ?", id), &user)
}

// CreateProject creates a new Project in the database.
func (s *GormStore) CreateProject(project *models.Project) error {
	if project.ID == "" {
		project.ID = newID()
	}
	if project.Settings == nil {
		project.Settings = models.EmptySettings()
	}
	now := s.now()
	project.CreatedAt, project.UpdatedAt = now, now
	return errors.Wrap(s.db.Create(project).Error, "create project")
}

// ListProjects returns the user's projects, most recently created first.
func (s *GormStore) ListProjects(userID string) ([]models.Project, error) {
	projects := []models.Project{}
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&projects).Error
	return projects, errors.Wrap(err, "list projects")
}

// GetProject retrieves a Project by its ID from the database.
func (s *GormStore) GetProject(id string) (*models.Project, error) {
	var project models.Project
	return firstOrNil(s.db.First(&project, "id = ?", id), &project)
}

func (s *GormStore) UpdateProject(id string, patch models.ProjectPatch) (*models.Project, error) {
	cols := patch.Columns()
	cols["updated_at"] = s.now()
	res := s.db.Model(&models.Project{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update project")
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetProject(id)
}

// DeleteProject deletes a Project by its ID along with its scenes.
func (s *GormStore) DeleteProject(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		// scenes first, sqlite may run without foreign key enforcement
		if err := tx.Where("project_id = ?", id).Delete(&models.Scene{}).Error; err != nil {
			return errors.Wrap(err, "delete scenes")
		}
		return errors.Wrap(tx.Delete(&models.Project{}, "id = ?", id).Error, "delete project")
	})
}

func (s *GormStore) TouchProject(id string) error {
	err := s.db.Model(&models.Project{}).Where("id = ?", id).Update("updated_at", s.now()).Error
	return errors.Wrap(err, "touch project")
}

func (s *GormStore) CreateScene(scene *models.Scene) error {
	s.sceneMu.Lock()
	defer s.sceneMu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Select("id", "scene_seq").First(&project, "id = ?", scene.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectMissing
			}
			return errors.Wrap(err, "load project")
		}
		var existing []models.Scene
		if err := tx.Select("order_num").Where("project_id = ?", scene.ProjectID).Find(&existing).Error; err != nil {
			return errors.Wrap(err, "load scene order")
		}

		scene.OrderNum = nextOrderNum(project.SceneSeq, existing)
		if scene.ID == "" {
			scene.ID = newID()
		}
		now := s.now()
		scene.CreatedAt, scene.UpdatedAt = now, now
		if err := tx.Create(scene).Error; err != nil {
			return errors.Wrap(err, "create scene")
		}
		err := tx.Model(&models.Project{}).Where("id = ?", scene.ProjectID).Update("scene_seq", scene.OrderNum).Error
		return errors.Wrap(err, "advance scene sequence")
	})
}

// ListScenes returns the project's scenes ordered by orderNum.
func (s *GormStore) ListScenes(projectID string) ([]models.Scene, error) {
	scenes := []models.Scene{}
	err := s.db.Where("project_id = ?", projectID).Order("order_num ASC").Find(&scenes).Error
	return scenes, errors.Wrap(err, "list scenes")
}

func (s *GormStore) GetScene(projectID, sceneID string) (*models.Scene, error) {
	var scene models.Scene
	return firstOrNil(s.db.Where("id = ? AND project_id = ?", sceneID, projectID).First(&scene), &scene)
}

func (s *GormStore) UpdateScene(projectID, sceneID string, patch models.ScenePatch) (*models.Scene, error) {
	cols := patch.Columns()
	cols["updated_at"] = s.now()
	res := s.db.Model(&models.Scene{}).Where("id = ? AND project_id = ?", sceneID, projectID).Updates(cols)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update scene")
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetScene(projectID, sceneID)
}

func (s *GormStore) DeleteScene(projectID, sceneID string) error {
	err := s.db.Where("id = ? AND project_id = ?", sceneID, projectID).Delete(&models.Scene{}).Error
	return errors.Wrap(err, "delete scene")
}

func (s *GormStore) CreateCharacter(character *models.Character) error {
	if character.ID == "" {
		character.ID = newID()
	}
	now := s.now()
	character.CreatedAt, character.UpdatedAt = now, now
	return errors.Wrap(s.db.Create(character).Error, "create character")
}

func (s *GormStore) ListCharacters(userID string) ([]models.Character, error) {
	characters := []models.Character{}
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&characters).Error
	return characters, errors.Wrap(err, "list characters")
}

func (s *GormStore) GetCharacter(id string) (*models.Character, error) {
	var character models.Character
	return firstOrNil(s.db.First(&character, "id = ?", id), &character)
}

func (s *GormStore) UpdateCharacter(id string, patch models.CharacterPatch) (*models.Character, error) {
	cols := patch.Columns()
	cols["updated_at"] = s.now()
	res := s.db.Model(&models.Character{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update character")
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetCharacter(id)
}

func (s *GormStore) DeleteCharacter(id string) error {
	return errors.Wrap(s.db.Delete(&models.Character{}, "id = ?", id).Error, "delete character")
}

func (s *GormStore) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func firstOrNil[T any](res *gorm.DB, out *T) (*T, error) {
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, res.Error
	}
	return out, nil
}
