package repository

import (
	"sort"
	"sync"
	"time"

	"short-drama-service/internal/models"
)

// MemoryStore keeps everything in process memory. It is used for development and
// tests; data is lost on restart.
type MemoryStore struct {
	mu sync.RWMutex

	users      map[string]models.User
	projects   map[string]models.Project
	scenes     map[string]models.Scene
	characters map[string]models.Character

	// insertion order, breaks ties between equal timestamps
	seq   int64
	order map[string]int64

	now func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]models.User),
		projects:   make(map[string]models.Project),
		scenes:     make(map[string]models.Scene),
		characters: make(map[string]models.Character),
		order:      make(map[string]int64),
		now:        time.Now,
	}
}

func (m *MemoryStore) track(id string) {
	m.seq++
	m.order[id] = m.seq
}

func (m *MemoryStore) newerFirst(aID string, aAt time.Time, bID string, bAt time.Time) bool {
	if !aAt.Equal(bAt) {
		return aAt.After(bAt)
	}
	return m.order[aID] > m.order[bID]
}

func (m *MemoryStore) CreateUser(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = newID()
	}
	now := m.now()
	user.CreatedAt, user.UpdatedAt = now, now
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryStore) GetUserByEmail(email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) GetUserByID(id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryStore) CreateProject(project *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if project.ID == "" {
		project.ID = newID()
	}
	if project.Settings == nil {
		project.Settings = models.EmptySettings()
	}
	now := m.now()
	project.CreatedAt, project.UpdatedAt = now, now
	m.projects[project.ID] = project.Clone()
	m.track(project.ID)
	return nil
}

func (m *MemoryStore) ListProjects(userID string) ([]models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Project{}
	for _, p := range m.projects {
		if p.UserID == userID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return m.newerFirst(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) GetProject(id string) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	out := p.Clone()
	return &out, nil
}

func (m *MemoryStore) UpdateProject(id string, patch models.ProjectPatch) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	patch.Apply(&p)
	p.UpdatedAt = m.now()
	m.projects[id] = p
	out := p.Clone()
	return &out, nil
}

func (m *MemoryStore) DeleteProject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sid, s := range m.scenes {
		if s.ProjectID == id {
			delete(m.scenes, sid)
			delete(m.order, sid)
		}
	}
	delete(m.projects, id)
	delete(m.order, id)
	return nil
}

func (m *MemoryStore) TouchProject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.projects[id]; ok {
		p.UpdatedAt = m.now()
		m.projects[id] = p
	}
	return nil
}

func (m *MemoryStore) CreateScene(scene *models.Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[scene.ProjectID]
	if !ok {
		return ErrProjectMissing
	}
	var existing []models.Scene
	for _, s := range m.scenes {
		if s.ProjectID == scene.ProjectID {
			existing = append(existing, s)
		}
	}
	scene.OrderNum = nextOrderNum(p.SceneSeq, existing)
	if scene.ID == "" {
		scene.ID = newID()
	}
	now := m.now()
	scene.CreatedAt, scene.UpdatedAt = now, now
	m.scenes[scene.ID] = *scene
	m.track(scene.ID)

	p.SceneSeq = scene.OrderNum
	m.projects[p.ID] = p
	return nil
}

func (m *MemoryStore) ListScenes(projectID string) ([]models.Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Scene{}
	for _, s := range m.scenes {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderNum != out[j].OrderNum {
			return out[i].OrderNum < out[j].OrderNum
		}
		return m.order[out[i].ID] < m.order[out[j].ID]
	})
	return out, nil
}

func (m *MemoryStore) GetScene(projectID, sceneID string) (*models.Scene, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.scenes[sceneID]
	if !ok || s.ProjectID != projectID {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) UpdateScene(projectID, sceneID string, patch models.ScenePatch) (*models.Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.scenes[sceneID]
	if !ok || s.ProjectID != projectID {
		return nil, nil
	}
	patch.Apply(&s)
	s.UpdatedAt = m.now()
	m.scenes[sceneID] = s
	return &s, nil
}

func (m *MemoryStore) DeleteScene(projectID, sceneID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.scenes[sceneID]; ok && s.ProjectID == projectID {
		delete(m.scenes, sceneID)
		delete(m.order, sceneID)
	}
	return nil
}

func (m *MemoryStore) CreateCharacter(character *models.Character) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if character.ID == "" {
		character.ID = newID()
	}
	now := m.now()
	character.CreatedAt, character.UpdatedAt = now, now
	m.characters[character.ID] = *character
	m.track(character.ID)
	return nil
}

func (m *MemoryStore) ListCharacters(userID string) ([]models.Character, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Character{}
	for _, c := range m.characters {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return m.newerFirst(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) GetCharacter(id string) (*models.Character, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.characters[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryStore) UpdateCharacter(id string, patch models.CharacterPatch) (*models.Character, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.characters[id]
	if !ok {
		return nil, nil
	}
	patch.Apply(&c)
	c.UpdatedAt = m.now()
	m.characters[id] = c
	return &c, nil
}

func (m *MemoryStore) DeleteCharacter(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.characters, id)
	delete(m.order, id)
	return nil
}

func (m *MemoryStore) Ping() error  { return nil }
func (m *MemoryStore) Close() error { return nil }
