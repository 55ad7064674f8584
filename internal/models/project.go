package models

import (
	"time"

	"gorm.io/datatypes"
)

// Project statuses.
const (
	ProjectStatusDraft      = "draft"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
)

// Project is a short-drama script being authored by one user.
type Project struct {
	ID          string         `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID      string         `json:"userId" gorm:"type:varchar(64);not null;index"`
	Name        string         `json:"name" gorm:"not null"`
	Description string         `json:"description"`
	Status      string         `json:"status" gorm:"type:varchar(32);not null;default:draft"`
	Theme       string         `json:"theme"`
	Outline     string         `json:"outline" gorm:"type:text"`
	Script      string         `json:"script" gorm:"type:text"`
	Settings    datatypes.JSON `json:"settings" swaggertype:"object"`
	SceneSeq    int            `json:"-" gorm:"not null;default:0"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`

	Scenes []Scene `json:"-" gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// ProjectPatch carries a partial project update. Nil fields are left unchanged.
type ProjectPatch struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	Theme       *string         `json:"theme"`
	Outline     *string         `json:"outline"`
	Script      *string         `json:"script"`
	Settings    *datatypes.JSON `json:"settings" swaggertype:"object"`
}

// ValidProjectStatus reports whether s is one of the known project statuses.
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusDraft, ProjectStatusInProgress, ProjectStatusCompleted:
		return true
	}
	return false
}

// Apply copies the set fields of p onto project.
func (p ProjectPatch) Apply(project *Project) {
	if p.Name != nil {
		project.Name = *p.Name
	}
	if p.Description != nil {
		project.Description = *p.Description
	}
	if p.Status != nil {
		project.Status = *p.Status
	}
	if p.Theme != nil {
		project.Theme = *p.Theme
	}
	if p.Outline != nil {
		project.Outline = *p.Outline
	}
	if p.Script != nil {
		project.Script = *p.Script
	}
	if p.Settings != nil {
		project.Settings = cloneJSON(*p.Settings)
	}
}

// Columns returns the set fields of p keyed by database column.
func (p ProjectPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.Theme != nil {
		cols["theme"] = *p.Theme
	}
	if p.Outline != nil {
		cols["outline"] = *p.Outline
	}
	if p.Script != nil {
		cols["script"] = *p.Script
	}
	if p.Settings != nil {
		cols["settings"] = *p.Settings
	}
	return cols
}

// EmptySettings is stored when a project is created without settings.
func EmptySettings() datatypes.JSON {
	return datatypes.JSON("{}")
}

func cloneJSON(j datatypes.JSON) datatypes.JSON {
	if j == nil {
		return nil
	}
	out := make(datatypes.JSON, len(j))
	copy(out, j)
	return out
}

// Clone returns a deep copy of the project.
func (p Project) Clone() Project {
	p.Settings = cloneJSON(p.Settings)
	p.Scenes = nil
	return p
}
