package models

import "time"

// DefaultSceneDuration is used when a scene is created without a duration.
const DefaultSceneDuration = 5

// Scene is one ordered shot of a project.
type Scene struct {
	ID                   string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	ProjectID            string    `json:"projectId" gorm:"type:varchar(64);not null;index"`
	OrderNum             int       `json:"orderNum" gorm:"not null"`
	Duration             int       `json:"duration" gorm:"not null;default:5"`
	Description          string    `json:"description"`
	CharacterDescription string    `json:"characterDescription"`
	CameraMovement       string    `json:"cameraMovement"`
	Dialogue             string    `json:"dialogue"`
	BackgroundMusic      string    `json:"backgroundMusic"`
	EmotionTag           string    `json:"emotionTag"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// ScenePatch carries a partial scene update. Nil fields are left unchanged.
type ScenePatch struct {
	OrderNum             *int    `json:"orderNum"`
	Duration             *int    `json:"duration"`
	Description          *string `json:"description"`
	CharacterDescription *string `json:"characterDescription"`
	CameraMovement       *string `json:"cameraMovement"`
	Dialogue             *string `json:"dialogue"`
	BackgroundMusic      *string `json:"backgroundMusic"`
	EmotionTag           *string `json:"emotionTag"`
}

func (p ScenePatch) Apply(scene *Scene) {
	if p.OrderNum != nil {
		scene.OrderNum = *p.OrderNum
	}
	if p.Duration != nil {
		scene.Duration = *p.Duration
	}
	if p.Description != nil {
		scene.Description = *p.Description
	}
	if p.CharacterDescription != nil {
		scene.CharacterDescription = *p.CharacterDescription
	}
	if p.CameraMovement != nil {
		scene.CameraMovement = *p.CameraMovement
	}
	if p.Dialogue != nil {
		scene.Dialogue = *p.Dialogue
	}
	if p.BackgroundMusic != nil {
		scene.BackgroundMusic = *p.BackgroundMusic
	}
	if p.EmotionTag != nil {
		scene.EmotionTag = *p.EmotionTag
	}
}

func (p ScenePatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.OrderNum != nil {
		cols["order_num"] = *p.OrderNum
	}
	if p.Duration != nil {
		cols["duration"] = *p.Duration
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.CharacterDescription != nil {
		cols["character_description"] = *p.CharacterDescription
	}
	if p.CameraMovement != nil {
		cols["camera_movement"] = *p.CameraMovement
	}
	if p.Dialogue != nil {
		cols["dialogue"] = *p.Dialogue
	}
	if p.BackgroundMusic != nil {
		cols["background_music"] = *p.BackgroundMusic
	}
	if p.EmotionTag != nil {
		cols["emotion_tag"] = *p.EmotionTag
	}
	return cols
}
