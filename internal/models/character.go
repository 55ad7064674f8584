package models

import "time"

// Character roles.
const (
	RoleProtagonist = "protagonist"
	RoleSupporting  = "supporting"
)

// Character is a reusable cast member owned by a user.
type Character struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID      string    `json:"userId" gorm:"type:varchar(64);not null;index"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	Role        string    `json:"role" gorm:"type:varchar(32);not null;default:supporting"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CharacterPatch carries a partial character update. Nil fields are left unchanged.
type CharacterPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageUrl"`
	Role        *string `json:"role"`
}

// ValidRole reports whether r is one of the known character roles.
func ValidRole(r string) bool {
	return r == RoleProtagonist || r == RoleSupporting
}

func (p CharacterPatch) Apply(c *Character) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.ImageURL != nil {
		c.ImageURL = *p.ImageURL
	}
	if p.Role != nil {
		c.Role = *p.Role
	}
}

func (p CharacterPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.ImageURL != nil {
		cols["image_url"] = *p.ImageURL
	}
	if p.Role != nil {
		cols["role"] = *p.Role
	}
	return cols
}
