package models

import (
	"time"
)

// BadgeDefinition maps a tier to the consecutive days required to reach it.
type BadgeDefinition struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Niveau      int       `gorm:"uniqueIndex;not null" json:"niveau"`
	Nom         string    `gorm:"size:100;not null" json:"nom"`
	JoursRequis int       `gorm:"not null" json:"jours_requis"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for BadgeDefinition model.
func (BadgeDefinition) TableName() string {
	return "badges_definitions"
}
