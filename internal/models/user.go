// Package models defines domain models for the Maplénou order engine.
package models

import (
	"time"
)

// Roles carried by the authenticated principal and stored on users.
const (
	RoleClient = "client"
	RoleVendor = "vendeur"
	RoleAdmin  = "admin"
)

// User represents a registered account (client, vendor or admin).
type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Nom       string `gorm:"size:100;not null" json:"nom"`
	Prenom    string `gorm:"size:100" json:"prenom"`
	Email     string `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Telephone string `gorm:"size:30" json:"telephone,omitempty"`
	Role      string `gorm:"size:20;not null;index;default:client" json:"role"`
	Institut  string `gorm:"size:100;index" json:"institut"`
	Parcours  string `gorm:"size:100" json:"parcours"`

	// Gamification state
	StreakConsecutif int     `gorm:"not null;default:0" json:"streak_consecutif"`
	BadgeNiveau      int     `gorm:"not null;default:0" json:"badge_niveau"`
	DernierAchatDate *string `gorm:"size:10" json:"dernier_achat_date"` // day key of the last accepted order
	EligibleLoterie  bool    `gorm:"not null;default:false" json:"eligible_loterie"`
	Version          int     `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "utilisateurs"
}

// IsVendor reports whether the user is a vendor.
func (u *User) IsVendor() bool {
	return u.Role == RoleVendor
}

// FullName returns "Prenom Nom", or Nom alone.
func (u *User) FullName() string {
	if u.Prenom == "" {
		return u.Nom
	}
	return u.Prenom + " " + u.Nom
}
