package models

import (
	"time"
)

// Order statuses. en_attente is the only non-terminal one.
const (
	OrderPending  = "en_attente"
	OrderAccepted = "traitee"
	OrderRejected = "annule"
)

// Order actions accepted by the vendor processing endpoint.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

// Order is one user's request for the day. At most one row exists per
// (utilisateur_id, jour_commande), whatever its status.
type Order struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UtilisateurID  uint       `gorm:"not null;uniqueIndex:idx_commandes_utilisateur_jour" json:"utilisateur_id"`
	Utilisateur    *User      `gorm:"foreignKey:UtilisateurID" json:"utilisateur,omitempty"`
	VendeurID      *uint      `gorm:"index" json:"vendeur_id"`
	Quantite       int        `gorm:"not null;default:1" json:"quantite"`
	PrixUnitaire   int64      `gorm:"not null" json:"prix_unitaire"`
	PrixTotal      int64      `gorm:"not null" json:"prix_total"`
	Statut         string     `gorm:"size:20;not null;index;default:en_attente" json:"statut"`
	JourCommande   string     `gorm:"size:10;not null;uniqueIndex:idx_commandes_utilisateur_jour;index" json:"jour_commande"`
	DateCommande   time.Time  `gorm:"not null" json:"date_commande"`
	DateTraitement *time.Time `json:"date_traitement"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Order model.
func (Order) TableName() string {
	return "commandes"
}

// IsPending reports whether the order can still be processed.
func (o *Order) IsPending() bool {
	return o.Statut == OrderPending
}
