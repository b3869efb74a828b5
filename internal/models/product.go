package models

import (
	"time"
)

// ProductActive is the only orderable product status.
const ProductActive = "actif"

// Product is the single sellable item. The daily counters are the legacy
// global stock, used only when no vendor can be resolved.
type Product struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Nom                string    `gorm:"size:150;not null" json:"nom"`
	Description        string    `gorm:"type:text" json:"description"`
	Prix               int64     `gorm:"not null" json:"prix"`
	Statut             string    `gorm:"size:20;not null;default:actif" json:"statut"`
	StockTotalDuJour   int       `gorm:"not null;default:0" json:"stock_total_du_jour"`
	StockRestantDuJour int       `gorm:"not null;default:0" json:"stock_restant_du_jour"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TableName specifies the table name for Product model.
func (Product) TableName() string {
	return "produits"
}

// IsActive reports whether the product can be ordered.
func (p *Product) IsActive() bool {
	return p.Statut == ProductActive
}
