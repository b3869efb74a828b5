package models

import (
	"time"
)

// DailySales is the end-of-day snapshot of one vendor's activity.
type DailySales struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DateJour     string    `gorm:"size:10;not null;uniqueIndex:idx_ventes_jour_vendeur" json:"date_jour"`
	VendeurID    uint      `gorm:"not null;uniqueIndex:idx_ventes_jour_vendeur" json:"vendeur_id"`
	Accepted     int       `gorm:"column:commandes_traitees;not null;default:0" json:"commandes_traitees"`
	Rejected     int       `gorm:"column:commandes_annulees;not null;default:0" json:"commandes_annulees"`
	Pending      int       `gorm:"column:commandes_en_attente;not null;default:0" json:"commandes_en_attente"`
	Revenue      int64     `gorm:"column:chiffre_affaires;not null;default:0" json:"chiffre_affaires"`
	StockAlloue  int       `gorm:"not null;default:0" json:"stock_alloue"`
	StockRestant int       `gorm:"not null;default:0" json:"stock_restant"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for DailySales model.
func (DailySales) TableName() string {
	return "ventes_journalieres"
}
