package models

import (
	"time"
)

// VendorAllocation is the stock ledger of one vendor for one calendar day.
// 0 <= StockRestant <= StockAlloue holds at rest.
type VendorAllocation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	VendeurID    uint      `gorm:"not null;uniqueIndex:idx_allocations_vendeur_jour" json:"vendeur_id"`
	Vendeur      *User     `gorm:"foreignKey:VendeurID" json:"vendeur,omitempty"`
	DateJour     string    `gorm:"size:10;not null;uniqueIndex:idx_allocations_vendeur_jour;index" json:"date_jour"`
	StockAlloue  int       `gorm:"not null;default:0" json:"stock_alloue"`
	StockRestant int       `gorm:"not null;default:0" json:"stock_restant"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for VendorAllocation model.
func (VendorAllocation) TableName() string {
	return "allocations_vendeurs"
}
