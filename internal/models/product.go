package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	ProductAvailable   = "available"
	ProductUnavailable = "unavailable"
)

// Product availability is not stored: Status is derived from Stock every
// time a row is loaded or written, so it cannot disagree with the stock.
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	Status      string          `gorm:"-" json:"status"`
	ImageURL    string          `json:"image_url"`
	ShopID      *uint           `gorm:"index" json:"shop_id"`
	Shop        *Shop           `gorm:"foreignKey:ShopID;constraint:OnDelete:CASCADE" json:"shop,omitempty"`
	CategoryID  *uint           `gorm:"index" json:"category_id"`
	Category    *Category       `gorm:"constraint:OnDelete:SET NULL" json:"category,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Product) Available() bool {
	return p.Stock > 0
}

func (p *Product) refreshStatus() {
	if p.Available() {
		p.Status = ProductAvailable
	} else {
		p.Status = ProductUnavailable
	}
}

func (p *Product) AfterFind(tx *gorm.DB) error {
	p.refreshStatus()
	return nil
}

func (p *Product) AfterSave(tx *gorm.DB) error {
	p.refreshStatus()
	return nil
}
