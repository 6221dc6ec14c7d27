package models

import "time"

type Shop struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     uint      `gorm:"index;not null" json:"owner_id"`
	Owner       *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Name        string    `gorm:"not null;uniqueIndex:idx_shop_name_city" json:"name"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	City        string    `gorm:"index;uniqueIndex:idx_shop_name_city" json:"city"`
	Country     string    `gorm:"not null;default:TN" json:"country"`
	IsActive    bool      `gorm:"index;not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
