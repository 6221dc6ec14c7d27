package models

import "time"

type Role string

const (
	RoleCustomer  Role = "customer"
	RoleShopOwner Role = "shop_owner"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleShopOwner, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Phone     string    `json:"phone"`
	OIDCID    *string   `gorm:"column:oidc_id;uniqueIndex" json:"-"` // OpenID Connect subject
	Role      Role      `gorm:"type:varchar(20);not null;default:customer" json:"role"`
	IsStaff   bool      `gorm:"not null;default:false" json:"is_staff"`
	CreatedAt time.Time `json:"created_at"`
}

// IsShopOwner reports whether u may own shops.
func (u *User) IsShopOwner() bool {
	return u != nil && u.Role == RoleShopOwner
}

// IsAdmin reports staff-level access, either by flag or by role.
func (u *User) IsAdmin() bool {
	return u != nil && (u.IsStaff || u.Role == RoleAdmin)
}
