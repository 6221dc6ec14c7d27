// Package permissions resolves what a caller may do with a resource.
//
// Every authorization decision in the service goes through Resolve so that
// ownership rules live in one place.
package permissions

import "github.com/Keoroanthony/shopnow-api/internal/models"

// Capabilities is the set of actions a caller holds on one resource.
type Capabilities struct {
	Read   bool
	Write  bool
	Decide bool
}

var (
	none = Capabilities{}
	all  = Capabilities{Read: true, Write: true, Decide: true}
)

// Resolve returns the capabilities of caller on resource. caller may be
// nil for anonymous access. Relations the rules depend on (Order.Shop,
// Product.Shop) must be loaded by the caller; a missing relation is
// treated as "no shop".
func Resolve(caller *models.User, resource any) Capabilities {
	switch r := resource.(type) {
	case *models.Order:
		return resolveOrder(caller, r)
	case *models.Shop:
		return resolveShop(caller, r)
	case *models.Product:
		return resolveProduct(caller, r)
	case *models.Review:
		return resolveReview(caller, r)
	}
	return none
}

func resolveOrder(caller *models.User, o *models.Order) Capabilities {
	if caller == nil || o == nil {
		return none
	}
	if caller.IsAdmin() {
		return all
	}
	var caps Capabilities
	if o.UserID == caller.ID {
		caps.Read = true
		caps.Write = true
	}
	if ownsShop(caller, o.Shop) {
		caps.Read = true
		caps.Decide = true
	}
	return caps
}

func resolveShop(caller *models.User, s *models.Shop) Capabilities {
	if s == nil {
		return none
	}
	if caller.IsAdmin() || ownsShop(caller, s) {
		return all
	}
	return Capabilities{Read: true}
}

func resolveProduct(caller *models.User, p *models.Product) Capabilities {
	if p == nil {
		return none
	}
	caps := Capabilities{Read: true}
	if caller.IsAdmin() || ownsShop(caller, p.Shop) {
		caps.Write = true
	}
	return caps
}

func resolveReview(caller *models.User, r *models.Review) Capabilities {
	if r == nil {
		return none
	}
	caps := Capabilities{Read: true}
	if caller != nil && (caller.IsAdmin() || r.UserID == caller.ID) {
		caps.Write = true
	}
	return caps
}

// CanManageShops reports whether caller may create shops and list orders
// placed with shops.
func CanManageShops(caller *models.User) bool {
	return caller.IsAdmin() || caller.IsShopOwner()
}

func ownsShop(caller *models.User, s *models.Shop) bool {
	return caller != nil && s != nil && s.OwnerID == caller.ID
}
