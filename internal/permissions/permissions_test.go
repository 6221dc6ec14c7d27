package permissions_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Keoroanthony/shopnow-api/internal/models"
	"github.com/Keoroanthony/shopnow-api/internal/permissions"
)

func TestResolveOrder(t *testing.T) {
	customer := &models.User{ID: 1, Role: models.RoleCustomer}
	owner := &models.User{ID: 2, Role: models.RoleShopOwner}
	otherOwner := &models.User{ID: 3, Role: models.RoleShopOwner}
	staff := &models.User{ID: 4, IsStaff: true}
	admin := &models.User{ID: 5, Role: models.RoleAdmin}

	shop := &models.Shop{ID: 10, OwnerID: owner.ID}
	order := &models.Order{ID: 100, UserID: customer.ID, Shop: shop}

	tests := []struct {
		name   string
		caller *models.User
		want   permissions.Capabilities
	}{
		{"order owner", customer, permissions.Capabilities{Read: true, Write: true}},
		{"shop owner", owner, permissions.Capabilities{Read: true, Decide: true}},
		{"unrelated shop owner", otherOwner, permissions.Capabilities{}},
		{"staff flag", staff, permissions.Capabilities{Read: true, Write: true, Decide: true}},
		{"admin role", admin, permissions.Capabilities{Read: true, Write: true, Decide: true}},
		{"anonymous", nil, permissions.Capabilities{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, permissions.Resolve(tt.caller, order))
		})
	}

	t.Run("order without shop grants nothing to shop owners", func(t *testing.T) {
		noShop := &models.Order{ID: 101, UserID: customer.ID}
		assert.Equal(t, permissions.Capabilities{}, permissions.Resolve(owner, noShop))
	})
}

func TestResolveShopProductReview(t *testing.T) {
	owner := &models.User{ID: 2, Role: models.RoleShopOwner}
	stranger := &models.User{ID: 7, Role: models.RoleCustomer}
	staff := &models.User{ID: 4, IsStaff: true}
	shop := &models.Shop{ID: 10, OwnerID: owner.ID}

	t.Run("shop", func(t *testing.T) {
		assert.True(t, permissions.Resolve(owner, shop).Write)
		assert.True(t, permissions.Resolve(staff, shop).Decide)
		assert.Equal(t, permissions.Capabilities{Read: true}, permissions.Resolve(stranger, shop))
		assert.True(t, permissions.Resolve(nil, shop).Read)
	})

	t.Run("product", func(t *testing.T) {
		p := &models.Product{ID: 1, Shop: shop}
		assert.True(t, permissions.Resolve(owner, p).Write)
		assert.True(t, permissions.Resolve(staff, p).Write)
		assert.False(t, permissions.Resolve(stranger, p).Write)
		assert.False(t, permissions.Resolve(owner, &models.Product{ID: 2}).Write)
	})

	t.Run("review", func(t *testing.T) {
		r := &models.Review{ID: 1, UserID: stranger.ID}
		assert.True(t, permissions.Resolve(stranger, r).Write)
		assert.True(t, permissions.Resolve(staff, r).Write)
		assert.False(t, permissions.Resolve(owner, r).Write)
		assert.True(t, permissions.Resolve(nil, r).Read)
	})

	t.Run("unknown resource", func(t *testing.T) {
		assert.Equal(t, permissions.Capabilities{}, permissions.Resolve(staff, "nope"))
	})

	t.Run("shop management", func(t *testing.T) {
		assert.True(t, permissions.CanManageShops(owner))
		assert.True(t, permissions.CanManageShops(staff))
		assert.False(t, permissions.CanManageShops(stranger))
		assert.False(t, permissions.CanManageShops(nil))
	})
}
