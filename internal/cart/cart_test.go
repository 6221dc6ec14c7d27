package cart_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Keoroanthony/shopnow-api/internal/apperr"
	"github.com/Keoroanthony/shopnow-api/internal/cache"
	"github.com/Keoroanthony/shopnow-api/internal/cart"
	"github.com/Keoroanthony/shopnow-api/internal/db/dbtest"
	"github.com/Keoroanthony/shopnow-api/internal/models"
)

type fixture struct {
	db   *gorm.DB
	svc  *cart.Service
	mr   *miniredis.Miniredis
	user *models.User
	shop *models.Shop
	ctx  context.Context
}

func setup(t *testing.T) *fixture {
	testDB := dbtest.Open(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	user := &models.User{Name: "buyer", Email: "buyer@example.com", Role: models.RoleCustomer}
	require.NoError(t, testDB.Create(user).Error)
	owner := &models.User{Name: "owner", Email: "owner@example.com", Role: models.RoleShopOwner}
	require.NoError(t, testDB.Create(owner).Error)
	shop := &models.Shop{OwnerID: owner.ID, Name: "Shop", City: "Tunis", IsActive: true}
	require.NoError(t, testDB.Create(shop).Error)

	return &fixture{
		db:   testDB,
		svc:  cart.NewService(testDB, cache.NewRedisCache[cart.View](client, "cart", time.Minute), zap.NewNop()),
		mr:   mr,
		user: user,
		shop: shop,
		ctx:  context.Background(),
	}
}

func (f *fixture) product(t *testing.T, name, price string, stock int) *models.Product {
	p := &models.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock, ShopID: &f.shop.ID}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func TestCartItems(t *testing.T) {
	f := setup(t)
	pen := f.product(t, "Pen", "1.25", 10)
	ink := f.product(t, "Ink", "4.00", 3)
	gone := f.product(t, "Gone", "2.00", 0)

	t.Run("Empty cart is created on first access and cached", func(t *testing.T) {
		view, err := f.svc.Get(f.ctx, f.user.ID)
		require.NoError(t, err)
		assert.Empty(t, view.Items)
		assert.True(t, view.TotalPrice.IsZero())
		assert.True(t, f.mr.Exists("cart:"+itoa(f.user.ID)))
	})

	t.Run("Adding merges lines and caps at stock", func(t *testing.T) {
		_, err := f.svc.AddItem(f.ctx, f.user.ID, ink.ID, 2)
		require.NoError(t, err)
		view, err := f.svc.AddItem(f.ctx, f.user.ID, ink.ID, 5)
		require.NoError(t, err)

		require.Len(t, view.Items, 1)
		assert.Equal(t, 3, view.Items[0].Quantity)
		assert.Equal(t, "12", view.TotalPrice.String())
	})

	t.Run("Adding rejects missing and out of stock products", func(t *testing.T) {
		_, err := f.svc.AddItem(f.ctx, f.user.ID, 9999, 1)
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = f.svc.AddItem(f.ctx, f.user.ID, gone.ID, 1)
		assert.ErrorIs(t, err, apperr.ErrValidation)

		_, err = f.svc.AddItem(f.ctx, f.user.ID, pen.ID, 0)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("Totals reflect every line", func(t *testing.T) {
		_, err := f.svc.AddItem(f.ctx, f.user.ID, pen.ID, 4)
		require.NoError(t, err)

		totals, err := f.svc.GetTotals(f.ctx, f.user.ID)
		require.NoError(t, err)
		assert.Equal(t, 7, totals.TotalItems)
		assert.Equal(t, 2, totals.ItemsCount)
		assert.Equal(t, "17", totals.TotalPrice.String())
	})

	t.Run("Update checks stock and removes on zero", func(t *testing.T) {
		view, err := f.svc.Get(f.ctx, f.user.ID)
		require.NoError(t, err)
		penLine := lineFor(t, view, pen.ID)

		_, err = f.svc.UpdateItem(f.ctx, f.user.ID, penLine.ID, 11)
		assert.ErrorIs(t, err, apperr.ErrValidation)

		view, err = f.svc.UpdateItem(f.ctx, f.user.ID, penLine.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, lineFor(t, view, pen.ID).Quantity)

		view, err = f.svc.UpdateItem(f.ctx, f.user.ID, penLine.ID, 0)
		require.NoError(t, err)
		assert.Len(t, view.Items, 1)
	})

	t.Run("Items of other carts are not found", func(t *testing.T) {
		_, err := f.svc.RemoveItem(f.ctx, f.user.ID+1000, 1)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("Remove and clear", func(t *testing.T) {
		view, err := f.svc.Get(f.ctx, f.user.ID)
		require.NoError(t, err)
		view, err = f.svc.RemoveItem(f.ctx, f.user.ID, view.Items[0].ID)
		require.NoError(t, err)
		assert.Empty(t, view.Items)

		_, err = f.svc.AddItem(f.ctx, f.user.ID, pen.ID, 1)
		require.NoError(t, err)
		view, err = f.svc.Clear(f.ctx, f.user.ID)
		require.NoError(t, err)
		assert.Empty(t, view.Items)
	})
}

func TestCheckout(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Notebook", "9.99", 5)

	t.Run("Empty cart cannot be checked out", func(t *testing.T) {
		_, err := f.svc.Checkout(f.ctx, f.user, cart.CheckoutRequest{ShippingAddress: "1 Main St"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("Checkout uses live prices and empties the cart", func(t *testing.T) {
		_, err := f.svc.AddItem(f.ctx, f.user.ID, p.ID, 2)
		require.NoError(t, err)
		require.NoError(t, f.db.Model(p).Update("price", decimal.RequireFromString("8.50")).Error)

		order, err := f.svc.Checkout(f.ctx, f.user, cart.CheckoutRequest{
			ShippingAddress: "1 Main St",
			PaymentMethod:   models.PaymentCredit,
		})
		require.NoError(t, err)
		assert.Equal(t, "17", order.TotalPrice.String())
		assert.Equal(t, models.CreditRequested, order.CreditStatus)

		view, err := f.svc.Get(f.ctx, f.user.ID)
		require.NoError(t, err)
		assert.Empty(t, view.Items)

		var stored models.Product
		require.NoError(t, f.db.First(&stored, p.ID).Error)
		assert.Equal(t, 3, stored.Stock)
	})

	t.Run("Failed placement keeps the cart", func(t *testing.T) {
		_, err := f.svc.AddItem(f.ctx, f.user.ID, p.ID, 1)
		require.NoError(t, err)

		_, err = f.svc.Checkout(f.ctx, f.user, cart.CheckoutRequest{})
		assert.ErrorIs(t, err, apperr.ErrValidation)

		view, err := f.svc.Get(f.ctx, f.user.ID)
		require.NoError(t, err)
		assert.Len(t, view.Items, 1)
	})
}

func TestCheckoutKeepsItemsAddedDuringPlacement(t *testing.T) {
	f := setup(t)
	ordered := f.product(t, "Pen", "1.20", 4)
	late := f.product(t, "Ink", "3.00", 4)

	_, err := f.svc.AddItem(f.ctx, f.user.ID, ordered.ID, 1)
	require.NoError(t, err)
	var c models.Cart
	require.NoError(t, f.db.Where("user_id = ?", f.user.ID).First(&c).Error)

	// Another request adds to the cart while the order row is being written.
	const hook = "test:add_cart_item"
	fired := false
	require.NoError(t, f.db.Callback().Create().After("gorm:create").Register(hook, func(tx *gorm.DB) {
		if fired || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "orders" {
			return
		}
		fired = true
		item := &models.CartItem{CartID: c.ID, ProductID: late.ID, Quantity: 2}
		require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Create(item).Error)
	}))
	t.Cleanup(func() { _ = f.db.Callback().Create().Remove(hook) })

	order, err := f.svc.Checkout(f.ctx, f.user, cart.CheckoutRequest{ShippingAddress: "1 Main St"})
	require.NoError(t, err)
	require.True(t, fired)
	assert.Len(t, order.Items, 1)

	view, err := f.svc.Get(f.ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, late.ID, view.Items[0].ProductID)
	assert.Equal(t, 2, view.Items[0].Quantity)
}

func TestServiceWithoutCache(t *testing.T) {
	testDB := dbtest.Open(t)
	user := &models.User{Name: "u", Email: "u@example.com"}
	require.NoError(t, testDB.Create(user).Error)

	svc := cart.NewService(testDB, nil, zap.NewNop())
	view, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, view.UserID)
}

func lineFor(t *testing.T, view *cart.View, productID uint) cart.ItemView {
	t.Helper()
	for _, it := range view.Items {
		if it.ProductID == productID {
			return it
		}
	}
	t.Fatalf("product %d not in cart", productID)
	return cart.ItemView{}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
