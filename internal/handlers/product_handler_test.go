package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Keoroanthony/shopnow-api/internal/models"
)

func TestCreateProductHandler(t *testing.T) {
	env := newTestEnv(t)
	admin := env.staff("admin@example.com")
	owner := env.user("owner@example.com", models.RoleShopOwner)
	rival := env.user("rival@example.com", models.RoleShopOwner)
	shop := env.shop(owner, "Medina Crafts")
	category := models.Category{Name: "Decor"}
	require.NoError(t, env.db.Create(&category).Error)

	t.Run("Shop owner adds a product to their shop", func(t *testing.T) {
		body := map[string]any{"name": "Lantern", "price": "24.90", "stock": 3, "category_id": category.ID, "shop_id": shop.ID}
		w := env.do(http.MethodPost, "/api/products", body, owner)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		product := decode[models.Product](t, w)
		assert.Equal(t, "24.9", product.Price.String())
		assert.Equal(t, models.ProductAvailable, product.Status)
		require.NotNil(t, product.Category)
		assert.Equal(t, "Decor", product.Category.Name)
	})

	t.Run("Out of stock products are unavailable", func(t *testing.T) {
		body := map[string]any{"name": "Tray", "price": "5", "stock": 0, "shop_id": shop.ID}
		w := env.do(http.MethodPost, "/api/products", body, admin)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, models.ProductUnavailable, decode[models.Product](t, w).Status)
	})

	t.Run("Other shop owners are refused", func(t *testing.T) {
		body := map[string]any{"name": "Fake", "price": "1", "stock": 1, "shop_id": shop.ID}
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/api/products", body, rival).Code)
	})

	t.Run("Validation", func(t *testing.T) {
		cases := map[string]map[string]any{
			"missing name":   {"price": "1", "stock": 1},
			"zero price":     {"name": "Free", "price": "0", "stock": 1},
			"negative stock": {"name": "Debt", "price": "1", "stock": -1},
			"bad price":      {"name": "Odd", "price": "one", "stock": 1},
			"sub-cent price": {"name": "Dust", "price": "0.005", "stock": 1},
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/products", body, admin).Code)
			})
		}
	})

	t.Run("Unknown category or shop", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/products", map[string]any{"name": "X", "price": "1", "category_id": 999}, admin)
		assert.Equal(t, http.StatusNotFound, w.Code)
		w = env.do(http.MethodPost, "/api/products", map[string]any{"name": "X", "price": "1", "shop_id": 999}, admin)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestProductReadAndWrite(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user("owner@example.com", models.RoleShopOwner)
	buyer := env.user("buyer@example.com", models.RoleCustomer)
	shop := env.shop(owner, "Medina Crafts")

	parent := models.Category{Name: "Home"}
	require.NoError(t, env.db.Create(&parent).Error)
	child := models.Category{Name: "Kitchen", ParentID: &parent.ID}
	require.NoError(t, env.db.Create(&child).Error)

	a := env.product("Pan", "10", 2, shop)
	b := env.product("Pot", "20", 0, shop)
	require.NoError(t, env.db.Model(a).Update("category_id", parent.ID).Error)
	require.NoError(t, env.db.Model(b).Update("category_id", child.ID).Error)

	t.Run("List filters", func(t *testing.T) {
		w := env.do(http.MethodGet, fmt.Sprintf("/api/products?category_id=%d", parent.ID), nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]models.Product](t, w), 2)

		w = env.do(http.MethodGet, "/api/products?available=true", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[[]models.Product](t, w)
		require.Len(t, list, 1)
		assert.Equal(t, "Pan", list[0].Name)

		w = env.do(http.MethodGet, fmt.Sprintf("/api/products?shop_id=%d&limit=1", shop.ID), nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]models.Product](t, w), 1)

		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/products?limit=-3", nil, nil).Code)
	})

	t.Run("Average price covers the subtree", func(t *testing.T) {
		w := env.do(http.MethodGet, fmt.Sprintf("/api/products/average?category_id=%d", parent.ID), nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "15.00", decode[map[string]any](t, w)["average_price"])

		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/products/average", nil, nil).Code)
	})

	t.Run("Get", func(t *testing.T) {
		w := env.do(http.MethodGet, fmt.Sprintf("/api/products/%d", a.ID), nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Pan", decode[models.Product](t, w).Name)

		w = env.do(http.MethodGet, "/api/products/999", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Product not found with ID: 999", errorMessage(t, w))
	})

	t.Run("Update derives availability from stock", func(t *testing.T) {
		path := fmt.Sprintf("/api/products/%d", b.ID)
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodPatch, path, map[string]any{"stock": 5}, buyer).Code)

		w := env.do(http.MethodPatch, path, map[string]any{"stock": 5, "price": "18.50"}, owner)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got := decode[models.Product](t, w)
		assert.Equal(t, 5, got.Stock)
		assert.Equal(t, models.ProductAvailable, got.Status)
		assert.True(t, decimal.RequireFromString("18.5").Equal(got.Price))

		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPatch, path, map[string]any{"price": "-1"}, owner).Code)
		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPatch, path, map[string]any{"price": "18.505"}, owner).Code)
	})

	t.Run("Delete is refused while orders reference the product", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/orders/", orderPayload(line(a, 1, "10")), buyer)
		require.Equal(t, http.StatusCreated, w.Code)

		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodDelete, fmt.Sprintf("/api/products/%d", a.ID), nil, owner).Code)
		assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, fmt.Sprintf("/api/products/%d", b.ID), nil, owner).Code)
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, fmt.Sprintf("/api/products/%d", b.ID), nil, nil).Code)
	})
}
