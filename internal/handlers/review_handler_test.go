package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Keoroanthony/shopnow-api/internal/models"
)

func TestReviewHandlers(t *testing.T) {
	env := newTestEnv(t)
	author := env.user("author@example.com", models.RoleCustomer)
	other := env.user("other@example.com", models.RoleCustomer)
	admin := env.staff("admin@example.com")
	product := env.product("Lantern", "20", 5, nil)
	path := fmt.Sprintf("/api/products/%d/reviews", product.ID)

	var review models.Review

	t.Run("Create", func(t *testing.T) {
		w := env.do(http.MethodPost, path, map[string]any{"rating": 4, "title": "Lovely", "comment": "Warm light"}, author)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		review = decode[models.Review](t, w)
		assert.Equal(t, 4, review.Rating)
		assert.Equal(t, author.ID, review.UserID)

		assert.Equal(t, http.StatusConflict, env.do(http.MethodPost, path, map[string]any{"rating": 5}, author).Code)
		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, path, map[string]any{"rating": 6}, other).Code)
		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, path, map[string]any{"rating": 0}, other).Code)
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/products/999/reviews", map[string]any{"rating": 3}, other).Code)
		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, path, map[string]any{"rating": 3}, nil).Code)
	})

	t.Run("List is public", func(t *testing.T) {
		w := env.do(http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		list := decode[[]models.Review](t, w)
		require.Len(t, list, 1)
		require.NotNil(t, list[0].User)
		assert.Equal(t, author.Email, list[0].User.Email)
	})

	t.Run("Only the author edits", func(t *testing.T) {
		reviewPath := fmt.Sprintf("/api/reviews/%d", review.ID)
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodPatch, reviewPath, map[string]any{"rating": 1}, other).Code)
		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPatch, reviewPath, map[string]any{"rating": 9}, author).Code)

		w := env.do(http.MethodPatch, reviewPath, map[string]any{"rating": 5}, author)
		require.Equal(t, http.StatusOK, w.Code)
		got := decode[models.Review](t, w)
		assert.Equal(t, 5, got.Rating)
		assert.Equal(t, "Lovely", got.Title)
	})

	t.Run("Delete", func(t *testing.T) {
		reviewPath := fmt.Sprintf("/api/reviews/%d", review.ID)
		assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, reviewPath, nil, other).Code)
		assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, reviewPath, nil, admin).Code)
		assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, reviewPath, nil, author).Code)
	})
}

func TestWishlistHandlers(t *testing.T) {
	env := newTestEnv(t)
	user := env.user("user@example.com", models.RoleCustomer)
	a := env.product("Lantern", "20", 5, nil)
	b := env.product("Rug", "90", 1, nil)

	check := func(p *models.Product) bool {
		w := env.do(http.MethodGet, fmt.Sprintf("/api/wishlist/check/%d", p.ID), nil, user)
		require.Equal(t, http.StatusOK, w.Code)
		return decode[map[string]any](t, w)["in_wishlist"].(bool)
	}

	assert.False(t, check(a))
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/wishlist", map[string]any{"product_id": a.ID}, user).Code)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/wishlist", map[string]any{"product_id": b.ID}, user).Code)
	assert.Equal(t, http.StatusConflict, env.do(http.MethodPost, "/api/wishlist", map[string]any{"product_id": a.ID}, user).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/wishlist", map[string]any{"product_id": 999}, user).Code)
	assert.True(t, check(a))

	w := env.do(http.MethodGet, "/api/wishlist", nil, user)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["count"])

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, fmt.Sprintf("/api/wishlist/%d", a.ID), nil, user).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, fmt.Sprintf("/api/wishlist/%d", a.ID), nil, user).Code)
	assert.False(t, check(a))

	w = env.do(http.MethodDelete, "/api/wishlist", nil, user)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["removed"])
	assert.False(t, check(b))
}
