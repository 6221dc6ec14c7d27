package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Keoroanthony/shopnow-api/internal/apperr"
	"github.com/Keoroanthony/shopnow-api/internal/auth"
	"github.com/Keoroanthony/shopnow-api/internal/db"
	"github.com/Keoroanthony/shopnow-api/internal/models"
)

type WishlistRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
}

// GET /api/wishlist
func ListWishlist(c *gin.Context) {
	items := []models.WishlistItem{}
	err := db.DB.WithContext(c.Request.Context()).
		Preload("Product").
		Where("user_id = ?", auth.CurrentUser(c).ID).
		Order("added_at DESC, id DESC").
		Find(&items).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// POST /api/wishlist
func AddToWishlist(c *gin.Context) {
	var req WishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id is required"})
		return
	}

	ctx := c.Request.Context()
	product, err := loadProduct(ctx, req.ProductID)
	if err != nil {
		respondError(c, err)
		return
	}

	item := models.WishlistItem{UserID: auth.CurrentUser(c).ID, ProductID: product.ID}
	err = db.DB.WithContext(ctx).Omit("Product").Create(&item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(c, apperr.Conflict("product %d is already in your wishlist", product.ID))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	item.Product = product
	c.JSON(http.StatusCreated, item)
}

// DELETE /api/wishlist/:product_id
func RemoveFromWishlist(c *gin.Context) {
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	res := db.DB.WithContext(c.Request.Context()).
		Where("user_id = ? AND product_id = ?", auth.CurrentUser(c).ID, productID).
		Delete(&models.WishlistItem{})
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, apperr.NotFound("product %d is not in your wishlist", productID))
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/wishlist
func ClearWishlist(c *gin.Context) {
	res := db.DB.WithContext(c.Request.Context()).
		Where("user_id = ?", auth.CurrentUser(c).ID).
		Delete(&models.WishlistItem{})
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": res.RowsAffected})
}

// GET /api/wishlist/check/:product_id
func CheckWishlist(c *gin.Context) {
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	var n int64
	err := db.DB.WithContext(c.Request.Context()).
		Model(&models.WishlistItem{}).
		Where("user_id = ? AND product_id = ?", auth.CurrentUser(c).ID, productID).
		Count(&n).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_id": productID, "in_wishlist": n > 0})
}
