package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Keoroanthony/shopnow-api/internal/apperr"
	"github.com/Keoroanthony/shopnow-api/internal/auth"
	"github.com/Keoroanthony/shopnow-api/internal/db"
	"github.com/Keoroanthony/shopnow-api/internal/models"
	"github.com/Keoroanthony/shopnow-api/internal/permissions"
)

type CreateShopRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	// OwnerID is honoured for staff only.
	OwnerID *uint `json:"owner_id"`
}

type UpdateShopRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	Country     *string `json:"country"`
	OwnerID     *uint   `json:"owner_id"`
}

// GET /api/shops?owner_id=&city=
func ListShops(c *gin.Context) {
	ownerID, ok := queryID(c, "owner_id")
	if !ok {
		return
	}
	q := db.DB.WithContext(c.Request.Context()).Preload("Owner")
	if ownerID != 0 {
		q = q.Where("owner_id = ?", ownerID)
	}
	if city := strings.TrimSpace(c.Query("city")); city != "" {
		q = q.Where("LOWER(city) = LOWER(?)", city)
	}

	shops := []models.Shop{}
	if err := q.Order("name").Limit(500).Find(&shops).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shops)
}

// GET /api/shops/:id
func GetShop(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	shop, err := loadShop(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shop)
}

// POST /api/shops
func CreateShop(c *gin.Context) {
	var req CreateShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	caller := auth.CurrentUser(c)
	if !permissions.CanManageShops(caller) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only shop owners can create shops"})
		return
	}

	ctx := c.Request.Context()
	ownerID := caller.ID
	if req.OwnerID != nil && caller.IsAdmin() {
		if err := userExists(ctx, *req.OwnerID); err != nil {
			respondError(c, err)
			return
		}
		ownerID = *req.OwnerID
	}

	shop := models.Shop{
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Address:     req.Address,
		City:        req.City,
		Country:     req.Country,
		IsActive:    true,
	}
	if shop.Country == "" {
		shop.Country = "TN"
	}
	if err := db.DB.WithContext(ctx).Create(&shop).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(c, apperr.Conflict("a shop named %q already exists in %s", shop.Name, shop.City))
			return
		}
		respondError(c, err)
		return
	}

	created, err := loadShop(ctx, shop.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// PATCH /api/shops/:id
func UpdateShop(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	shop, err := loadShop(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	caller := auth.CurrentUser(c)
	if !permissions.Resolve(caller, shop).Write {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner or staff can edit this shop"})
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.City != nil {
		updates["city"] = *req.City
	}
	if req.Country != nil {
		updates["country"] = *req.Country
	}
	if req.OwnerID != nil && *req.OwnerID != shop.OwnerID {
		if !caller.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "only staff can change the owner of a shop"})
			return
		}
		if err := userExists(ctx, *req.OwnerID); err != nil {
			respondError(c, err)
			return
		}
		updates["owner_id"] = *req.OwnerID
	}

	if len(updates) > 0 {
		err := db.DB.WithContext(ctx).Model(&models.Shop{ID: id}).Updates(updates).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			respondError(c, apperr.Conflict("a shop with that name already exists in this city"))
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
	}
	if shop, err = loadShop(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shop)
}

// DELETE /api/shops/:id
func DeleteShop(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	shop, err := loadShop(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !permissions.Resolve(auth.CurrentUser(c), shop).Write {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner or staff can delete this shop"})
		return
	}

	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var referenced int64
		err := tx.Model(&models.OrderItem{}).
			Joins("JOIN products ON products.id = order_items.product_id").
			Where("products.shop_id = ?", id).
			Count(&referenced).Error
		if err != nil {
			return err
		}
		if referenced > 0 {
			return apperr.Validation("shop %d has products referenced by orders and cannot be deleted", id)
		}
		if err := tx.Where("shop_id = ?", id).Delete(&models.Product{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Shop{}, id).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/shops/:id/toggle-active (staff)
func ToggleShopActive(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	shop, err := loadShop(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	shop.IsActive = !shop.IsActive
	if err := db.DB.WithContext(ctx).Model(&models.Shop{ID: id}).Update("is_active", shop.IsActive).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "is_active": shop.IsActive, "shop": shop})
}

func loadShop(ctx context.Context, id uint) (*models.Shop, error) {
	var shop models.Shop
	err := db.DB.WithContext(ctx).Preload("Owner").First(&shop, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Shop not found with ID: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &shop, nil
}

func userExists(ctx context.Context, id uint) error {
	var user models.User
	err := db.DB.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("User not found with ID: %d", id)
	}
	return err
}
