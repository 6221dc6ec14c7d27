package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Keoroanthony/shopnow-api/internal/apperr"
	"github.com/Keoroanthony/shopnow-api/internal/auth"
	"github.com/Keoroanthony/shopnow-api/internal/db"
	"github.com/Keoroanthony/shopnow-api/internal/models"
	"github.com/Keoroanthony/shopnow-api/internal/orders"
	"github.com/Keoroanthony/shopnow-api/internal/permissions"
	"github.com/Keoroanthony/shopnow-api/internal/utils"
)

type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" binding:"min=0"`
	ImageURL    string          `json:"image_url"`
	CategoryID  *uint           `json:"category_id"`
	ShopID      *uint           `json:"shop_id"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	ImageURL    *string          `json:"image_url"`
	CategoryID  *uint            `json:"category_id"`
}

// checkPrice returns a client-facing message when price cannot be stored
// as a positive amount with cent precision.
func checkPrice(price decimal.Decimal) string {
	if !price.IsPositive() {
		return "price must be greater than 0"
	}
	if !price.Equal(price.Round(2)) {
		return "price must have at most two decimal places"
	}
	return ""
}

// POST /api/products
func CreateProduct(c *gin.Context) {
	var req CreateProductRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg := checkPrice(req.Price); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()
	if req.CategoryID != nil {
		if err := categoryExists(ctx, *req.CategoryID); err != nil {
			respondError(c, err)
			return
		}
	}

	product := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		CategoryID:  req.CategoryID,
		ShopID:      req.ShopID,
	}
	if req.ShopID != nil {
		var shop models.Shop
		if err := db.DB.WithContext(ctx).First(&shop, *req.ShopID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Shop not found with ID: %d", *req.ShopID)})
			return
		}
		product.Shop = &shop
	}
	if !permissions.Resolve(auth.CurrentUser(c), &product).Write {
		c.JSON(http.StatusForbidden, gin.H{"error": "only staff or the shop owner can add products"})
		return
	}

	if err := db.DB.WithContext(ctx).Omit("Shop", "Category").Create(&product).Error; err != nil {
		respondError(c, err)
		return
	}

	if err := db.DB.Preload("Category").First(&product, product.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve Product with Category details"})
		return
	}

	c.JSON(http.StatusCreated, product)
}

// GET /api/products?category_id=&shop_id=&available=&limit=
func ListProducts(c *gin.Context) {
	categoryID, ok := queryID(c, "category_id")
	if !ok {
		return
	}
	shopID, ok := queryID(c, "shop_id")
	if !ok {
		return
	}
	limit := orders.ListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = min(n, orders.ListLimit)
	}

	q := db.DB.WithContext(c.Request.Context()).Preload("Category")
	if categoryID != 0 {
		ids, err := utils.GetAllCategoryIDs(db.DB.WithContext(c.Request.Context()), categoryID)
		if err != nil {
			respondError(c, err)
			return
		}
		q = q.Where("category_id IN ?", ids)
	}
	if shopID != 0 {
		q = q.Where("shop_id = ?", shopID)
	}
	switch c.Query("available") {
	case "true":
		q = q.Where("stock > 0")
	case "false":
		q = q.Where("stock = 0")
	}

	products := []models.Product{}
	if err := q.Order("id DESC").Limit(limit).Find(&products).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

// GET /api/products/:id
func GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	product, err := loadProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// PATCH /api/products/:id
func UpdateProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	product, err := loadProduct(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !permissions.Resolve(auth.CurrentUser(c), product).Write {
		c.JSON(http.StatusForbidden, gin.H{"error": "only staff or the shop owner can edit this product"})
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		if *req.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
			return
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		if msg := checkPrice(*req.Price); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
		updates["price"] = *req.Price
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stock must not be negative"})
			return
		}
		updates["stock"] = *req.Stock
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.CategoryID != nil {
		if err := categoryExists(ctx, *req.CategoryID); err != nil {
			respondError(c, err)
			return
		}
		updates["category_id"] = *req.CategoryID
	}

	if len(updates) > 0 {
		if err := db.DB.WithContext(ctx).Model(&models.Product{ID: id}).Updates(updates).Error; err != nil {
			respondError(c, err)
			return
		}
	}
	if product, err = loadProduct(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// DELETE /api/products/:id
func DeleteProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	product, err := loadProduct(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !permissions.Resolve(auth.CurrentUser(c), product).Write {
		c.JSON(http.StatusForbidden, gin.H{"error": "only staff or the shop owner can delete this product"})
		return
	}

	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&models.Product{}, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("Product not found with ID: %d", id)
			}
			return err
		}
		var referenced int64
		if err := tx.Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&referenced).Error; err != nil {
			return err
		}
		if referenced > 0 {
			return apperr.Validation("product %d is referenced by orders and cannot be deleted", id)
		}
		return tx.Delete(&models.Product{}, id).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/products/average?category_id=
func GetAveragePrice(c *gin.Context) {
	categoryIDParam := c.Query("category_id")
	if categoryIDParam == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category_id is required"})
		return
	}

	var categoryID uint
	if _, err := fmt.Sscan(categoryIDParam, &categoryID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category_id"})
		return
	}

	// Fetch all category IDs (recursive)
	categoryIDs, err := utils.GetAllCategoryIDs(db.DB, categoryID)
	if err != nil {
		respondError(c, err)
		return
	}

	var prices []decimal.Decimal
	err = db.DB.
		Model(&models.Product{}).
		Where("category_id IN ?", categoryIDs).
		Pluck("price", &prices).Error
	if err != nil {
		respondError(c, err)
		return
	}

	avg := decimal.Zero
	if len(prices) > 0 {
		avg = decimal.Sum(prices[0], prices[1:]...).Div(decimal.NewFromInt(int64(len(prices))))
	}

	c.JSON(http.StatusOK, gin.H{"category_id": categoryID, "average_price": avg.StringFixed(2)})
}

func loadProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := db.DB.WithContext(ctx).Preload("Category").Preload("Shop").First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Product not found with ID: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func categoryExists(ctx context.Context, id uint) error {
	var category models.Category
	err := db.DB.WithContext(ctx).First(&category, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("Category not found with ID: %d", id)
	}
	return err
}
