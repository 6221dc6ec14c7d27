package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Keoroanthony/shopnow-api/internal/apperr"
	"github.com/Keoroanthony/shopnow-api/internal/auth"
	"github.com/Keoroanthony/shopnow-api/internal/db"
	"github.com/Keoroanthony/shopnow-api/internal/models"
	"github.com/Keoroanthony/shopnow-api/internal/permissions"
)

type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Title   string `json:"title"`
	Comment string `json:"comment"`
}

type UpdateReviewRequest struct {
	Rating  *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Title   *string `json:"title"`
	Comment *string `json:"comment"`
}

// GET /api/products/:id/reviews
func ListReviews(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := loadProduct(ctx, productID); err != nil {
		respondError(c, err)
		return
	}

	reviews := []models.Review{}
	err := db.DB.WithContext(ctx).
		Preload("User").
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Limit(500).
		Find(&reviews).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// POST /api/products/:id/reviews
func CreateReview(c *gin.Context) {
	productID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
		return
	}

	ctx := c.Request.Context()
	if _, err := loadProduct(ctx, productID); err != nil {
		respondError(c, err)
		return
	}

	caller := auth.CurrentUser(c)
	review := models.Review{
		ProductID: productID,
		UserID:    caller.ID,
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
	}
	err := db.DB.WithContext(ctx).Omit("User").Create(&review).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		respondError(c, apperr.Conflict("you have already reviewed this product"))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	review.User = caller
	c.JSON(http.StatusCreated, review)
}

// PATCH /api/reviews/:id
func UpdateReview(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
		return
	}

	ctx := c.Request.Context()
	review, err := loadReview(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !permissions.Resolve(auth.CurrentUser(c), review).Write {
		c.JSON(http.StatusForbidden, gin.H{"error": "you can only edit your own reviews"})
		return
	}

	updates := map[string]any{}
	if req.Rating != nil {
		updates["rating"] = *req.Rating
	}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Comment != nil {
		updates["comment"] = *req.Comment
	}
	if len(updates) > 0 {
		if err := db.DB.WithContext(ctx).Model(&models.Review{ID: id}).Updates(updates).Error; err != nil {
			respondError(c, err)
			return
		}
	}
	if review, err = loadReview(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// DELETE /api/reviews/:id
func DeleteReview(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	review, err := loadReview(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !permissions.Resolve(auth.CurrentUser(c), review).Write {
		c.JSON(http.StatusForbidden, gin.H{"error": "you can only delete your own reviews"})
		return
	}
	if err := db.DB.WithContext(ctx).Delete(&models.Review{}, id).Error; err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func loadReview(ctx context.Context, id uint) (*models.Review, error) {
	var review models.Review
	err := db.DB.WithContext(ctx).Preload("User").First(&review, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Review not found with ID: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &review, nil
}
