package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Keoroanthony/shopnow-api/internal/db"
	"github.com/Keoroanthony/shopnow-api/internal/models"
)

type CreateCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	ParentID    *uint  `json:"parent_id"`
}

// POST /api/categories (staff)
func CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ParentID != nil {
		var parentCategory models.Category
		if err := db.DB.First(&parentCategory, *req.ParentID).Error; err != nil {
			errorMessage := fmt.Sprintf("Parent category not found with ID: %d", *req.ParentID)
			c.JSON(http.StatusNotFound, gin.H{"error": errorMessage})
			return
		}
	}

	category := models.Category{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	}

	if err := db.DB.Create(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "category name already exists"})
			return
		}
		respondError(c, err)
		return
	}

	if err := db.DB.Preload("Parent").First(&category, category.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve category with parent details"})
		return
	}

	c.JSON(http.StatusCreated, category)
}

// GET /api/categories?parent_id=
func ListCategories(c *gin.Context) {
	q := db.DB.WithContext(c.Request.Context()).Order("name")
	switch parent := c.Query("parent_id"); parent {
	case "":
	case "root":
		q = q.Where("parent_id IS NULL")
	default:
		parentID, ok := queryID(c, "parent_id")
		if !ok {
			return
		}
		q = q.Where("parent_id = ?", parentID)
	}

	categories := []models.Category{}
	if err := q.Find(&categories).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// GET /api/categories/:id
func GetCategory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var category models.Category
	err := db.DB.WithContext(c.Request.Context()).
		Preload("Parent").
		Preload("Children").
		First(&category, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Category not found with ID: %d", id)})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}
