package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Keoroanthony/shopnow-api/internal/apperr"
	"github.com/Keoroanthony/shopnow-api/internal/auth"
	"github.com/Keoroanthony/shopnow-api/internal/db"
	"github.com/Keoroanthony/shopnow-api/internal/models"
)

type SetRoleRequest struct {
	Role    models.Role `json:"role" binding:"required"`
	IsStaff *bool       `json:"is_staff"`
}

// GET /api/users/me
func Me(c *gin.Context) {
	c.JSON(http.StatusOK, auth.CurrentUser(c))
}

// GET /api/users?role=&q= (staff)
func ListUsers(c *gin.Context) {
	q := db.DB.WithContext(c.Request.Context())
	if role := c.Query("role"); role != "" {
		q = q.Where("role = ?", role)
	}
	if term := strings.TrimSpace(c.Query("q")); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	users := []models.User{}
	if err := q.Order("id").Limit(500).Find(&users).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// PATCH /api/users/:id/role (staff)
func SetUserRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role is required"})
		return
	}
	if !req.Role.Valid() {
		respondError(c, apperr.Validation("invalid role %q", req.Role))
		return
	}

	ctx := c.Request.Context()
	if err := userExists(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	if id == auth.CurrentUser(c).ID && req.Role != models.RoleAdmin && (req.IsStaff == nil || !*req.IsStaff) {
		respondError(c, apperr.Validation("you cannot remove your own staff access"))
		return
	}

	updates := map[string]any{"role": req.Role}
	if req.IsStaff != nil {
		updates["is_staff"] = *req.IsStaff
	}
	if err := db.DB.WithContext(ctx).Model(&models.User{ID: id}).Updates(updates).Error; err != nil {
		respondError(c, err)
		return
	}

	var user models.User
	if err := db.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
