package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Keoroanthony/shopnow-api/internal/auth"
	"github.com/Keoroanthony/shopnow-api/internal/permissions"
	"github.com/Keoroanthony/shopnow-api/internal/stats"
)

type StatsHandler struct {
	reports *stats.Reporter
}

func NewStatsHandler(reports *stats.Reporter) *StatsHandler {
	return &StatsHandler{reports: reports}
}

// GET /api/admin/stats (staff)
func (h *StatsHandler) Admin(c *gin.Context) {
	out, err := h.reports.Admin(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/shops/:id/stats
func (h *StatsHandler) Shop(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	shop, err := loadShop(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !permissions.Resolve(auth.CurrentUser(c), shop).Write {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner or staff can view shop stats"})
		return
	}

	out, err := h.reports.Shop(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
