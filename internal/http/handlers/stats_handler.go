package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/refdirectly/referral-backend/internal/models"
	"github.com/refdirectly/referral-backend/internal/service"
)

// StatsHandler отдаёт сводную статистику в зависимости от роли пользователя.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler создаёт новый хэндлер.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Get обрабатывает GET /stats.
func (h *StatsHandler) Get(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	role, _ := currentUserRole(c)
	if role == models.RoleReferrer {
		stats, err := h.stats.ForReferrer(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"stats": stats})
		return
	}

	stats, err := h.stats.ForSeeker(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
