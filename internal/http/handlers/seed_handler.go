package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/refdirectly/referral-backend/internal/service"
)

// SeedHandler обрабатывает запросы на генерацию демо-данных.
// Маршрут регистрируется только в development окружении.
type SeedHandler struct {
	seed *service.SeedService
}

// NewSeedHandler создаёт новый seed handler.
func NewSeedHandler(seed *service.SeedService) *SeedHandler {
	return &SeedHandler{seed: seed}
}

// Seed обрабатывает POST /api/seed.
func (h *SeedHandler) Seed(c *gin.Context) {
	created, err := h.seed.SeedDemoReferrers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "не удалось сгенерировать демо-данные",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "демо-рекомендатели созданы",
		"created": created,
	})
}
