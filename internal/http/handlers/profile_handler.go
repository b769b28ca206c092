package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/refdirectly/referral-backend/internal/service"
)

// ProfileHandler обслуживает маршруты профиля пользователя.
type ProfileHandler struct {
	auth *service.AuthService
}

// NewProfileHandler создаёт новый хэндлер.
func NewProfileHandler(auth *service.AuthService) *ProfileHandler {
	return &ProfileHandler{auth: auth}
}

type updateProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

type addCompanyRequest struct {
	Company  string `json:"company" binding:"required"`
	Position string `json:"position"`
}

// Get обрабатывает GET /profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	user, companies, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":      user,
		"companies": companies,
	})
}

// Update обрабатывает PUT /profile.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), userID, req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// AddCompany обрабатывает POST /profile/companies.
func (h *ProfileHandler) AddCompany(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req addCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	affiliation, err := h.auth.AddCompany(c.Request.Context(), userID, req.Company, req.Position)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"company": affiliation})
}
