package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/refdirectly/referral-backend/internal/models"
	"github.com/refdirectly/referral-backend/internal/service"
)

// ReferralRequestHandler обслуживает маршруты запросов рекомендаций.
type ReferralRequestHandler struct {
	referrals     *service.ReferralService
	notifications *service.NotificationService
}

// NewReferralRequestHandler создаёт новый хэндлер.
func NewReferralRequestHandler(referrals *service.ReferralService, notifications *service.NotificationService) *ReferralRequestHandler {
	return &ReferralRequestHandler{referrals: referrals, notifications: notifications}
}

type createRequestRequest struct {
	Company     string     `json:"company" binding:"required"`
	Role        string     `json:"role" binding:"required"`
	Skills      []string   `json:"skills"`
	Description string     `json:"description" binding:"required"`
	ResumeID    *uuid.UUID `json:"resume_id"`
	Reward      float64    `json:"reward"`
}

// Create обрабатывает POST /referral-requests.
func (h *ReferralRequestHandler) Create(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	role, err := currentUserRole(c)
	if err != nil || role != models.RoleSeeker {
		c.JSON(http.StatusForbidden, gin.H{"error": "создавать запросы могут только соискатели"})
		return
	}

	var req createRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "некорректное тело запроса"})
		return
	}

	result, err := h.referrals.CreateRequest(c.Request.Context(), service.CreateRequestInput{
		SeekerID:    userID,
		Company:     req.Company,
		Role:        req.Role,
		Skills:      req.Skills,
		Description: req.Description,
		ResumeID:    req.ResumeID,
		Reward:      req.Reward,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ListMy обрабатывает GET /referral-requests: запросы соискателя.
func (h *ReferralRequestHandler) ListMy(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	limit, offset := pagination(c)
	requests, err := h.referrals.ListMyRequests(c.Request.Context(), userID, c.Query("status"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// ListIncoming обрабатывает GET /referral-requests/incoming: входящие
// приглашения рекомендателя.
func (h *ReferralRequestHandler) ListIncoming(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	notifications, err := h.notifications.ListIncoming(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"incoming": notifications})
}

// ListAccepted обрабатывает GET /referral-requests/accepted: запросы,
// принятые рекомендателем.
func (h *ReferralRequestHandler) ListAccepted(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	limit, offset := pagination(c)
	requests, err := h.referrals.ListAcceptedByMe(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// Get обрабатывает GET /referral-requests/:id.
func (h *ReferralRequestHandler) Get(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор запроса"})
		return
	}

	request, err := h.referrals.GetRequest(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": request})
}

// Accept обрабатывает POST /referral-requests/:id/accept. Гонка
// разрешается в хранилище: победитель получает 200 с комнатой чата,
// остальные — 409.
func (h *ReferralRequestHandler) Accept(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	role, err := currentUserRole(c)
	if err != nil || role != models.RoleReferrer {
		c.JSON(http.StatusForbidden, gin.H{"error": "принимать запросы могут только рекомендатели"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор запроса"})
		return
	}

	result, err := h.referrals.AcceptRequest(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Complete обрабатывает POST /referral-requests/:id/complete.
func (h *ReferralRequestHandler) Complete(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор запроса"})
		return
	}

	request, err := h.referrals.CompleteRequest(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": request})
}

// Cancel обрабатывает POST /referral-requests/:id/cancel.
func (h *ReferralRequestHandler) Cancel(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный идентификатор запроса"})
		return
	}

	request, err := h.referrals.CancelRequest(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": request})
}
