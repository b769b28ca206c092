package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/refdirectly/referral-backend/internal/http/middleware"
	"github.com/refdirectly/referral-backend/internal/models"
)

func TestReferralRequestHandler_Create_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReferralRequestHandler{}
	r.POST("/referral-requests", handler.Create)

	req, _ := http.NewRequest("POST", "/referral-requests", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReferralRequestHandler_Create_ReferrerForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReferralRequestHandler{}
	r.POST("/referral-requests", func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, uuid.New())
		c.Set(middleware.ContextRoleKey, models.RoleReferrer)
		handler.Create(c)
	})

	req, _ := http.NewRequest("POST", "/referral-requests", strings.NewReader(`{"company":"Google"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReferralRequestHandler_Accept_SeekerForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReferralRequestHandler{}
	r.POST("/referral-requests/:id/accept", func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, uuid.New())
		c.Set(middleware.ContextRoleKey, models.RoleSeeker)
		handler.Accept(c)
	})

	req, _ := http.NewRequest("POST", "/referral-requests/5d1f1a74-2f9f-4f0a-9a53-0b1a3c9c61af/accept", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReferralRequestHandler_Get_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReferralRequestHandler{}
	r.GET("/referral-requests/:id", middleware.UUIDValidator("id"), handler.Get)

	req, _ := http.NewRequest("GET", "/referral-requests/not-a-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReferralRequestHandler_ListMy_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReferralRequestHandler{}
	r.GET("/referral-requests", handler.ListMy)

	req, _ := http.NewRequest("GET", "/referral-requests", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
