package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/refdirectly/referral-backend/internal/logger"
	"github.com/refdirectly/referral-backend/internal/pkg/apperror"
	"github.com/refdirectly/referral-backend/internal/repository"
)

// ErrorHandler обрабатывает ошибки централизованно: apperror-коды
// отдаются со своим статусом, внутренние ошибки маскируются.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		// Типизированные ошибки приложения несут свой статус и код.
		var appErr *apperror.AppError
		if errors.As(err.Err, &appErr) {
			c.JSON(appErr.HTTPStatus, gin.H{
				"error": appErr.Message,
				"code":  appErr.Code,
			})
			return
		}

		statusCode := http.StatusInternalServerError
		message := "внутренняя ошибка сервера"

		switch {
		case errors.Is(err.Err, repository.ErrUserNotFound):
			statusCode = http.StatusNotFound
			message = "пользователь не найден"
		case errors.Is(err.Err, repository.ErrRequestNotFound):
			statusCode = http.StatusNotFound
			message = "запрос рекомендации не найден"
		case errors.Is(err.Err, repository.ErrNotificationNotFound):
			statusCode = http.StatusNotFound
			message = "уведомление не найдено"
		case errors.Is(err.Err, repository.ErrRoomNotFound):
			statusCode = http.StatusNotFound
			message = "чат не найден"
		case errors.Is(err.Err, repository.ErrPreconditionFailed):
			statusCode = http.StatusConflict
			message = "запрос уже принят другим рекомендателем"
		case errors.Is(err.Err, repository.ErrInsufficientFunds):
			statusCode = http.StatusBadRequest
			message = "недостаточно средств"
		default:
			if msg := err.Error(); msg != "" && !containsInternalKeywords(msg) {
				message = msg
				if contains(msg, "неверный") || contains(msg, "невалид") || contains(msg, "некоррект") {
					statusCode = http.StatusBadRequest
				} else if contains(msg, "нет прав") || contains(msg, "не авторизован") {
					statusCode = http.StatusForbidden
				}
			}
		}

		c.JSON(statusCode, gin.H{"error": message})
	}
}

// containsInternalKeywords проверяет, содержит ли строка ключевые слова внутренних ошибок.
func containsInternalKeywords(s string) bool {
	keywords := []string{
		"sql:",
		"database",
		"connection",
		"timeout",
		"internal",
		"panic",
		"runtime",
	}

	for _, keyword := range keywords {
		if contains(s, keyword) {
			return true
		}
	}
	return false
}

// contains проверяет, содержит ли строка подстроку (case-insensitive).
func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
