package router

import (
	"github.com/gin-gonic/gin"

	"github.com/refdirectly/referral-backend/internal/config"
	"github.com/refdirectly/referral-backend/internal/http/handlers"
	"github.com/refdirectly/referral-backend/internal/http/middleware"
	"github.com/refdirectly/referral-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	requestHandler *handlers.ReferralRequestHandler,
	notificationHandler *handlers.NotificationHandler,
	chatHandler *handlers.ChatHandler,
	paymentHandler *handlers.PaymentHandler,
	statsHandler *handlers.StatsHandler,
	resumeHandler *handlers.ResumeHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	seedHandler *handlers.SeedHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	if seedHandler != nil && cfg.Env == "development" {
		api.POST("/seed", seedHandler.Seed)
	}

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(middleware.AuthMiddleware(tokenManager))
	{
		protectedAuth.POST("/logout", authHandler.Logout)
	}

	// WebSocket авторизуется по токену в query, минуя middleware
	api.GET("/ws", wsHandler.Handle)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/profile", profileHandler.Get)
		protected.PUT("/profile", profileHandler.Update)
		protected.POST("/profile/companies", profileHandler.AddCompany)

		// Запросы на рекомендацию
		createRateLimit := middleware.RateLimitMiddleware(20, cfg.RateLimitPeriod)
		protected.POST("/referral-requests", createRateLimit, requestHandler.Create)
		protected.GET("/referral-requests", requestHandler.ListMy)
		protected.GET("/referral-requests/incoming", requestHandler.ListIncoming)
		protected.GET("/referral-requests/accepted", requestHandler.ListAccepted)
		protected.GET("/referral-requests/:id", middleware.UUIDValidator("id"), requestHandler.Get)
		protected.POST("/referral-requests/:id/accept", middleware.UUIDValidator("id"), requestHandler.Accept)
		protected.POST("/referral-requests/:id/complete", middleware.UUIDValidator("id"), requestHandler.Complete)
		protected.POST("/referral-requests/:id/cancel", middleware.UUIDValidator("id"), requestHandler.Cancel)

		// Уведомления
		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread-count", notificationHandler.CountUnread)
		protected.PATCH("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.PATCH("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.POST("/notifications/:id/accept", middleware.UUIDValidator("id"), notificationHandler.Accept)
		protected.POST("/notifications/:id/reject", middleware.UUIDValidator("id"), notificationHandler.Reject)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), notificationHandler.Delete)

		// Чаты
		protected.GET("/chat/rooms", chatHandler.ListRooms)
		protected.GET("/chat/:roomId", middleware.UUIDValidator("roomId"), chatHandler.GetRoom)
		protected.POST("/chat/:roomId/messages", middleware.UUIDValidator("roomId"), chatHandler.SendMessage)

		// Платежи и escrow
		protected.GET("/payments/balance", paymentHandler.GetBalance)
		protected.POST("/payments/deposit", paymentHandler.Deposit)
		protected.GET("/payments/transactions", paymentHandler.ListTransactions)
		protected.GET("/payments/escrow/:requestId", middleware.UUIDValidator("requestId"), paymentHandler.GetEscrow)

		// Резюме
		protected.POST("/resumes", resumeHandler.Upload)
		protected.GET("/resumes", resumeHandler.List)

		protected.GET("/stats", statsHandler.Get)
	}

	return r
}
