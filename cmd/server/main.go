package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/refdirectly/referral-backend/internal/config"
	"github.com/refdirectly/referral-backend/internal/db"
	"github.com/refdirectly/referral-backend/internal/goroutine"
	httpHandlers "github.com/refdirectly/referral-backend/internal/http/handlers"
	httpRouter "github.com/refdirectly/referral-backend/internal/http/router"
	"github.com/refdirectly/referral-backend/internal/logger"
	"github.com/refdirectly/referral-backend/internal/repository"
	"github.com/refdirectly/referral-backend/internal/service"
	"github.com/refdirectly/referral-backend/internal/storage"
	"github.com/refdirectly/referral-backend/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	resumeStorage, err := storage.NewResumeStorage(cfg.ResumeStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	requestRepo := repository.NewRequestRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	chatRepo := repository.NewChatRepository(dbConn)
	paymentRepo := repository.NewPaymentRepository(dbConn)
	resumeRepo := repository.NewResumeRepository(dbConn)

	// Сервисы.
	authService := service.NewAuthService(userRepo, tokenManager)
	notificationService := service.NewNotificationService(notificationRepo)
	matchingService := service.NewMatchingService(userRepo, notificationRepo)
	paymentService := service.NewPaymentService(paymentRepo)
	chatService := service.NewChatService(chatRepo)
	referralService := service.NewReferralService(requestRepo, notificationRepo, chatRepo, userRepo, matchingService, paymentService)
	statsService := service.NewStatsService(requestRepo, paymentRepo)
	seedService := service.NewSeedService(userRepo)

	// Вебсокеты.
	hub := ws.NewHub()
	goroutine.SafeGo(hub.Run)

	matchingService.SetHub(hub)
	referralService.SetHub(hub)
	chatService.SetHub(hub)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	profileHandler := httpHandlers.NewProfileHandler(authService)
	requestHandler := httpHandlers.NewReferralRequestHandler(referralService, notificationService)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService, referralService)
	chatHandler := httpHandlers.NewChatHandler(chatService)
	paymentHandler := httpHandlers.NewPaymentHandler(paymentService)
	statsHandler := httpHandlers.NewStatsHandler(statsService)
	resumeHandler := httpHandlers.NewResumeHandler(resumeRepo, resumeStorage)
	wsHandler := httpHandlers.NewWSHandler(hub, chatService, tokenManager)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)
	seedHandler := httpHandlers.NewSeedHandler(seedService)

	// Демо-рекомендатели нужны только в development.
	if cfg.Env == "development" {
		if created, err := seedService.SeedDemoReferrers(ctx); err != nil {
			log.Printf("main: не удалось создать демо-рекомендателей: %v", err)
		} else if created > 0 {
			log.Printf("main: создано демо-рекомендателей: %d", created)
		}
	}

	// Роутер.
	engine := httpRouter.SetupRouter(
		cfg,
		authHandler,
		profileHandler,
		requestHandler,
		notificationHandler,
		chatHandler,
		paymentHandler,
		statsHandler,
		resumeHandler,
		wsHandler,
		healthHandler,
		seedHandler,
		tokenManager,
	)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
