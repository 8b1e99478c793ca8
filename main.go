package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codexcity/internal/config"
	"codexcity/internal/gmail"
	"codexcity/internal/handler"
	"codexcity/internal/lock"
	"codexcity/internal/logger"
	"codexcity/internal/repository"
	"codexcity/internal/repository/memory"
	"codexcity/internal/repository/postgres"
	"codexcity/internal/router"
	"codexcity/internal/service"
	"codexcity/internal/sse"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatal("Config validation failed:", err)
	}

	appLogger := logger.NewWithLevel(cfg.LogLevel, cfg.IsDevelopment())

	// Initialize repositories (conditionally use postgres or in-memory based on DATABASE_URL)
	var userRepo repository.UserRepository
	var tokenRepo repository.TokenRepository
	var templateRepo repository.TemplateRepository
	var logRepo repository.EmailLogRepository

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		defer db.Close()

		if err := postgres.InitializeDatabase(db); err != nil {
			log.Fatal("Failed to initialize database:", err)
		}

		userRepo = postgres.NewPostgresUserRepository(db)
		tokenRepo = postgres.NewPostgresTokenRepository(db)
		templateRepo = postgres.NewPostgresTemplateRepository(db)
		logRepo = postgres.NewPostgresEmailLogRepository(db)

		appLogger.Info("Using PostgreSQL repositories")
	} else {
		userRepo = memory.NewInMemoryUserRepository()
		tokenRepo = memory.NewInMemoryTokenRepository()
		templateRepo = memory.NewInMemoryTemplateRepository()
		logRepo = memory.NewInMemoryEmailLogRepository()

		appLogger.Info("Using in-memory repositories")
	}

	// Run locks live in Redis when several instances share the database
	var locker service.RunLocker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("Invalid REDIS_URL:", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = client.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatal("Failed to connect to redis:", err)
		}

		locker = lock.NewRedisLocker(client, appLogger)
		appLogger.Info("Using Redis run locks")
	} else {
		locker = lock.NewMemoryLocker()
		appLogger.Info("Using in-process run locks")
	}

	gateway, err := gmail.NewGmailGateway(gmail.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURI:  cfg.GoogleRedirectURI,
	}, appLogger)
	if err != nil {
		log.Fatal("Failed to create Gmail gateway:", err)
	}

	hub := sse.NewHub(appLogger)
	defer hub.Close()

	// Initialize services
	tokenService := service.NewTokenService(tokenRepo, gateway, appLogger)
	templateService := service.NewTemplateService(templateRepo, appLogger)
	authService := service.NewAuthService(userRepo, tokenService, templateService, appLogger)
	analyticsService := service.NewAnalyticsService(logRepo)
	automationService := service.NewAutomationService(
		service.AutomationConfig{MaxPollResults: cfg.MaxPollResults},
		userRepo,
		templateRepo,
		logRepo,
		tokenService,
		gateway,
		locker,
		hub,
		appLogger,
	)

	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	store := handler.NewSessionStore([]byte(cfg.SessionSecret), !cfg.IsDevelopment())
	router.SetupRoutes(e, router.Handlers{
		Auth:       handler.NewAuthHandler(authService, store, cfg, e.Logger),
		Profile:    handler.NewProfileHandler(authService, e.Logger),
		Gmail:      handler.NewGmailHandler(tokenService, store, e.Logger),
		Template:   handler.NewTemplateHandler(templateService, e.Logger),
		Automation: handler.NewAutomationHandler(automationService, analyticsService, hub, e.Logger),
	})

	go func() {
		appLogger.Info("Starting server on port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Failed to start server:", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		appLogger.Error("Failed to shut down server:", err)
	}
}
