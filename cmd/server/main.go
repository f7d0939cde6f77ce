package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/securebank/securebank/internal/config"
	"github.com/securebank/securebank/internal/cryptox"
	"github.com/securebank/securebank/internal/database"
	"github.com/securebank/securebank/internal/handler"
	"github.com/securebank/securebank/internal/jobs"
	"github.com/securebank/securebank/internal/logger"
	"github.com/securebank/securebank/internal/metrics"
	"github.com/securebank/securebank/internal/middleware"
	"github.com/securebank/securebank/internal/model"
	"github.com/securebank/securebank/internal/repository"
	"github.com/securebank/securebank/internal/service"
)

func main() {
	logger.Init()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize database and run migrations
	if err := database.Migrate(context.Background(), cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	cipher, err := cryptox.NewFieldCipher(cfg.EncryptionKey, cfg.EncryptionSalt)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize field encryption")
	}

	collector := metrics.NewCollector()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	attemptRepo := repository.NewLoginAttemptRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	// Services
	lockout := service.NewLockoutTracker(attemptRepo, userRepo, collector, cfg.LockoutThreshold, cfg.LockoutWindow, cfg.LockoutDuration)
	authService := service.NewAuthService(userRepo, lockout)
	sessionService := service.NewSessionService(sessionRepo, userRepo, cfg.SessionSecret, cfg.SessionIdle, cfg.SessionMaxLife)
	transferService := service.NewTransferService(accountRepo, transactionRepo, cipher, collector)

	if cfg.AdminPassword != "" {
		if err := authService.SeedAdmin(context.Background(), cfg.AdminPassword); err != nil {
			log.Fatal().Err(err).Msg("failed to seed admin user")
		}
	}

	// Handlers
	authHandler := handler.NewAuthHandler(authService, sessionService, cfg.SessionMaxLife)
	accountHandler := handler.NewAccountHandler(transferService)
	transferHandler := handler.NewTransferHandler(transferService)
	adminHandler := handler.NewAdminHandler(authService, sessionService, transferService, lockout)

	// Background maintenance
	maintenance := jobs.NewMaintenance(sessionRepo, attemptRepo, cfg.SessionIdle, cfg.AttemptRetention)
	if err := maintenance.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start maintenance jobs")
	}
	defer maintenance.Stop()

	// Create router with middleware
	r := chi.NewRouter()

	// Global middleware. Authenticate runs before the rate limiter so the
	// limiter can key by user and recognize administrators.
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.CSRFHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Authenticate(sessionService))
	r.Use(middleware.RateLimit(cfg.GlobalRateLimit, cfg.GlobalRateWindow, middleware.TierGlobal, collector))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", collector.Handler())

	// Auth routes with strict rate limiting
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.AuthRateLimit, cfg.AuthRateWindow, middleware.TierAuth, collector))
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/password-reset", authHandler.PasswordReset)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(middleware.RequireCSRF(sessionService))

		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/api/v1/csrf", authHandler.CSRFToken)

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/accounts", accountHandler.Create)
			r.Get("/accounts", accountHandler.List)
			r.Get("/accounts/{id}/transactions", accountHandler.Transactions)
			r.Post("/transfers", transferHandler.Create)
			r.Get("/transactions", transferHandler.History)
		})
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(middleware.RequireCSRF(sessionService))
		r.Use(middleware.RequireRole(model.RoleAdmin))

		r.Route("/admin", func(r chi.Router) {
			r.Post("/users/{id}/unlock", adminHandler.UnlockUser)
			r.Post("/users/{id}/deactivate", adminHandler.DeactivateUser)
			r.Post("/users/{id}/reset-password", adminHandler.ResetPassword)
			r.Post("/users/{id}/deposit", adminHandler.Deposit)
			r.Post("/accounts/{id}/status", adminHandler.SetAccountStatus)
			r.Post("/transactions/{id}/reverse", adminHandler.ReverseTransaction)
			r.Get("/security", adminHandler.SecurityOverview)
		})
	})

	// Create server with timeouts
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server is shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
