package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mlekara-shop/internal/activity"
	"mlekara-shop/internal/config"
	"mlekara-shop/internal/domain"
	"mlekara-shop/internal/handler"
	"mlekara-shop/internal/messaging"
	"mlekara-shop/internal/middleware"
	"mlekara-shop/internal/observability"
	"mlekara-shop/internal/repository/postgres"
	"mlekara-shop/internal/security"
	"mlekara-shop/internal/service"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logFormat := os.Getenv("LOG_FORMAT")
	if logFormat == "" {
		logFormat = "json"
	}
	observability.InitLogger(logLevel, logFormat)

	slog.Info("starting store server")

	connCtx, connCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connCancel()

	db, err := config.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(connCtx); err != nil {
		slog.Error("database ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to postgresql")

	rmqCtx, rmqCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer rmqCancel()

	rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer rmq.Close()

	codec, err := security.NewCodec([]byte(cfg.EncryptionKey), cfg.HashSalt)
	if err != nil {
		slog.Error("failed to build payment codec", slog.String("error", err.Error()))
		os.Exit(1)
	}
	guard := security.NewGuard([]byte(cfg.CSRFSecret), 0)
	tokenizer := security.NewPaymentTokenizer([]byte(cfg.PaymentTokenSecret), 0)
	store := security.NewSecureStore(codec, security.NewMemoryKV())

	facade := service.NewSecurityFacade(codec, guard, tokenizer, store)
	if err := facade.Initialize(); err != nil {
		slog.Error("failed to initialize security facade", slog.String("error", err.Error()))
		os.Exit(1)
	}

	userRepo := postgres.NewUserRepository(db)
	sessionRepo, err := postgres.NewSessionRepository(db)
	if err != nil {
		slog.Error("failed to build session repository", slog.String("error", err.Error()))
		os.Exit(1)
	}
	orderRepo := postgres.NewOrderRepository(db)
	privacyRepo := postgres.NewPrivacyRepository(db)

	authService := service.NewAuthService(userRepo, sessionRepo, guard)
	checkoutService := service.NewCheckoutService(orderRepo, codec, tokenizer, rmq)
	privacyService := service.NewPrivacyService(userRepo, orderRepo, privacyRepo, facade)

	hub := activity.NewHub()

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go func() {
		if err := hub.Run(hubCtx); err != nil && err != context.Canceled {
			slog.Error("hub error", slog.String("error", err.Error()))
		}
	}()
	slog.Info("session activity hub started")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go startSessionCleanup(ctx, sessionRepo)
	slog.Info("session cleanup task started")

	authHandler := handler.NewAuthHandler(authService, facade)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService)
	privacyHandler := handler.NewPrivacyHandler(privacyService)
	sessionHandler := handler.NewSessionHandler(hub, authService, cfg.SessionIdleTimeout, cfg.SessionIdleWarning)

	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(middleware.ParseOrigins(cfg.AllowedOrigins)))
	r.Use(middleware.Metrics())
	// r.Use(middleware.OpenAPIValidator(middleware.DefaultOpenAPIValidatorConfig()))

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(db, rmq))
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	r.Route("/api/v1", func(r chi.Router) {
		authLimiter := middleware.NewRateLimiter(5, 10)
		apiLimiter := middleware.NewRateLimiter(20, 50)

		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Middleware())
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/password-strength", authHandler.PasswordStrength)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(sessionRepo))
			r.Use(middleware.CSRF(guard))
			r.Use(apiLimiter.Middleware())

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/logout", authHandler.Logout)
			r.Post("/auth/logout-all", authHandler.LogoutAll)
			r.Get("/auth/csrf", authHandler.CSRFToken)

			r.Post("/checkout/payment-token", checkoutHandler.MintPaymentToken)
			r.Post("/checkout", checkoutHandler.PlaceOrder)
			r.Get("/orders", checkoutHandler.ListOrders)
			r.Get("/orders/{id}", checkoutHandler.GetOrder)

			r.Get("/privacy/export", privacyHandler.ExportData)
			r.Delete("/privacy/account", privacyHandler.DeleteAccount)
		})
	})

	// WebSocket upgrades cannot carry custom CSRF headers; cookie auth only
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(sessionRepo))
		r.Get("/ws/session", sessionHandler.HandleConnection)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("store server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()
	hubCancel()

	time.Sleep(100 * time.Millisecond)

	slog.Info("server stopped gracefully")
}

// startSessionCleanup runs a background task to delete expired sessions
func startSessionCleanup(ctx context.Context, repo domain.SessionRepository) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping session cleanup task")
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			count, err := repo.DeleteExpired(cleanupCtx)
			if err != nil {
				slog.Error("session cleanup failed", slog.String("error", err.Error()))
			} else {
				slog.Info("session cleanup completed",
					slog.Int64("sessions_deleted", count))
			}
			cancel()
		}
	}
}
