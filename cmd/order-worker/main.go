package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mlekara-shop/internal/config"
	"mlekara-shop/internal/gateway"
	"mlekara-shop/internal/messaging"
	"mlekara-shop/internal/observability"
	"mlekara-shop/internal/repository/postgres"
	"mlekara-shop/internal/security"
	"mlekara-shop/internal/service"
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

	slog.Info("starting order worker")

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

	// Outgoing gateway calls are signed through the facade
	facade := service.NewSecurityFacade(codec, guard, tokenizer, store)
	if err := facade.Initialize(); err != nil {
		slog.Error("failed to initialize security facade", slog.String("error", err.Error()))
		os.Exit(1)
	}

	orderRepo := postgres.NewOrderRepository(db)
	gatewayClient := gateway.NewClient(cfg.PaymentGatewayURL, facade)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := messaging.NewOrderEventConsumer(rmq, orderRepo, codec, gatewayClient)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("failed to start order consumer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("order consumer started")

	reconciler := messaging.NewReconciler(rmq, orderRepo, time.Minute, 2*time.Minute)
	reconciler.Start(ctx)
	slog.Info("order reconciler started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down order worker")
	cancel()
	time.Sleep(1 * time.Second)
	slog.Info("order worker stopped")
}
