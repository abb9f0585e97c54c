package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/collectline-payments/internal/api_gateway"
	"github.com/collectline-payments/internal/api_gateway/service"
	"github.com/collectline-payments/internal/config"
	"github.com/collectline-payments/internal/data/postgres"
	"github.com/collectline-payments/internal/executor"
	"github.com/collectline-payments/internal/gateway"
	"github.com/collectline-payments/internal/logger"
	"github.com/collectline-payments/internal/platform/messaging/producers"
	"github.com/collectline-payments/internal/platform/persistence"
	"github.com/collectline-payments/internal/runner"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize database with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for payment attempt events
	eventProducer, err := producers.NewPaymentEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	debtRepo := postgres.NewDebtRepository(log, postgresDB)
	planRepo := postgres.NewPlanRepository(log, postgresDB)
	scheduleRepo := postgres.NewScheduleRepository(log, postgresDB)
	paymentRepo := postgres.NewPaymentRepository(log, postgresDB)

	// Initialize payment gateway client
	gatewayClient := gateway.NewUSAePayClient(
		cfg.Gateway.APIKey,
		cfg.Gateway.APIPin,
		cfg.Gateway.BaseURL,
		cfg.Gateway.RequestTimeout,
		log,
	)

	// Initialize payment executor and runner (the runner backs the manual
	// collection pass endpoint)
	paymentExecutor := executor.NewExecutor(debtRepo, paymentRepo, scheduleRepo, gatewayClient, log)
	dueRunner, err := runner.NewRunner(postgresDB, scheduleRepo, paymentExecutor, eventProducer, &cfg.Retry, cfg.WorkerPool.Size, log)
	if err != nil {
		log.Error("Failed to initialize payment runner", "error", err)
		os.Exit(1)
	}

	// Initialize services
	planService := service.NewPlanService(postgresDB, planRepo, scheduleRepo, debtRepo, gatewayClient, paymentExecutor, dueRunner.Calendar(), log)
	paymentService := service.NewPaymentService(postgresDB, planRepo, scheduleRepo, paymentRepo, paymentExecutor, gatewayClient, eventProducer, log)
	adminService := service.NewAdminService(scheduleRepo, dueRunner, log)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, planService, paymentService, adminService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	dueRunner.Release()

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
