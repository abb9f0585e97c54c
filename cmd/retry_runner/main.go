package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

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
	cfg, err := config.LoadConfig("retry_runner")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Retry Runner",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"timezone", cfg.Retry.TimeZone,
	)

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

	// Initialize payment executor and runner
	paymentExecutor := executor.NewExecutor(debtRepo, paymentRepo, scheduleRepo, gatewayClient, log)
	dueRunner, err := runner.NewRunner(postgresDB, scheduleRepo, paymentExecutor, eventProducer, &cfg.Retry, cfg.WorkerPool.Size, log)
	if err != nil {
		log.Error("Failed to initialize payment runner", "error", err)
		os.Exit(1)
	}

	// Initialize the window scheduler
	scheduler := runner.NewScheduler(dueRunner, log)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start the scheduler in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting window scheduler",
			"morning_hour", cfg.Retry.MorningHour,
			"evening_hour", cfg.Retry.EveningHour,
		)
		scheduler.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	<-quit
	log.Info("Shutdown signal received")

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("Scheduler stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	dueRunner.Release()

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err != nil {
		log.Error("Retry Runner shutdown completed with errors")
	} else {
		log.Info("Retry Runner shutdown completed successfully")
	}
}
