package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/collectline-payments/internal/api_gateway/handler"
	"github.com/collectline-payments/internal/api_gateway/middleware"
	"github.com/gin-gonic/gin"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	planHandler *handler.PlanHandler,
	paymentHandler *handler.PaymentHandler,
	adminHandler *handler.AdminHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Payment plan operations
		plans := v1.Group("/payment-plans")
		{
			plans.GET("/preview", planHandler.Preview)
			plans.POST("", planHandler.Create)
		}

		// Per-debt listings
		debts := v1.Group("/debts")
		{
			debts.GET("/:debtID/payment-plans", planHandler.ListByDebt)
			debts.GET("/:debtID/payments", paymentHandler.ListByDebt)
		}

		// Payment operations
		payments := v1.Group("/payments")
		{
			payments.POST("", paymentHandler.RecordManual)
			payments.POST("/one-off", paymentHandler.ChargeOneOff)
		}

		v1.POST("/scheduled-payments/:id/execute", paymentHandler.Execute)
		v1.GET("/gateway/verify", paymentHandler.VerifyGateway)

		// Operator tooling
		admin := v1.Group("/admin")
		{
			admin.GET("/scheduled-payments", adminHandler.ListScheduledPayments)
			admin.POST("/run-due-payments", adminHandler.RunDuePayments)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
