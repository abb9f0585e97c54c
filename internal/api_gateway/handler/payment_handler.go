package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/collectline-payments/internal/api_gateway/service"
	"github.com/collectline-payments/internal/domain/debt"
	"github.com/collectline-payments/internal/domain/plan"
	"github.com/collectline-payments/internal/domain/schedule"
	"github.com/collectline-payments/internal/executor"
	"github.com/collectline-payments/internal/gateway"
	"github.com/gin-gonic/gin"
)

// PaymentHandler handles HTTP requests for payment operations
type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(logger *slog.Logger, paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// RecordManual records a ledger-only payment (check, money order)
func (h *PaymentHandler) RecordManual(c *gin.Context) {
	var req ManualPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if !req.Amount.IsPositive() {
		RespondBadRequest(c, "Amount must be positive")
		return
	}

	var paymentDate time.Time
	if req.PaymentDate != "" {
		var err error
		paymentDate, err = time.Parse(dateLayout, req.PaymentDate)
		if err != nil {
			RespondBadRequest(c, "Invalid payment date: "+err.Error())
			return
		}
	}

	pay, err := h.paymentService.RecordManualPayment(c.Request.Context(), service.ManualPaymentParams{
		DebtID:      req.DebtID,
		Amount:      req.Amount,
		PaymentDate: paymentDate,
	})
	if err != nil {
		var debtNotFound debt.ErrDebtNotFound
		if errors.As(err, &debtNotFound) {
			RespondNotFound(c, "Debt not found")
			return
		}
		h.logger.Error("Failed to record manual payment", "debt_id", req.DebtID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapPaymentToResponse(pay))
}

// ChargeOneOff charges the debt's saved card token outside any schedule
func (h *PaymentHandler) ChargeOneOff(c *gin.Context) {
	var req OneOffChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if !req.Amount.IsPositive() {
		RespondBadRequest(c, "Amount must be positive")
		return
	}

	result, err := h.paymentService.ChargeOneOff(c.Request.Context(), req.DebtID, req.Amount)
	if err != nil {
		h.respondAttemptError(c, err, req.DebtID)
		return
	}

	h.respondAttempt(c, result)
}

// Execute manually runs one scheduled payment ahead of the runner
func (h *PaymentHandler) Execute(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		RespondBadRequest(c, "Invalid scheduled payment ID")
		return
	}

	result, err := h.paymentService.ExecuteScheduledPayment(c.Request.Context(), id)
	if err != nil {
		var notExecutable service.ErrNotExecutable
		if errors.As(err, &notExecutable) {
			RespondConflict(c, notExecutable.Error())
			return
		}
		var spNotFound schedule.ErrScheduledPaymentNotFound
		if errors.As(err, &spNotFound) {
			RespondNotFound(c, "Scheduled payment not found")
			return
		}
		h.logger.Error("Failed to execute scheduled payment", "scheduled_payment_id", id, "error", err)
		RespondInternalError(c)
		return
	}

	h.respondAttempt(c, result)
}

// ListByDebt retrieves a debt's payment ledger
func (h *PaymentHandler) ListByDebt(c *gin.Context) {
	debtID, err := strconv.ParseInt(c.Param("debtID"), 10, 64)
	if err != nil || debtID <= 0 {
		RespondBadRequest(c, "Invalid debt ID")
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	payments, err := h.paymentService.ListPaymentsByDebt(c.Request.Context(), debtID, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list payments", "debt_id", debtID, "error", err)
		RespondInternalError(c)
		return
	}

	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, mapPaymentToResponse(p))
	}
	RespondWithPaginatedData(c, http.StatusOK, out, params.Page, params.PerPage)
}

// VerifyGateway checks payment processor connectivity and credentials
func (h *PaymentHandler) VerifyGateway(c *gin.Context) {
	if err := h.paymentService.VerifyGateway(c.Request.Context()); err != nil {
		h.logger.Error("Gateway verification failed", "error", err)
		RespondBadGateway(c, "Payment processor verification failed")
		return
	}
	RespondOK(c, gin.H{"status": "ok"})
}

// respondAttempt maps a committed attempt result onto the HTTP status:
// settled attempts return 200, declines 402 and transport failures 502.
// The ledger row is committed either way.
func (h *PaymentHandler) respondAttempt(c *gin.Context, result *executor.Result) {
	switch result.Outcome {
	case executor.OutcomePaid:
		RespondOK(c, AttemptResponse{
			Outcome: string(result.Outcome),
			Payment: mapPaymentToResponse(result.Payment),
		})
	case executor.OutcomeDeclined:
		message := "Payment was declined"
		if result.Charge != nil && result.Charge.ResultText != "" {
			message = "Payment was declined: " + result.Charge.ResultText
		}
		RespondPaymentRequired(c, message)
	default:
		RespondBadGateway(c, "")
	}
}

func (h *PaymentHandler) respondAttemptError(c *gin.Context, err error, debtID int64) {
	var debtNotFound debt.ErrDebtNotFound
	if errors.As(err, &debtNotFound) {
		RespondNotFound(c, "Debt not found")
		return
	}
	var noToken plan.ErrNoActiveToken
	if errors.As(err, &noToken) {
		RespondNotFound(c, "No active payment plan with a saved card for this debt")
		return
	}
	var declined gateway.GatewayDeclineError
	if errors.As(err, &declined) {
		RespondPaymentRequired(c, "Payment was declined: "+declined.Text)
		return
	}
	var transport gateway.GatewayTransportError
	if errors.As(err, &transport) {
		RespondBadGateway(c, "")
		return
	}
	h.logger.Error("Payment attempt failed", "debt_id", debtID, "error", err)
	RespondInternalError(c)
}
