package handler

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/collectline-payments/internal/api_gateway/service"
	"github.com/collectline-payments/internal/domain/debt"
	"github.com/collectline-payments/internal/domain/plan"
	"github.com/collectline-payments/internal/gateway"
	"github.com/gin-gonic/gin"
)

// PlanHandler handles HTTP requests for payment plan operations
type PlanHandler struct {
	planService service.PlanService
	logger      *slog.Logger
}

// NewPlanHandler creates a new payment plan handler
func NewPlanHandler(logger *slog.Logger, planService service.PlanService) *PlanHandler {
	return &PlanHandler{
		planService: planService,
		logger:      logger,
	}
}

// Preview generates a schedule from terms without persisting anything
func (h *PlanHandler) Preview(c *gin.Context) {
	var query PreviewScheduleQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	terms, err := query.ToTerms()
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	entries, err := h.planService.PreviewSchedule(terms)
	if err != nil {
		var invalid plan.ErrInvalidTerms
		if errors.As(err, &invalid) {
			RespondBadRequest(c, invalid.Error())
			return
		}
		h.logger.Error("Failed to preview schedule", "error", err)
		RespondInternalError(c)
		return
	}

	out := make([]ScheduleEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, mapEntryToResponse(e))
	}
	RespondOK(c, out)
}

// Create opens a payment plan: saves the card, persists the plan with its
// schedule and charges everything already due
func (h *PlanHandler) Create(c *gin.Context) {
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	terms, err := req.Terms.ToTerms()
	if err != nil {
		RespondBadRequest(c, "Invalid start date: "+err.Error())
		return
	}

	result, err := h.planService.CreatePlan(c.Request.Context(), service.CreatePlanParams{
		DebtID: req.DebtID,
		Terms:  terms,
		Card: gateway.CardDetails{
			Number:     req.Card.Number,
			Expiration: req.Card.Expiration,
			CVV:        req.Card.CVV,
			Cardholder: req.Card.Cardholder,
			Street:     req.Card.Street,
			PostalCode: req.Card.PostalCode,
		},
	})
	if err != nil {
		var invalid plan.ErrInvalidTerms
		if errors.As(err, &invalid) {
			RespondBadRequest(c, invalid.Error())
			return
		}
		var debtNotFound debt.ErrDebtNotFound
		if errors.As(err, &debtNotFound) {
			RespondNotFound(c, "Debt not found")
			return
		}
		var declined gateway.GatewayDeclineError
		if errors.As(err, &declined) {
			h.logger.Warn("Down payment declined, plan creation aborted", "debt_id", req.DebtID, "result", declined.Text)
			RespondPaymentRequired(c, "Down payment was declined: "+declined.Text)
			return
		}
		var transport gateway.GatewayTransportError
		if errors.As(err, &transport) {
			h.logger.Error("Payment processor unavailable during plan creation", "debt_id", req.DebtID, "error", err)
			RespondBadGateway(c, "")
			return
		}
		h.logger.Error("Failed to create payment plan", "debt_id", req.DebtID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapCreatePlanResult(result))
}

// ListByDebt retrieves a debt's payment plans with their schedules
func (h *PlanHandler) ListByDebt(c *gin.Context) {
	debtID, err := strconv.ParseInt(c.Param("debtID"), 10, 64)
	if err != nil || debtID <= 0 {
		RespondBadRequest(c, "Invalid debt ID")
		return
	}

	results, err := h.planService.ListPlansByDebt(c.Request.Context(), debtID)
	if err != nil {
		h.logger.Error("Failed to list payment plans", "debt_id", debtID, "error", err)
		RespondInternalError(c)
		return
	}

	out := make([]PlanWithScheduleResponse, 0, len(results))
	for _, r := range results {
		out = append(out, mapCreatePlanResult(r))
	}
	RespondOK(c, out)
}

func mapCreatePlanResult(r *service.CreatePlanResult) PlanWithScheduleResponse {
	resp := PlanWithScheduleResponse{
		Plan:     mapPlanToResponse(r.Plan),
		Schedule: make([]ScheduledPaymentResponse, 0, len(r.Schedule)),
	}
	for _, sp := range r.Schedule {
		resp.Schedule = append(resp.Schedule, mapScheduledPaymentToResponse(sp))
	}
	return resp
}
