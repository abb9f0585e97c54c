package handler

import (
	"log/slog"

	"github.com/collectline-payments/internal/api_gateway/service"
	"github.com/collectline-payments/internal/domain/schedule"
	"github.com/gin-gonic/gin"
)

// AdminHandler handles HTTP requests for operator tooling
type AdminHandler struct {
	adminService service.AdminService
	logger       *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(logger *slog.Logger, adminService service.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		logger:       logger,
	}
}

// ListScheduledPayments retrieves scheduled payments matching the filter
func (h *AdminHandler) ListScheduledPayments(c *gin.Context) {
	var filter ScheduledPaymentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		RespondBadRequest(c, "Invalid filter parameters: "+err.Error())
		return
	}

	rows, err := h.adminService.ListScheduledPayments(c.Request.Context(), schedule.ListFilter{
		Status: filter.Status,
		DebtID: filter.DebtID,
		Days:   filter.Days,
		Limit:  filter.Limit,
	})
	if err != nil {
		h.logger.Error("Failed to list scheduled payments", "error", err)
		RespondInternalError(c)
		return
	}

	out := make([]ScheduledPaymentResponse, 0, len(rows))
	for _, sp := range rows {
		out = append(out, mapScheduledPaymentToResponse(sp))
	}
	RespondOK(c, out)
}

// RunDuePayments triggers a collection pass outside the timed windows
func (h *AdminHandler) RunDuePayments(c *gin.Context) {
	summary, err := h.adminService.RunDuePayments(c.Request.Context())
	if err != nil {
		h.logger.Error("Manual collection pass failed", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, summary)
}
