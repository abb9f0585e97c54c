package handler

import (
	"fmt"
	"time"

	"github.com/collectline-payments/internal/domain/payment"
	"github.com/collectline-payments/internal/domain/plan"
	"github.com/collectline-payments/internal/domain/schedule"
	"github.com/collectline-payments/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// PlanTermsRequest represents the financial terms of a payment plan
type PlanTermsRequest struct {
	TotalSettlementAmount decimal.Decimal `json:"total_settlement_amount" binding:"required"`
	DownPaymentAmount     decimal.Decimal `json:"down_payment_amount"`
	InstallmentCount      int             `json:"installment_count" binding:"min=0"`
	Frequency             string          `json:"frequency,omitempty"`
	StartDate             string          `json:"start_date" binding:"required"`
}

// PreviewScheduleQuery carries plan terms as query parameters. Amounts come
// in as strings because decimals have no form binding.
type PreviewScheduleQuery struct {
	TotalSettlementAmount string `form:"total_settlement_amount" binding:"required"`
	DownPaymentAmount     string `form:"down_payment_amount"`
	InstallmentCount      int    `form:"installment_count" binding:"min=0"`
	Frequency             string `form:"frequency"`
	StartDate             string `form:"start_date" binding:"required"`
}

// ToTerms converts the query into domain terms
func (q PreviewScheduleQuery) ToTerms() (plan.Terms, error) {
	total, err := decimal.NewFromString(q.TotalSettlementAmount)
	if err != nil {
		return plan.Terms{}, fmt.Errorf("invalid total_settlement_amount: %w", err)
	}
	down := decimal.Zero
	if q.DownPaymentAmount != "" {
		down, err = decimal.NewFromString(q.DownPaymentAmount)
		if err != nil {
			return plan.Terms{}, fmt.Errorf("invalid down_payment_amount: %w", err)
		}
	}
	start, err := time.Parse(dateLayout, q.StartDate)
	if err != nil {
		return plan.Terms{}, fmt.Errorf("invalid start_date: %w", err)
	}
	return plan.Terms{
		Total:            total,
		DownPayment:      down,
		InstallmentCount: q.InstallmentCount,
		Frequency:        shared.Frequency(q.Frequency),
		StartDate:        start,
	}, nil
}

// ToTerms converts the request into domain terms
func (r PlanTermsRequest) ToTerms() (plan.Terms, error) {
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return plan.Terms{}, err
	}
	return plan.Terms{
		Total:            r.TotalSettlementAmount,
		DownPayment:      r.DownPaymentAmount,
		InstallmentCount: r.InstallmentCount,
		Frequency:        shared.Frequency(r.Frequency),
		StartDate:        start,
	}, nil
}

// CardRequest represents card details submitted for tokenization. The raw
// number never leaves the request scope.
type CardRequest struct {
	Number     string `json:"number" binding:"required"`
	Expiration string `json:"expiration" binding:"required,len=4"`
	CVV        string `json:"cvv,omitempty"`
	Cardholder string `json:"cardholder,omitempty"`
	Street     string `json:"street,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// CreatePlanRequest represents a request to open a payment plan
type CreatePlanRequest struct {
	DebtID int64            `json:"debt_id" binding:"required,gt=0"`
	Terms  PlanTermsRequest `json:"terms" binding:"required"`
	Card   CardRequest      `json:"card" binding:"required"`
}

// ManualPaymentRequest represents a payment recorded without a gateway charge
type ManualPaymentRequest struct {
	DebtID      int64           `json:"debt_id" binding:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	PaymentDate string          `json:"payment_date,omitempty"`
}

// OneOffChargeRequest represents an ad hoc charge against a saved card token
type OneOffChargeRequest struct {
	DebtID int64           `json:"debt_id" binding:"required,gt=0"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

// ScheduledPaymentFilter represents query parameters for the operator listing
type ScheduledPaymentFilter struct {
	Status string `form:"status" binding:"omitempty,oneof=pending processing retrying paid declined missed cancelled"`
	DebtID int64  `form:"debt_id" binding:"omitempty,gt=0"`
	Days   int    `form:"days" binding:"omitempty,gt=0"`
	Limit  int    `form:"limit,default=100" binding:"min=1,max=1000"`
}

// ScheduleEntryResponse represents one line of a previewed schedule
type ScheduleEntryResponse struct {
	DueDate string          `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
	Kind    string          `json:"kind"`
}

// PlanResponse represents a payment plan in API responses
type PlanResponse struct {
	ID                    int64           `json:"id"`
	DebtID                int64           `json:"debt_id"`
	TotalSettlementAmount decimal.Decimal `json:"total_settlement_amount"`
	DownPaymentAmount     decimal.Decimal `json:"down_payment_amount"`
	InstallmentCount      int             `json:"installment_count"`
	Frequency             string          `json:"frequency"`
	StartDate             string          `json:"start_date"`
	Status                string          `json:"status"`
	CreatedAt             string          `json:"created_at"`
}

// ScheduledPaymentResponse represents a scheduled payment in API responses
type ScheduledPaymentResponse struct {
	ID              int64           `json:"id"`
	PlanID          int64           `json:"plan_id"`
	Amount          decimal.Decimal `json:"amount"`
	DueDate         string          `json:"due_date"`
	Status          string          `json:"status"`
	AttemptCount    int             `json:"attempt_count"`
	NextAttemptAt   string          `json:"next_attempt_at,omitempty"`
	LastAttemptAt   string          `json:"last_attempt_at,omitempty"`
	ProcessedAt     string          `json:"processed_at,omitempty"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	DeclineReason   string          `json:"decline_reason,omitempty"`
	ActualPaymentID *int64          `json:"actual_payment_id,omitempty"`
}

// PlanWithScheduleResponse represents a plan together with its schedule
type PlanWithScheduleResponse struct {
	Plan     PlanResponse               `json:"plan"`
	Schedule []ScheduledPaymentResponse `json:"schedule"`
}

// PaymentResponse represents a ledger row in API responses
type PaymentResponse struct {
	ID                   int64           `json:"id"`
	DebtID               int64           `json:"debt_id"`
	ScheduledPaymentID   *int64          `json:"scheduled_payment_id,omitempty"`
	Amount               decimal.Decimal `json:"amount"`
	AgencyPortion        decimal.Decimal `json:"agency_portion"`
	ClientPortion        decimal.Decimal `json:"client_portion"`
	Status               string          `json:"status"`
	PaymentMethod        string          `json:"payment_method"`
	PaymentDate          string          `json:"payment_date"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
	DeclineReason        string          `json:"decline_reason,omitempty"`
	CreatedAt            string          `json:"created_at"`
}

// AttemptResponse represents the outcome of a charge attempt
type AttemptResponse struct {
	Outcome string          `json:"outcome"`
	Payment PaymentResponse `json:"payment"`
}

func mapPlanToResponse(p *plan.Plan) PlanResponse {
	return PlanResponse{
		ID:                    p.ID,
		DebtID:                p.DebtID,
		TotalSettlementAmount: p.TotalSettlementAmount,
		DownPaymentAmount:     p.DownPaymentAmount,
		InstallmentCount:      p.InstallmentCount,
		Frequency:             string(p.Frequency),
		StartDate:             p.StartDate.Format(dateLayout),
		Status:                string(p.Status),
		CreatedAt:             p.CreatedAt.Format(time.RFC3339),
	}
}

func mapEntryToResponse(e plan.Entry) ScheduleEntryResponse {
	return ScheduleEntryResponse{
		DueDate: e.DueDate.Format(dateLayout),
		Amount:  e.Amount,
		Kind:    string(e.Kind),
	}
}

func mapScheduledPaymentToResponse(sp *schedule.ScheduledPayment) ScheduledPaymentResponse {
	resp := ScheduledPaymentResponse{
		ID:              sp.ID,
		PlanID:          sp.PlanID,
		Amount:          sp.Amount,
		DueDate:         sp.DueDate.Format(dateLayout),
		Status:          string(sp.Status),
		AttemptCount:    sp.AttemptCount,
		ActualPaymentID: sp.ActualPaymentID,
	}
	if sp.NextAttemptAt != nil {
		resp.NextAttemptAt = sp.NextAttemptAt.Format(time.RFC3339)
	}
	if sp.LastAttemptAt != nil {
		resp.LastAttemptAt = sp.LastAttemptAt.Format(time.RFC3339)
	}
	if sp.ProcessedAt != nil {
		resp.ProcessedAt = sp.ProcessedAt.Format(time.RFC3339)
	}
	if sp.PaymentMethod != nil {
		resp.PaymentMethod = *sp.PaymentMethod
	}
	if sp.LastDeclineReason != nil {
		resp.DeclineReason = *sp.LastDeclineReason
	}
	return resp
}

func mapPaymentToResponse(p *payment.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:                 p.ID,
		DebtID:             p.DebtID,
		ScheduledPaymentID: p.ScheduledPaymentID,
		Amount:             p.Amount,
		AgencyPortion:      p.AgencyPortion,
		ClientPortion:      p.ClientPortion,
		Status:             string(p.Status),
		PaymentMethod:      string(p.PaymentMethod),
		PaymentDate:        p.PaymentDate.Format(time.RFC3339),
		CreatedAt:          p.CreatedAt.Format(time.RFC3339),
	}
	if p.TransactionReference != nil {
		resp.TransactionReference = *p.TransactionReference
	}
	if p.DeclineReason != nil {
		resp.DeclineReason = *p.DeclineReason
	}
	return resp
}
