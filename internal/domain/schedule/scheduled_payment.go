package schedule

import (
	"time"

	"github.com/collectline-payments/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ScheduledPayment is one installment (or down payment) of a plan, tracked
// through its own attempt lifecycle. Rows are created in a batch at plan
// creation and mutated exclusively by the execution engine as attempts occur.
type ScheduledPayment struct {
	ID           int64                 `json:"id"`
	PlanID       int64                 `json:"plan_id"`
	Amount       decimal.Decimal       `json:"amount"`
	DueDate      time.Time             `json:"due_date"` // calendar date, no time-of-day
	Status       shared.ScheduleStatus `json:"status"`
	AttemptCount int                   `json:"attempt_count"`

	// NextAttemptAt is the absolute timestamp the runner selects on; nil on terminal rows
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`

	// Diagnostics from the most recent attempt
	TransactionReference *string `json:"transaction_reference,omitempty"`
	PaymentMethod        *string `json:"payment_method,omitempty"`
	LastGatewayKey       *string `json:"last_gateway_key,omitempty"`
	LastResultCode       *string `json:"last_result_code,omitempty"`
	LastResult           *string `json:"last_result,omitempty"`
	LastDeclineReason    *string `json:"last_decline_reason,omitempty"`
	LastError            *string `json:"last_error,omitempty"`

	// ActualPaymentID links a settled row to its ledger entry
	ActualPaymentID *int64    `json:"actual_payment_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewScheduledPayment creates a pending row for one schedule entry.
// The first attempt is armed for the morning run window on the due date.
func NewScheduledPayment(planID int64, amount decimal.Decimal, dueDate time.Time, cal Calendar) *ScheduledPayment {
	firstAttempt := cal.FirstAttemptAt(dueDate)
	return &ScheduledPayment{
		PlanID:        planID,
		Amount:        amount,
		DueDate:       dueDate,
		Status:        shared.ScheduleStatusPending,
		AttemptCount:  0,
		NextAttemptAt: &firstAttempt,
		CreatedAt:     time.Now(),
	}
}

// Attemptable reports whether the runner may still pick this row up
func (sp *ScheduledPayment) Attemptable() bool {
	return sp.Status == shared.ScheduleStatusPending || sp.Status == shared.ScheduleStatusRetrying
}

// Diagnostics carries per-attempt gateway results onto a schedule row.
// Empty strings persist as NULL.
type Diagnostics struct {
	TransactionReference string
	PaymentMethod        shared.PaymentMethod
	GatewayKey           string
	ResultCode           string
	Result               string
	DeclineReason        shared.DeclineReason
	ErrorMessage         string
}
