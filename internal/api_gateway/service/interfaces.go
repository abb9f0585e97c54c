package service

import (
	"context"
	"time"

	"github.com/collectline-payments/internal/domain/payment"
	"github.com/collectline-payments/internal/domain/plan"
	"github.com/collectline-payments/internal/domain/schedule"
	"github.com/collectline-payments/internal/executor"
	"github.com/collectline-payments/internal/gateway"
	"github.com/collectline-payments/internal/runner"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TxRunner runs a function inside a database transaction. Satisfied by
// persistence.PostgresDB.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// CreatePlanParams carries everything needed to open a payment plan
type CreatePlanParams struct {
	DebtID int64
	Terms  plan.Terms
	Card   gateway.CardDetails
}

// CreatePlanResult is the outcome of a successful plan creation
type CreatePlanResult struct {
	Plan     *plan.Plan
	Schedule []*schedule.ScheduledPayment
}

// PlanService defines the interface for payment plan operations
type PlanService interface {
	// PreviewSchedule generates a schedule from terms without persisting anything
	PreviewSchedule(terms plan.Terms) ([]plan.Entry, error)

	// CreatePlan tokenizes the card, creates the plan with its schedule and
	// charges everything already due. A declined down payment aborts the
	// whole creation; the saved card token survives the abort.
	CreatePlan(ctx context.Context, params CreatePlanParams) (*CreatePlanResult, error)

	// ListPlansByDebt retrieves a debt's payment plans with their schedules
	ListPlansByDebt(ctx context.Context, debtID int64) ([]*CreatePlanResult, error)
}

// ManualPaymentParams describes a payment recorded without a gateway charge
type ManualPaymentParams struct {
	DebtID      int64
	Amount      decimal.Decimal
	PaymentDate time.Time
}

// PaymentService defines the interface for payment execution and lookup
type PaymentService interface {
	// RecordManualPayment writes a ledger-only payment (check, money order)
	RecordManualPayment(ctx context.Context, params ManualPaymentParams) (*payment.Payment, error)

	// ChargeOneOff charges the debt's most recent active plan token outside
	// any schedule. Declines come back inside the Result after the audit
	// trail commits.
	ChargeOneOff(ctx context.Context, debtID int64, amount decimal.Decimal) (*executor.Result, error)

	// ExecuteScheduledPayment manually runs one scheduled payment ahead of
	// the runner. Returns ErrNotExecutable for rows that are already paid
	// or whose plan is no longer active.
	ExecuteScheduledPayment(ctx context.Context, scheduledPaymentID int64) (*executor.Result, error)

	// ListPaymentsByDebt retrieves a debt's payment ledger
	ListPaymentsByDebt(ctx context.Context, debtID int64, page, perPage int) ([]*payment.Payment, error)

	// VerifyGateway checks processor connectivity and credentials
	VerifyGateway(ctx context.Context) error
}

// AdminService defines the interface for operator tooling
type AdminService interface {
	// ListScheduledPayments retrieves rows matching the operator filter
	ListScheduledPayments(ctx context.Context, filter schedule.ListFilter) ([]*schedule.ScheduledPayment, error)

	// RunDuePayments triggers a runner pass outside the timed windows
	RunDuePayments(ctx context.Context) (*runner.Summary, error)
}
