package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrScheduledPaymentNotFound is returned when a scheduled payment with the specified ID doesn't exist
type ErrScheduledPaymentNotFound struct {
	ID int64
}

func (e ErrScheduledPaymentNotFound) Error() string {
	return fmt.Sprintf("scheduled payment with ID %d not found", e.ID)
}

// ClaimedRow is a scheduled payment locked for execution, joined with the
// plan columns an attempt needs.
type ClaimedRow struct {
	ScheduledPayment
	DebtID    int64
	CardToken string
}

// ExecutionRow is a single row fetched for a manually triggered attempt
type ExecutionRow struct {
	ScheduledPayment
	DebtID     int64
	CardToken  string
	PlanStatus string
}

// ListFilter narrows the operator listing of scheduled payments
type ListFilter struct {
	Status string
	DebtID int64
	Days   int
	Limit  int
}

// Repository defines the interface for scheduled payment persistence
type Repository interface {
	// Create inserts a single row and populates its ID
	Create(ctx context.Context, sp *ScheduledPayment) error
	// CreateBatch inserts the full schedule of a new plan
	CreateBatch(ctx context.Context, rows []*ScheduledPayment) error
	// GetByID retrieves a scheduled payment by its ID
	GetByID(ctx context.Context, id int64) (*ScheduledPayment, error)
	// GetForExecution retrieves a row with the plan columns needed to
	// charge it, locking the row for the remainder of the transaction
	GetForExecution(ctx context.Context, id int64) (*ExecutionRow, error)
	// ListByPlan retrieves a plan's schedule ordered by due date
	ListByPlan(ctx context.Context, planID int64) ([]*ScheduledPayment, error)
	// List retrieves rows matching the operator filter, newest due first
	List(ctx context.Context, filter ListFilter) ([]*ScheduledPayment, error)

	// ClaimDue atomically selects up to limit attemptable rows whose
	// next_attempt_at has passed, marks them processing and bumps their
	// attempt count. Claimed rows are invisible to concurrent claimers.
	ClaimDue(ctx context.Context, now time.Time, cal Calendar, limit int) ([]*ClaimedRow, error)

	// MarkPaid settles a row against its ledger entry
	MarkPaid(ctx context.Context, id int64, paymentID int64, d Diagnostics) error
	// MarkRetrying records a retryable decline and arms the next attempt
	MarkRetrying(ctx context.Context, id int64, d Diagnostics, nextAttemptAt time.Time) error
	// MarkDeclined records a terminal decline
	MarkDeclined(ctx context.Context, id int64, d Diagnostics) error
	// RecordAttemptDecline is MarkDeclined plus an attempt count bump, for
	// attempts that did not pass through ClaimDue
	RecordAttemptDecline(ctx context.Context, id int64, d Diagnostics) error

	// WithTx returns a new Repository that uses the provided transaction
	WithTx(tx pgx.Tx) Repository
}
