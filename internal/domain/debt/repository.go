package debt

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrDebtNotFound is returned when a debt with the specified ID doesn't exist
type ErrDebtNotFound struct {
	ID int64
}

func (e ErrDebtNotFound) Error() string {
	return fmt.Sprintf("debt with ID %d not found", e.ID)
}

// Repository defines the interface for debt persistence
type Repository interface {
	// GetByID retrieves a debt by its ID
	GetByID(ctx context.Context, id int64) (*Debt, error)
	// GetForUpdate retrieves a debt with a row lock held for the transaction
	GetForUpdate(ctx context.Context, id int64) (*Debt, error)
	// GetBillingDetails retrieves the debtor columns needed to save a card
	GetBillingDetails(ctx context.Context, debtID int64) (*BillingDetails, error)
	// GetCommissionRate retrieves the commission percentage of the debt's portfolio
	GetCommissionRate(ctx context.Context, debtID int64) (decimal.Decimal, error)
	// Update persists the mutable balance and status columns
	Update(ctx context.Context, d *Debt) error
	// SetHasPaymentPlan flags the debt as covered by an active plan
	SetHasPaymentPlan(ctx context.Context, debtID int64, has bool) error
	// WithTx returns a new Repository that uses the provided transaction
	WithTx(tx pgx.Tx) Repository
}
