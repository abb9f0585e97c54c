package payment

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrPaymentNotFound is returned when a payment with the specified ID doesn't exist
type ErrPaymentNotFound struct {
	ID int64
}

func (e ErrPaymentNotFound) Error() string {
	return fmt.Sprintf("payment with ID %d not found", e.ID)
}

// Repository defines the interface for payment ledger persistence
type Repository interface {
	// Create inserts a ledger row and populates its ID
	Create(ctx context.Context, p *Payment) error
	// GetByID retrieves a payment by its ID
	GetByID(ctx context.Context, id int64) (*Payment, error)
	// ListByDebt retrieves a debt's ledger, newest first
	ListByDebt(ctx context.Context, debtID int64, limit, offset int) ([]*Payment, error)
	// WithTx returns a new Repository that uses the provided transaction
	WithTx(tx pgx.Tx) Repository
}
