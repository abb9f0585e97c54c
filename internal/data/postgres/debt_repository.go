package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/collectline-payments/internal/domain/debt"
	"github.com/collectline-payments/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// DebtRepository implements the debt.Repository interface for PostgreSQL
type DebtRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewDebtRepository creates a new PostgreSQL debt repository
func NewDebtRepository(logger *slog.Logger, db *persistence.PostgresDB) debt.Repository {
	return &DebtRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls.
func (r *DebtRepository) WithTx(tx pgx.Tx) debt.Repository {
	return &DebtRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const debtColumns = `id, debtor_id, portfolio_id, client_reference_number, original_amount,
		amount_due, total_paid, status, last_payment_amount, last_payment_date,
		last_payment_id, last_payment_reference, last_payment_method,
		has_payment_plan, created_at, updated_at`

// GetByID retrieves a debt by its ID
func (r *DebtRepository) GetByID(ctx context.Context, id int64) (*debt.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM debts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetForUpdate retrieves a debt with a row lock held for the remainder of
// the transaction. Balance mutations must go through this path so two
// concurrent attempts against the same debt serialize.
func (r *DebtRepository) GetForUpdate(ctx context.Context, id int64) (*debt.Debt, error) {
	query := `SELECT ` + debtColumns + ` FROM debts WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *DebtRepository) getOne(ctx context.Context, query string, id int64) (*debt.Debt, error) {
	var d debt.Debt
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.DebtorID,
		&d.PortfolioID,
		&d.ClientReferenceNumber,
		&d.OriginalAmount,
		&d.AmountDue,
		&d.TotalPaid,
		&d.Status,
		&d.LastPaymentAmount,
		&d.LastPaymentDate,
		&d.LastPaymentID,
		&d.LastPaymentReference,
		&d.LastPaymentMethod,
		&d.HasPaymentPlan,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, debt.ErrDebtNotFound{ID: id}
		}
		r.logger.Error("Failed to get debt", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get debt: %w", err)
	}

	return &d, nil
}

// GetBillingDetails retrieves the debtor identity and address columns the
// gateway requires when saving a card
func (r *DebtRepository) GetBillingDetails(ctx context.Context, debtID int64) (*debt.BillingDetails, error) {
	query := `
		SELECT d.id, dr.first_name, dr.last_name,
			COALESCE(dr.street, ''), COALESCE(dr.city, ''), COALESCE(dr.state, ''),
			COALESCE(dr.postal_code, ''), COALESCE(dr.phone, ''), COALESCE(dr.email, '')
		FROM debts d
		JOIN debtors dr ON dr.id = d.debtor_id
		WHERE d.id = $1
	`

	var b debt.BillingDetails
	err := r.querier.QueryRow(ctx, query, debtID).Scan(
		&b.DebtID,
		&b.FirstName,
		&b.LastName,
		&b.Street,
		&b.City,
		&b.State,
		&b.PostalCode,
		&b.Phone,
		&b.Email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, debt.ErrDebtNotFound{ID: debtID}
		}
		r.logger.Error("Failed to get billing details", "debt_id", debtID, "error", err)
		return nil, fmt.Errorf("failed to get billing details: %w", err)
	}

	return &b, nil
}

// GetCommissionRate retrieves the commission percentage of the debt's portfolio
func (r *DebtRepository) GetCommissionRate(ctx context.Context, debtID int64) (decimal.Decimal, error) {
	query := `
		SELECT p.commission_rate
		FROM debts d
		JOIN portfolios p ON p.id = d.portfolio_id
		WHERE d.id = $1
	`

	var rate decimal.Decimal
	err := r.querier.QueryRow(ctx, query, debtID).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, debt.ErrDebtNotFound{ID: debtID}
		}
		r.logger.Error("Failed to get commission rate", "debt_id", debtID, "error", err)
		return decimal.Zero, fmt.Errorf("failed to get commission rate: %w", err)
	}

	return rate, nil
}

// Update persists the mutable balance and status columns
func (r *DebtRepository) Update(ctx context.Context, d *debt.Debt) error {
	query := `
		UPDATE debts
		SET amount_due = $1, total_paid = $2, status = $3, last_payment_amount = $4,
			last_payment_date = $5, last_payment_id = $6, last_payment_reference = $7,
			last_payment_method = $8, has_payment_plan = $9, updated_at = NOW()
		WHERE id = $10
	`

	result, err := r.querier.Exec(ctx, query,
		d.AmountDue,
		d.TotalPaid,
		d.Status,
		d.LastPaymentAmount,
		d.LastPaymentDate,
		d.LastPaymentID,
		d.LastPaymentReference,
		d.LastPaymentMethod,
		d.HasPaymentPlan,
		d.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update debt", "id", d.ID, "error", err)
		return fmt.Errorf("failed to update debt: %w", err)
	}
	if result.RowsAffected() == 0 {
		return debt.ErrDebtNotFound{ID: d.ID}
	}

	return nil
}

// SetHasPaymentPlan flags the debt as covered by an active plan and moves
// its status alongside
func (r *DebtRepository) SetHasPaymentPlan(ctx context.Context, debtID int64, has bool) error {
	query := `
		UPDATE debts
		SET has_payment_plan = $1,
			status = CASE WHEN $1 AND status NOT IN ('paid', 'disputed') THEN 'payment_plan' ELSE status END,
			updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, has, debtID)
	if err != nil {
		r.logger.Error("Failed to set payment plan flag", "debt_id", debtID, "error", err)
		return fmt.Errorf("failed to set payment plan flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return debt.ErrDebtNotFound{ID: debtID}
	}

	return nil
}
