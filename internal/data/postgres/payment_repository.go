package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/collectline-payments/internal/domain/payment"
	"github.com/collectline-payments/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// PaymentRepository implements the payment.Repository interface for PostgreSQL
type PaymentRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewPaymentRepository creates a new PostgreSQL payment ledger repository
func NewPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.Repository {
	return &PaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls.
func (r *PaymentRepository) WithTx(tx pgx.Tx) payment.Repository {
	return &PaymentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const paymentColumns = `id, debt_id, scheduled_payment_id, amount, agency_portion, client_portion,
		status, payment_method, payment_date, transaction_reference, gateway_key, result_code,
		result, decline_reason, error_message, created_at`

// Create inserts a ledger row and populates its generated ID. Ledger rows
// are append-only; no update path exists.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (debt_id, scheduled_payment_id, amount, agency_portion, client_portion,
			status, payment_method, payment_date, transaction_reference, gateway_key, result_code,
			result, decline_reason, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`

	err := r.querier.QueryRow(ctx, query,
		p.DebtID,
		p.ScheduledPaymentID,
		p.Amount,
		p.AgencyPortion,
		p.ClientPortion,
		p.Status,
		p.PaymentMethod,
		p.PaymentDate,
		p.TransactionReference,
		p.GatewayKey,
		p.ResultCode,
		p.Result,
		p.DeclineReason,
		p.ErrorMessage,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create payment", "debt_id", p.DebtID, "error", err)
		return fmt.Errorf("failed to create payment: %w", err)
	}

	return nil
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p, err := r.scanPayment(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound{ID: id}
		}
		r.logger.Error("Failed to get payment", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return p, nil
}

// ListByDebt retrieves a debt's ledger, newest first
func (r *PaymentRepository) ListByDebt(ctx context.Context, debtID int64, limit, offset int) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE debt_id = $1 ORDER BY payment_date DESC, id DESC LIMIT $2 OFFSET $3`

	rows, err := r.querier.Query(ctx, query, debtID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list payments", "debt_id", debtID, "error", err)
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := r.scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}

	return payments, nil
}

func (r *PaymentRepository) scanPayment(row rowScanner) (*payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(
		&p.ID,
		&p.DebtID,
		&p.ScheduledPaymentID,
		&p.Amount,
		&p.AgencyPortion,
		&p.ClientPortion,
		&p.Status,
		&p.PaymentMethod,
		&p.PaymentDate,
		&p.TransactionReference,
		&p.GatewayKey,
		&p.ResultCode,
		&p.Result,
		&p.DeclineReason,
		&p.ErrorMessage,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
