// Package postgres provides PostgreSQL implementations of the domain repositories.
// It handles all database operations while maintaining transaction safety and
// proper error handling for the payment execution engine.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/collectline-payments/internal/domain/plan"
	"github.com/collectline-payments/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// PlanRepository implements the plan.Repository interface for PostgreSQL
type PlanRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewPlanRepository creates a new PostgreSQL payment plan repository
func NewPlanRepository(logger *slog.Logger, db *persistence.PostgresDB) plan.Repository {
	return &PlanRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls.
func (r *PlanRepository) WithTx(tx pgx.Tx) plan.Repository {
	return &PlanRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const planColumns = `id, debt_id, total_settlement_amount, down_payment_amount, installment_count,
		frequency, start_date, card_token, status, created_at`

// Create stores a new payment plan and populates its generated ID
func (r *PlanRepository) Create(ctx context.Context, p *plan.Plan) error {
	query := `
		INSERT INTO payment_plans (debt_id, total_settlement_amount, down_payment_amount,
			installment_count, frequency, start_date, card_token, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		p.DebtID,
		p.TotalSettlementAmount,
		p.DownPaymentAmount,
		p.InstallmentCount,
		p.Frequency,
		p.StartDate,
		p.CardToken,
		p.Status,
		p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		r.logger.Error("Failed to create payment plan", "debt_id", p.DebtID, "error", err)
		return fmt.Errorf("failed to create payment plan: %w", err)
	}

	return nil
}

// GetByID retrieves a payment plan by its ID
func (r *PlanRepository) GetByID(ctx context.Context, id int64) (*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM payment_plans WHERE id = $1`

	p, err := r.scanPlan(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, plan.ErrPlanNotFound{ID: id}
		}
		r.logger.Error("Failed to get payment plan", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get payment plan: %w", err)
	}

	return p, nil
}

// ListByDebt retrieves all payment plans for a debt, newest first
func (r *PlanRepository) ListByDebt(ctx context.Context, debtID int64) ([]*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM payment_plans WHERE debt_id = $1 ORDER BY created_at DESC`

	rows, err := r.querier.Query(ctx, query, debtID)
	if err != nil {
		r.logger.Error("Failed to list payment plans", "debt_id", debtID, "error", err)
		return nil, fmt.Errorf("failed to list payment plans: %w", err)
	}
	defer rows.Close()

	var plans []*plan.Plan
	for rows.Next() {
		p, err := r.scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment plan: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payment plans: %w", err)
	}

	return plans, nil
}

// LatestActiveToken returns the card token of the most recently created
// active plan for the debt
func (r *PlanRepository) LatestActiveToken(ctx context.Context, debtID int64) (string, error) {
	query := `
		SELECT card_token
		FROM payment_plans
		WHERE debt_id = $1 AND status = 'active' AND card_token <> ''
		ORDER BY created_at DESC
		LIMIT 1
	`

	var token string
	err := r.querier.QueryRow(ctx, query, debtID).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", plan.ErrNoActiveToken{DebtID: debtID}
		}
		r.logger.Error("Failed to get active card token", "debt_id", debtID, "error", err)
		return "", fmt.Errorf("failed to get active card token: %w", err)
	}

	return token, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PlanRepository) scanPlan(row rowScanner) (*plan.Plan, error) {
	var p plan.Plan
	err := row.Scan(
		&p.ID,
		&p.DebtID,
		&p.TotalSettlementAmount,
		&p.DownPaymentAmount,
		&p.InstallmentCount,
		&p.Frequency,
		&p.StartDate,
		&p.CardToken,
		&p.Status,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
