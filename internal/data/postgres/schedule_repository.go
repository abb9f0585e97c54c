package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/collectline-payments/internal/domain/schedule"
	"github.com/collectline-payments/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// ScheduleRepository implements the schedule.Repository interface for PostgreSQL
type ScheduleRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewScheduleRepository creates a new PostgreSQL scheduled payment repository
func NewScheduleRepository(logger *slog.Logger, db *persistence.PostgresDB) schedule.Repository {
	return &ScheduleRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls.
func (r *ScheduleRepository) WithTx(tx pgx.Tx) schedule.Repository {
	return &ScheduleRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const scheduleColumns = `id, plan_id, amount, due_date, status, attempt_count, next_attempt_at,
		last_attempt_at, processed_at, transaction_reference, payment_method, last_gateway_key,
		last_result_code, last_result, last_decline_reason, last_error, actual_payment_id, created_at`

// Create inserts a single scheduled payment and populates its generated ID
func (r *ScheduleRepository) Create(ctx context.Context, sp *schedule.ScheduledPayment) error {
	query := `
		INSERT INTO scheduled_payments (plan_id, amount, due_date, status, attempt_count, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		sp.PlanID,
		sp.Amount,
		sp.DueDate,
		sp.Status,
		sp.AttemptCount,
		sp.NextAttemptAt,
		sp.CreatedAt,
	).Scan(&sp.ID)
	if err != nil {
		r.logger.Error("Failed to create scheduled payment", "plan_id", sp.PlanID, "error", err)
		return fmt.Errorf("failed to create scheduled payment: %w", err)
	}

	return nil
}

// CreateBatch inserts the full schedule of a new plan
func (r *ScheduleRepository) CreateBatch(ctx context.Context, rows []*schedule.ScheduledPayment) error {
	for _, sp := range rows {
		if err := r.Create(ctx, sp); err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a scheduled payment by its ID
func (r *ScheduleRepository) GetByID(ctx context.Context, id int64) (*schedule.ScheduledPayment, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_payments WHERE id = $1`

	sp, err := r.scanRow(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schedule.ErrScheduledPaymentNotFound{ID: id}
		}
		r.logger.Error("Failed to get scheduled payment", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get scheduled payment: %w", err)
	}

	return sp, nil
}

// GetForExecution retrieves a scheduled payment together with the plan
// columns needed to charge it. The row is locked for the remainder of the
// transaction so a concurrent claim pass skips it; call inside ExecuteTx
// and hold the transaction open for the whole attempt.
func (r *ScheduleRepository) GetForExecution(ctx context.Context, id int64) (*schedule.ExecutionRow, error) {
	query := `
		SELECT sp.id, sp.plan_id, sp.amount, sp.due_date, sp.status, sp.attempt_count,
			sp.next_attempt_at, sp.actual_payment_id, sp.created_at,
			pp.debt_id, pp.card_token, pp.status
		FROM scheduled_payments sp
		JOIN payment_plans pp ON pp.id = sp.plan_id
		WHERE sp.id = $1
		FOR UPDATE OF sp
	`

	var row schedule.ExecutionRow
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&row.ID,
		&row.PlanID,
		&row.Amount,
		&row.DueDate,
		&row.Status,
		&row.AttemptCount,
		&row.NextAttemptAt,
		&row.ActualPaymentID,
		&row.CreatedAt,
		&row.DebtID,
		&row.CardToken,
		&row.PlanStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schedule.ErrScheduledPaymentNotFound{ID: id}
		}
		r.logger.Error("Failed to get scheduled payment for execution", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get scheduled payment for execution: %w", err)
	}

	return &row, nil
}

// ListByPlan retrieves a plan's schedule ordered by due date
func (r *ScheduleRepository) ListByPlan(ctx context.Context, planID int64) ([]*schedule.ScheduledPayment, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_payments WHERE plan_id = $1 ORDER BY due_date ASC, id ASC`

	return r.queryRows(ctx, query, planID)
}

// List retrieves scheduled payments matching the operator filter, soonest due first
func (r *ScheduleRepository) List(ctx context.Context, filter schedule.ListFilter) ([]*schedule.ScheduledPayment, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_payments WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.DebtID > 0 {
		args = append(args, filter.DebtID)
		query += fmt.Sprintf(" AND plan_id IN (SELECT id FROM payment_plans WHERE debt_id = $%d)", len(args))
	}
	if filter.Days > 0 {
		args = append(args, filter.Days)
		query += fmt.Sprintf(" AND due_date <= CURRENT_DATE + $%d::int", len(args))
	}
	query += " ORDER BY due_date ASC, id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.queryRows(ctx, query, args...)
}

// ClaimDue atomically claims up to limit due rows for processing. The inner
// select locks candidate rows with SKIP LOCKED so concurrent claimers pass
// over each other's rows, and the update moves claimed rows out of the
// selectable status set before the claim transaction commits. Rows created
// on or after their own due date's local start are left for the next day.
func (r *ScheduleRepository) ClaimDue(ctx context.Context, now time.Time, cal schedule.Calendar, limit int) ([]*schedule.ClaimedRow, error) {
	query := `
		UPDATE scheduled_payments sp
		SET status = 'processing', attempt_count = sp.attempt_count + 1, last_attempt_at = $1
		FROM payment_plans pp
		WHERE sp.id IN (
			SELECT s.id
			FROM scheduled_payments s
			JOIN payment_plans p ON p.id = s.plan_id
			WHERE p.status = 'active'
			  AND s.status IN ('pending', 'retrying')
			  AND s.next_attempt_at IS NOT NULL
			  AND s.next_attempt_at <= $1
			  AND s.created_at < (s.due_date::timestamp AT TIME ZONE $2)
			ORDER BY s.next_attempt_at ASC
			LIMIT $3
			FOR UPDATE OF s SKIP LOCKED
		)
		AND pp.id = sp.plan_id
		RETURNING sp.id, sp.plan_id, sp.amount, sp.due_date, sp.status, sp.attempt_count,
			sp.next_attempt_at, sp.created_at, pp.debt_id, pp.card_token
	`

	rows, err := r.querier.Query(ctx, query, now, cal.Location.String(), limit)
	if err != nil {
		r.logger.Error("Failed to claim due scheduled payments", "error", err)
		return nil, fmt.Errorf("failed to claim due scheduled payments: %w", err)
	}
	defer rows.Close()

	var claimed []*schedule.ClaimedRow
	for rows.Next() {
		var c schedule.ClaimedRow
		err := rows.Scan(
			&c.ID,
			&c.PlanID,
			&c.Amount,
			&c.DueDate,
			&c.Status,
			&c.AttemptCount,
			&c.NextAttemptAt,
			&c.CreatedAt,
			&c.DebtID,
			&c.CardToken,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claimed scheduled payment: %w", err)
		}
		claimed = append(claimed, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claimed scheduled payments: %w", err)
	}

	return claimed, nil
}

// MarkPaid settles a scheduled payment against its ledger entry
func (r *ScheduleRepository) MarkPaid(ctx context.Context, id int64, paymentID int64, d schedule.Diagnostics) error {
	query := `
		UPDATE scheduled_payments
		SET status = 'paid', actual_payment_id = $2, processed_at = NOW(), next_attempt_at = NULL,
			transaction_reference = $3, payment_method = $4, last_gateway_key = $5,
			last_result_code = $6, last_result = $7, last_decline_reason = NULL, last_error = NULL
		WHERE id = $1
	`

	return r.finalize(ctx, "mark scheduled payment paid", id, query,
		id, paymentID, nullStr(d.TransactionReference), nullStr(string(d.PaymentMethod)),
		nullStr(d.GatewayKey), nullStr(d.ResultCode), nullStr(d.Result))
}

// MarkRetrying records a retryable decline and arms the next attempt
func (r *ScheduleRepository) MarkRetrying(ctx context.Context, id int64, d schedule.Diagnostics, nextAttemptAt time.Time) error {
	query := `
		UPDATE scheduled_payments
		SET status = 'retrying', next_attempt_at = $2,
			transaction_reference = $3, payment_method = $4, last_gateway_key = $5,
			last_result_code = $6, last_result = $7, last_decline_reason = $8, last_error = $9
		WHERE id = $1
	`

	return r.finalize(ctx, "mark scheduled payment retrying", id, query,
		id, nextAttemptAt, nullStr(d.TransactionReference), nullStr(string(d.PaymentMethod)),
		nullStr(d.GatewayKey), nullStr(d.ResultCode), nullStr(d.Result),
		nullStr(string(d.DeclineReason)), nullStr(d.ErrorMessage))
}

// MarkDeclined terminally declines a scheduled payment
func (r *ScheduleRepository) MarkDeclined(ctx context.Context, id int64, d schedule.Diagnostics) error {
	return r.decline(ctx, id, d, false)
}

// RecordAttemptDecline terminally declines a scheduled payment and bumps its
// attempt count, for attempts that did not pass through ClaimDue
func (r *ScheduleRepository) RecordAttemptDecline(ctx context.Context, id int64, d schedule.Diagnostics) error {
	return r.decline(ctx, id, d, true)
}

func (r *ScheduleRepository) decline(ctx context.Context, id int64, d schedule.Diagnostics, bumpAttempt bool) error {
	bump := ""
	if bumpAttempt {
		bump = ", attempt_count = attempt_count + 1"
	}
	query := `
		UPDATE scheduled_payments
		SET status = 'declined', next_attempt_at = NULL, processed_at = NOW()` + bump + `,
			transaction_reference = $2, payment_method = $3, last_gateway_key = $4,
			last_result_code = $5, last_result = $6, last_decline_reason = $7, last_error = $8
		WHERE id = $1
	`

	return r.finalize(ctx, "mark scheduled payment declined", id, query,
		id, nullStr(d.TransactionReference), nullStr(string(d.PaymentMethod)),
		nullStr(d.GatewayKey), nullStr(d.ResultCode), nullStr(d.Result),
		nullStr(string(d.DeclineReason)), nullStr(d.ErrorMessage))
}

func (r *ScheduleRepository) finalize(ctx context.Context, action string, id int64, query string, args ...any) error {
	result, err := r.querier.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+action, "id", id, "error", err)
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	if result.RowsAffected() == 0 {
		return schedule.ErrScheduledPaymentNotFound{ID: id}
	}
	return nil
}

func (r *ScheduleRepository) queryRows(ctx context.Context, query string, args ...any) ([]*schedule.ScheduledPayment, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query scheduled payments", "error", err)
		return nil, fmt.Errorf("failed to query scheduled payments: %w", err)
	}
	defer rows.Close()

	var out []*schedule.ScheduledPayment
	for rows.Next() {
		sp, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled payment: %w", err)
		}
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scheduled payments: %w", err)
	}

	return out, nil
}

func (r *ScheduleRepository) scanRow(row rowScanner) (*schedule.ScheduledPayment, error) {
	var sp schedule.ScheduledPayment
	err := row.Scan(
		&sp.ID,
		&sp.PlanID,
		&sp.Amount,
		&sp.DueDate,
		&sp.Status,
		&sp.AttemptCount,
		&sp.NextAttemptAt,
		&sp.LastAttemptAt,
		&sp.ProcessedAt,
		&sp.TransactionReference,
		&sp.PaymentMethod,
		&sp.LastGatewayKey,
		&sp.LastResultCode,
		&sp.LastResult,
		&sp.LastDeclineReason,
		&sp.LastError,
		&sp.ActualPaymentID,
		&sp.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// nullStr maps empty strings to NULL so diagnostics columns stay clean
func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
