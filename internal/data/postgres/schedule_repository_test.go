package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/collectline-payments/internal/domain/schedule"
	"github.com/collectline-payments/internal/domain/shared"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ScheduleRepository{querier: mock, logger: newTestLogger()}

	next := time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)
	sp := &schedule.ScheduledPayment{
		PlanID:        41,
		Amount:        dec("300.00"),
		DueDate:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:        shared.ScheduleStatusPending,
		NextAttemptAt: &next,
		CreatedAt:     time.Now(),
	}

	mock.ExpectQuery(`INSERT INTO scheduled_payments`).
		WithArgs(sp.PlanID, sp.Amount, sp.DueDate, sp.Status, sp.AttemptCount, sp.NextAttemptAt, sp.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(77)))

	require.NoError(t, repo.Create(ctx, sp))
	assert.Equal(t, int64(77), sp.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepository_ClaimDue(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ScheduleRepository{querier: mock, logger: newTestLogger()}
	cal := schedule.NewCalendar(time.UTC)
	now := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)

	t.Run("returns claimed rows with plan columns", func(t *testing.T) {
		due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		next := time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)
		rows := pgxmock.NewRows([]string{"id", "plan_id", "amount", "due_date", "status", "attempt_count",
			"next_attempt_at", "created_at", "debt_id", "card_token"}).
			AddRow(int64(77), int64(41), dec("300.00"), due, shared.ScheduleStatusProcessing, 1,
				&next, due.AddDate(0, -1, 0), int64(9), "tok_abc")

		mock.ExpectQuery(`UPDATE scheduled_payments sp`).
			WithArgs(now, "UTC", 200).
			WillReturnRows(rows)

		claimed, err := repo.ClaimDue(ctx, now, cal, 200)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, int64(77), claimed[0].ID)
		assert.Equal(t, 1, claimed[0].AttemptCount)
		assert.Equal(t, shared.ScheduleStatusProcessing, claimed[0].Status)
		assert.Equal(t, int64(9), claimed[0].DebtID)
		assert.Equal(t, "tok_abc", claimed[0].CardToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batch", func(t *testing.T) {
		mock.ExpectQuery(`UPDATE scheduled_payments sp`).
			WithArgs(now, "UTC", 200).
			WillReturnRows(pgxmock.NewRows([]string{"id", "plan_id", "amount", "due_date", "status",
				"attempt_count", "next_attempt_at", "created_at", "debt_id", "card_token"}))

		claimed, err := repo.ClaimDue(ctx, now, cal, 200)
		require.NoError(t, err)
		assert.Empty(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestScheduleRepository_MarkPaid(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ScheduleRepository{querier: mock, logger: newTestLogger()}

	d := schedule.Diagnostics{
		TransactionReference: "100345",
		PaymentMethod:        shared.PaymentMethodCardToken,
		GatewayKey:           "txn_key_1",
		ResultCode:           "A",
		Result:               "Approved",
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE scheduled_payments`).
			WithArgs(int64(77), int64(501), &d.TransactionReference, pgxmock.AnyArg(),
				&d.GatewayKey, &d.ResultCode, &d.Result).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.MarkPaid(ctx, 77, 501, d))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(`UPDATE scheduled_payments`).
			WithArgs(int64(404), int64(501), &d.TransactionReference, pgxmock.AnyArg(),
				&d.GatewayKey, &d.ResultCode, &d.Result).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkPaid(ctx, 404, 501, d)
		var notFound schedule.ErrScheduledPaymentNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, int64(404), notFound.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestScheduleRepository_MarkRetrying(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ScheduleRepository{querier: mock, logger: newTestLogger()}

	next := time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC)
	d := schedule.Diagnostics{
		TransactionReference: "100346",
		PaymentMethod:        shared.PaymentMethodCardToken,
		ResultCode:           "D",
		Result:               "Insufficient Funds",
		DeclineReason:        shared.DeclineReasonInsufficientFunds,
	}

	mock.ExpectExec(`UPDATE scheduled_payments`).
		WithArgs(int64(77), next, &d.TransactionReference, pgxmock.AnyArg(), (*string)(nil),
			&d.ResultCode, &d.Result, pgxmock.AnyArg(), (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.MarkRetrying(ctx, 77, d, next))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepository_GetForExecution_LocksRow(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ScheduleRepository{querier: mock, logger: newTestLogger()}

	next := time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "plan_id", "amount", "due_date", "status", "attempt_count",
		"next_attempt_at", "actual_payment_id", "created_at", "debt_id", "card_token", "status"}).
		AddRow(int64(77), int64(41), dec("300.00"), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			shared.ScheduleStatusPending, 0, &next, (*int64)(nil), time.Now(), int64(9), "tok-abc", "active")

	mock.ExpectQuery(`JOIN payment_plans pp ON pp.id = sp.plan_id\s+WHERE sp.id = \$1\s+FOR UPDATE OF sp`).
		WithArgs(int64(77)).WillReturnRows(rows)

	row, err := repo.GetForExecution(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, int64(9), row.DebtID)
	assert.Equal(t, "tok-abc", row.CardToken)
	assert.Equal(t, "active", row.PlanStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ScheduleRepository{querier: mock, logger: newTestLogger()}

	mock.ExpectQuery(`SELECT (.+) FROM scheduled_payments WHERE id = \$1`).
		WithArgs(int64(404)).WillReturnError(pgx.ErrNoRows)

	sp, err := repo.GetByID(ctx, 404)
	assert.Nil(t, sp)
	var notFound schedule.ErrScheduledPaymentNotFound
	assert.ErrorAs(t, err, &notFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
