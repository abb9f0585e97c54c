package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/collectline-payments/internal/domain/payment"
	"github.com/collectline-payments/internal/domain/shared"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}

	spID := int64(77)
	p := payment.NewSettled(9, &spID, dec("300.00"), dec("30"), shared.PaymentMethodCardToken,
		time.Date(2026, 3, 10, 5, 0, 12, 0, time.UTC))
	ref := "100345"
	p.TransactionReference = &ref

	query := `INSERT INTO payments`

	t.Run("success", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery(query).
			WithArgs(p.DebtID, p.ScheduledPaymentID, p.Amount, p.AgencyPortion, p.ClientPortion,
				p.Status, p.PaymentMethod, p.PaymentDate, p.TransactionReference, p.GatewayKey,
				p.ResultCode, p.Result, p.DeclineReason, p.ErrorMessage).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(501), now))

		require.NoError(t, repo.Create(ctx, p))
		assert.Equal(t, int64(501), p.ID)
		assert.Equal(t, now, p.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectQuery(query).
			WithArgs(p.DebtID, p.ScheduledPaymentID, p.Amount, p.AgencyPortion, p.ClientPortion,
				p.Status, p.PaymentMethod, p.PaymentDate, p.TransactionReference, p.GatewayKey,
				p.ResultCode, p.Result, p.DeclineReason, p.ErrorMessage).
			WillReturnError(expectedErr)

		err := repo.Create(ctx, p)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create payment")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE id = \$1`).
		WithArgs(int64(404)).WillReturnError(pgx.ErrNoRows)

	p, err := repo.GetByID(ctx, 404)
	assert.Nil(t, p)
	var notFound payment.ErrPaymentNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(404), notFound.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_ListByDebt(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &PaymentRepository{querier: mock, logger: newTestLogger()}
	now := time.Now()
	spID := int64(77)
	ref := "100345"

	rows := pgxmock.NewRows([]string{"id", "debt_id", "scheduled_payment_id", "amount", "agency_portion",
		"client_portion", "status", "payment_method", "payment_date", "transaction_reference",
		"gateway_key", "result_code", "result", "decline_reason", "error_message", "created_at"}).
		AddRow(int64(502), int64(9), &spID, dec("300.00"), dec("90.00"), dec("210.00"),
			shared.PaymentStatusPaid, shared.PaymentMethodCardToken, now, &ref,
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), now).
		AddRow(int64(501), int64(9), (*int64)(nil), dec("100.00"), dec("0"), dec("0"),
			shared.PaymentStatusDeclined, shared.PaymentMethodCardToken, now.Add(-time.Hour), (*string)(nil),
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), now)

	mock.ExpectQuery(`SELECT (.+) FROM payments WHERE debt_id = \$1`).
		WithArgs(int64(9), 50, 0).
		WillReturnRows(rows)

	payments, err := repo.ListByDebt(ctx, 9, 50, 0)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, int64(502), payments[0].ID)
	assert.Equal(t, shared.PaymentStatusPaid, payments[0].Status)
	require.NotNil(t, payments[0].ScheduledPaymentID)
	assert.Equal(t, spID, *payments[0].ScheduledPaymentID)
	assert.Nil(t, payments[1].ScheduledPaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
