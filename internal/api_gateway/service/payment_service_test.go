package service

import (
	"context"
	"testing"
	"time"

	"github.com/collectline-payments/internal/domain/payment"
	"github.com/collectline-payments/internal/domain/plan"
	"github.com/collectline-payments/internal/domain/schedule"
	"github.com/collectline-payments/internal/domain/shared"
	"github.com/collectline-payments/internal/executor"
	"github.com/collectline-payments/internal/runner"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	plans     *MockPlanRepo
	schedules *MockScheduleRepo
	payments  *MockPaymentRepo
	exec      *MockExecutor
	gw        *MockGateway
	publisher *MockPublisher
	svc       PaymentService
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	f := &paymentFixture{
		plans:     new(MockPlanRepo),
		schedules: new(MockScheduleRepo),
		payments:  new(MockPaymentRepo),
		exec:      new(MockExecutor),
		gw:        new(MockGateway),
		publisher: new(MockPublisher),
	}
	f.svc = NewPaymentService(&fakeTxRunner{}, f.plans, f.schedules, f.payments, f.exec, f.gw, f.publisher, testLogger())
	return f
}

func paidResult(paymentID int64, amount decimal.Decimal) *executor.Result {
	return &executor.Result{
		Outcome: executor.OutcomePaid,
		Payment: &payment.Payment{ID: paymentID, Amount: amount, Status: shared.PaymentStatusPaid},
	}
}

func TestPaymentService_RecordManualPayment(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	paymentDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromFloat(150.50)

	f.exec.On("ExecutePayment", ctx, nil, mock.MatchedBy(func(p executor.Params) bool {
		return p.DebtID == 9 && p.CardToken == "" && p.Method == shared.PaymentMethodManual &&
			p.PaymentDate.Equal(paymentDate) && p.Amount.Equal(amount)
	})).Return(paidResult(501, amount), nil)
	f.publisher.On("Publish", ctx, "9", mock.MatchedBy(func(v interface{}) bool {
		event, ok := v.(shared.PaymentAttemptEvent)
		return ok && event.PaymentID == 501 && event.Outcome == "paid" && event.Window == runner.WindowManual
	})).Return(nil)

	pay, err := f.svc.RecordManualPayment(ctx, ManualPaymentParams{DebtID: 9, Amount: amount, PaymentDate: paymentDate})

	require.NoError(t, err)
	assert.Equal(t, int64(501), pay.ID)
	f.publisher.AssertExpectations(t)
}

func TestPaymentService_RecordManualPayment_PublishFailureIsAbsorbed(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	amount := decimal.NewFromInt(50)

	f.exec.On("ExecutePayment", ctx, nil, mock.Anything).Return(paidResult(502, amount), nil)
	f.publisher.On("Publish", ctx, "9", mock.Anything).Return(assert.AnError)

	pay, err := f.svc.RecordManualPayment(ctx, ManualPaymentParams{DebtID: 9, Amount: amount, PaymentDate: time.Now()})

	require.NoError(t, err)
	assert.Equal(t, int64(502), pay.ID)
}

func TestPaymentService_ChargeOneOff(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	amount := decimal.NewFromInt(200)

	f.plans.On("LatestActiveToken", ctx, int64(9)).Return("tok-abc", nil)
	f.exec.On("ExecutePayment", ctx, nil, mock.MatchedBy(func(p executor.Params) bool {
		return p.DebtID == 9 && p.CardToken == "tok-abc" && p.ScheduledPaymentID == nil && !p.UpdateScheduleRow
	})).Return(paidResult(503, amount), nil)
	f.publisher.On("Publish", ctx, "9", mock.Anything).Return(nil)

	result, err := f.svc.ChargeOneOff(ctx, 9, amount)

	require.NoError(t, err)
	assert.True(t, result.Paid())
}

func TestPaymentService_ChargeOneOff_NoActiveToken(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	f.plans.On("LatestActiveToken", ctx, int64(9)).Return("", plan.ErrNoActiveToken{DebtID: 9})

	_, err := f.svc.ChargeOneOff(ctx, 9, decimal.NewFromInt(200))

	var noToken plan.ErrNoActiveToken
	require.ErrorAs(t, err, &noToken)
	f.exec.AssertNotCalled(t, "ExecutePayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_ChargeOneOff_DeclineComesBackInResult(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	amount := decimal.NewFromInt(200)
	declined := &executor.Result{
		Outcome:       executor.OutcomeDeclined,
		DeclineReason: shared.DeclineReasonDoNotRetry,
		Payment:       &payment.Payment{ID: 504, Amount: amount, Status: shared.PaymentStatusDeclined},
	}

	f.plans.On("LatestActiveToken", ctx, int64(9)).Return("tok-abc", nil)
	f.exec.On("ExecutePayment", ctx, nil, mock.Anything).Return(declined, nil)
	f.publisher.On("Publish", ctx, "9", mock.MatchedBy(func(v interface{}) bool {
		event, ok := v.(shared.PaymentAttemptEvent)
		return ok && event.Outcome == "declined" && event.DeclineReason == "do_not_retry"
	})).Return(nil)

	result, err := f.svc.ChargeOneOff(ctx, 9, amount)

	// The decline is not a service error: the audit trail committed
	require.NoError(t, err)
	assert.False(t, result.Paid())
	f.publisher.AssertExpectations(t)
}

func executionRow(id int64, status shared.ScheduleStatus, planStatus string, attempts int) *schedule.ExecutionRow {
	return &schedule.ExecutionRow{
		ScheduledPayment: schedule.ScheduledPayment{
			ID:           id,
			PlanID:       42,
			Amount:       decimal.NewFromInt(300),
			Status:       status,
			AttemptCount: attempts,
		},
		DebtID:     9,
		CardToken:  "tok-abc",
		PlanStatus: planStatus,
	}
}

func TestPaymentService_ExecuteScheduledPayment(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	f.schedules.On("WithTx", nil).Return()
	f.schedules.On("GetForExecution", ctx, int64(77)).
		Return(executionRow(77, shared.ScheduleStatusPending, "active", 0), nil)
	f.exec.On("ExecutePayment", ctx, nil, mock.MatchedBy(func(p executor.Params) bool {
		return p.DebtID == 9 && p.CardToken == "tok-abc" && p.UpdateScheduleRow &&
			p.ScheduledPaymentID != nil && *p.ScheduledPaymentID == 77 && p.AttemptNumber == 1
	})).Return(paidResult(505, decimal.NewFromInt(300)), nil)
	f.publisher.On("Publish", ctx, "9", mock.MatchedBy(func(v interface{}) bool {
		event, ok := v.(shared.PaymentAttemptEvent)
		return ok && event.ScheduledPaymentID != nil && *event.ScheduledPaymentID == 77 && event.AttemptNumber == 1
	})).Return(nil)

	result, err := f.svc.ExecuteScheduledPayment(ctx, 77)

	require.NoError(t, err)
	assert.True(t, result.Paid())
}

func TestPaymentService_ExecuteScheduledPayment_RetryBumpsAttemptNumber(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	f.schedules.On("WithTx", nil).Return()
	f.schedules.On("GetForExecution", ctx, int64(77)).
		Return(executionRow(77, shared.ScheduleStatusRetrying, "active", 1), nil)
	f.exec.On("ExecutePayment", ctx, nil, mock.MatchedBy(func(p executor.Params) bool {
		return p.AttemptNumber == 2
	})).Return(paidResult(506, decimal.NewFromInt(300)), nil)
	f.publisher.On("Publish", ctx, "9", mock.Anything).Return(nil)

	_, err := f.svc.ExecuteScheduledPayment(ctx, 77)

	require.NoError(t, err)
}

func TestPaymentService_ExecuteScheduledPayment_NotExecutable(t *testing.T) {
	tests := []struct {
		name string
		row  *schedule.ExecutionRow
	}{
		{"already paid", executionRow(77, shared.ScheduleStatusPaid, "active", 1)},
		{"terminal decline", executionRow(77, shared.ScheduleStatusDeclined, "active", 3)},
		{"claimed by the runner", executionRow(77, shared.ScheduleStatusProcessing, "active", 1)},
		{"cancelled plan", executionRow(77, shared.ScheduleStatusPending, "cancelled", 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPaymentFixture(t)
			ctx := context.Background()
			f.schedules.On("WithTx", nil).Return()
			f.schedules.On("GetForExecution", ctx, int64(77)).Return(tt.row, nil)

			_, err := f.svc.ExecuteScheduledPayment(ctx, 77)

			var notExecutable ErrNotExecutable
			require.ErrorAs(t, err, &notExecutable)
			assert.Equal(t, int64(77), notExecutable.ID)
			f.exec.AssertNotCalled(t, "ExecutePayment", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// Simulates losing the race against a runner pass: by the time the row
// lock is granted the claim has committed and the row reads processing.
// The service must see that inside its own transaction and back off.
func TestPaymentService_ExecuteScheduledPayment_ConcurrentClaimBacksOff(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	f.schedules.On("WithTx", nil).Return()
	f.schedules.On("GetForExecution", ctx, int64(77)).
		Return(executionRow(77, shared.ScheduleStatusProcessing, "active", 1), nil)

	_, err := f.svc.ExecuteScheduledPayment(ctx, 77)

	var notExecutable ErrNotExecutable
	require.ErrorAs(t, err, &notExecutable)
	f.schedules.AssertCalled(t, "WithTx", nil)
	f.exec.AssertNotCalled(t, "ExecutePayment", mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_ExecuteScheduledPayment_UnknownRow(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	f.schedules.On("WithTx", nil).Return()
	f.schedules.On("GetForExecution", ctx, int64(404)).
		Return(nil, schedule.ErrScheduledPaymentNotFound{ID: 404})

	_, err := f.svc.ExecuteScheduledPayment(ctx, 404)

	var notFound schedule.ErrScheduledPaymentNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestPaymentService_ListPaymentsByDebt(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	f.payments.On("ListByDebt", ctx, int64(9), 20, 20).
		Return([]*payment.Payment{{ID: 30, DebtID: 9}}, nil)

	out, err := f.svc.ListPaymentsByDebt(ctx, 9, 2, 20)

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(30), out[0].ID)
}

func TestPaymentService_VerifyGateway(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()

	f.gw.On("VerifyConnection", ctx).Return(nil)

	require.NoError(t, f.svc.VerifyGateway(ctx))
}
