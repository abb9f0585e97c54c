package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/collectline-payments/internal/domain/payment"
	"github.com/collectline-payments/internal/domain/plan"
	"github.com/collectline-payments/internal/domain/schedule"
	"github.com/collectline-payments/internal/domain/shared"
	"github.com/collectline-payments/internal/executor"
	"github.com/collectline-payments/internal/gateway"
	"github.com/collectline-payments/internal/platform/messaging/producers"
	"github.com/collectline-payments/internal/runner"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrNotExecutable indicates a scheduled payment that cannot be attempted
// in its current state
type ErrNotExecutable struct {
	ID     int64
	Reason string
}

func (e ErrNotExecutable) Error() string {
	return fmt.Sprintf("scheduled payment %d cannot be executed: %s", e.ID, e.Reason)
}

// PaymentServiceImpl implements the PaymentService interface
type PaymentServiceImpl struct {
	db           TxRunner
	planRepo     plan.Repository
	scheduleRepo schedule.Repository
	paymentRepo  payment.Repository
	exec         runner.PaymentExecutor
	gw           gateway.Gateway
	publisher    producers.MessagePublisher // nil disables event publishing
	logger       *slog.Logger
	now          func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	db TxRunner,
	planRepo plan.Repository,
	scheduleRepo schedule.Repository,
	paymentRepo payment.Repository,
	exec runner.PaymentExecutor,
	gw gateway.Gateway,
	publisher producers.MessagePublisher,
	logger *slog.Logger,
) PaymentService {
	return &PaymentServiceImpl{
		db:           db,
		planRepo:     planRepo,
		scheduleRepo: scheduleRepo,
		paymentRepo:  paymentRepo,
		exec:         exec,
		gw:           gw,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

// RecordManualPayment writes a ledger-only payment with no gateway charge
func (s *PaymentServiceImpl) RecordManualPayment(ctx context.Context, params ManualPaymentParams) (*payment.Payment, error) {
	var result *executor.Result
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		result, err = s.exec.ExecutePayment(ctx, tx, executor.Params{
			DebtID:        params.DebtID,
			Amount:        params.Amount,
			AttemptNumber: 1,
			Method:        shared.PaymentMethodManual,
			PaymentDate:   params.PaymentDate,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, params.DebtID, nil, result, 1)
	return result.Payment, nil
}

// ChargeOneOff charges the most recent active plan token outside any
// schedule. The audit trail commits before a decline surfaces to the caller.
func (s *PaymentServiceImpl) ChargeOneOff(ctx context.Context, debtID int64, amount decimal.Decimal) (*executor.Result, error) {
	token, err := s.planRepo.LatestActiveToken(ctx, debtID)
	if err != nil {
		return nil, err
	}

	var result *executor.Result
	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		result, err = s.exec.ExecutePayment(ctx, tx, executor.Params{
			DebtID:        debtID,
			Amount:        amount,
			CardToken:     token,
			AttemptNumber: 1,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, debtID, nil, result, 1)
	return result, nil
}

// ExecuteScheduledPayment manually runs one scheduled payment ahead of the
// runner. The row is fetched under a row lock and its state re-checked in
// the same transaction as the charge, so a concurrently claimed row comes
// back as not executable instead of charging twice. The attempt is
// recorded against the row whether it settles or not.
func (s *PaymentServiceImpl) ExecuteScheduledPayment(ctx context.Context, scheduledPaymentID int64) (*executor.Result, error) {
	var row *schedule.ExecutionRow
	var result *executor.Result
	var attempt int
	err := s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		row, err = s.scheduleRepo.WithTx(tx).GetForExecution(ctx, scheduledPaymentID)
		if err != nil {
			return err
		}
		if err := executable(row); err != nil {
			return err
		}

		attempt = row.AttemptCount + 1
		result, err = s.exec.ExecutePayment(ctx, tx, executor.Params{
			DebtID:             row.DebtID,
			Amount:             row.Amount,
			CardToken:          row.CardToken,
			ScheduledPaymentID: &row.ID,
			AttemptNumber:      attempt,
			UpdateScheduleRow:  true,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, row.DebtID, &row.ID, result, attempt)
	return result, nil
}

func executable(row *schedule.ExecutionRow) error {
	switch {
	case row.Status == shared.ScheduleStatusPaid:
		return ErrNotExecutable{ID: row.ID, Reason: "already paid"}
	case row.Status.Terminal() || row.Status == shared.ScheduleStatusProcessing:
		return ErrNotExecutable{ID: row.ID, Reason: "status is " + string(row.Status)}
	case row.PlanStatus != string(shared.PlanStatusActive):
		return ErrNotExecutable{ID: row.ID, Reason: "plan is " + row.PlanStatus}
	}
	return nil
}

// ListPaymentsByDebt retrieves a debt's payment ledger
func (s *PaymentServiceImpl) ListPaymentsByDebt(ctx context.Context, debtID int64, page, perPage int) ([]*payment.Payment, error) {
	offset := (page - 1) * perPage
	return s.paymentRepo.ListByDebt(ctx, debtID, perPage, offset)
}

// VerifyGateway checks processor connectivity and credentials
func (s *PaymentServiceImpl) VerifyGateway(ctx context.Context) error {
	return s.gw.VerifyConnection(ctx)
}

func (s *PaymentServiceImpl) publishEvent(ctx context.Context, debtID int64, scheduledPaymentID *int64, result *executor.Result, attempt int) {
	if s.publisher == nil || result == nil || result.Payment == nil {
		return
	}

	event := shared.PaymentAttemptEvent{
		EventID:            uuid.New(),
		DebtID:             debtID,
		ScheduledPaymentID: scheduledPaymentID,
		PaymentID:          result.Payment.ID,
		Amount:             result.Payment.Amount,
		Outcome:            string(result.Outcome),
		DeclineReason:      string(result.DeclineReason),
		AttemptNumber:      attempt,
		Window:             runner.WindowManual,
		OccurredAt:         s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, strconv.FormatInt(debtID, 10), event); err != nil {
		s.logger.Warn("Failed to publish payment attempt event", "debt_id", debtID, "error", err)
	}
}
