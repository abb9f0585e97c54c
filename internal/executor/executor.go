// Package executor runs single payment attempts: gateway charge, commission
// split, ledger insert and debt balance mutation, all inside the caller's
// transaction so the audit trail commits or rolls back as one unit.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/collectline-payments/internal/domain/debt"
	"github.com/collectline-payments/internal/domain/payment"
	"github.com/collectline-payments/internal/domain/schedule"
	"github.com/collectline-payments/internal/domain/shared"
	"github.com/collectline-payments/internal/gateway"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Params describes one payment attempt
type Params struct {
	DebtID int64
	Amount decimal.Decimal

	// CardToken is the saved gateway credential. Empty means a ledger-only
	// payment recorded without touching the gateway.
	CardToken string

	// ScheduledPaymentID links the attempt to its schedule row; nil for
	// manual and one-off payments.
	ScheduledPaymentID *int64
	AttemptNumber      int

	// UpdateScheduleRow finalizes the schedule row inside this attempt.
	// The retry runner leaves it false and finalizes rows itself after
	// classifying the outcome.
	UpdateScheduleRow bool

	// Method overrides the recorded payment method for ledger-only payments
	Method shared.PaymentMethod

	// PaymentDate back-dates ledger-only payments; zero means now
	PaymentDate time.Time
}

// Executor charges debts and writes the resulting audit trail
type Executor struct {
	debts     debt.Repository
	payments  payment.Repository
	schedules schedule.Repository
	gw        gateway.Gateway
	logger    *slog.Logger
	now       func() time.Time
}

// NewExecutor creates a payment executor
func NewExecutor(
	debts debt.Repository,
	payments payment.Repository,
	schedules schedule.Repository,
	gw gateway.Gateway,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		debts:     debts,
		payments:  payments,
		schedules: schedules,
		gw:        gw,
		logger:    logger,
		now:       time.Now,
	}
}

// ExecutePayment runs one attempt inside the given transaction. The returned
// error is reserved for infrastructure failures that must roll the
// transaction back; gateway declines and transport failures come back in
// the Result with their ledger rows already written.
func (e *Executor) ExecutePayment(ctx context.Context, tx pgx.Tx, p Params) (*Result, error) {
	if !p.Amount.IsPositive() {
		return nil, fmt.Errorf("payment amount must be positive, got %s", p.Amount)
	}

	debts := e.debts.WithTx(tx)
	payments := e.payments.WithTx(tx)
	schedules := e.schedules.WithTx(tx)

	// Row lock serializes concurrent attempts against the same debt
	d, err := debts.GetForUpdate(ctx, p.DebtID)
	if err != nil {
		return nil, err
	}

	if p.CardToken == "" {
		return e.recordLedgerOnly(ctx, debts, payments, schedules, d, p)
	}

	charge, err := e.charge(ctx, debts, d, p)
	if err != nil {
		// Transport failure: the money may or may not have moved, so the
		// ledger never settles. The attempt is still recorded as a decline
		// with a synthetic result code.
		return e.recordTransportFailure(ctx, payments, schedules, p, err)
	}

	if !charge.Approved() {
		return e.recordDecline(ctx, payments, schedules, p, charge)
	}

	return e.recordApproval(ctx, debts, payments, schedules, d, p, charge)
}

func (e *Executor) charge(ctx context.Context, debts debt.Repository, d *debt.Debt, p Params) (*gateway.ChargeResult, error) {
	billing, err := debts.GetBillingDetails(ctx, p.DebtID)
	if err != nil {
		return nil, err
	}

	return e.gw.Charge(ctx, gateway.ChargeRequest{
		Token:   p.CardToken,
		Amount:  p.Amount,
		Invoice: gateway.Invoice(p.DebtID, p.ScheduledPaymentID, p.AttemptNumber),
		Customer: &gateway.Customer{
			FirstName:  billing.FirstName,
			LastName:   billing.LastName,
			Street:     billing.Street,
			City:       billing.City,
			State:      billing.State,
			PostalCode: billing.PostalCode,
			Phone:      billing.Phone,
			Email:      billing.Email,
			CustomerID: fmt.Sprintf("%d", p.DebtID),
		},
		StoredCredential: p.ScheduledPaymentID != nil,
	})
}

func (e *Executor) recordLedgerOnly(
	ctx context.Context,
	debts debt.Repository,
	payments payment.Repository,
	schedules schedule.Repository,
	d *debt.Debt,
	p Params,
) (*Result, error) {
	rate, err := debts.GetCommissionRate(ctx, p.DebtID)
	if err != nil {
		return nil, err
	}

	method := p.Method
	if method == "" {
		method = shared.PaymentMethodManual
	}
	at := p.PaymentDate
	if at.IsZero() {
		at = e.now()
	}
	pay := payment.NewSettled(p.DebtID, p.ScheduledPaymentID, p.Amount, rate, method, at)
	if err := payments.Create(ctx, pay); err != nil {
		return nil, err
	}

	if err := e.applyToDebt(ctx, debts, d, pay, at); err != nil {
		return nil, err
	}

	result := &Result{Outcome: OutcomePaid, Payment: pay}
	if p.UpdateScheduleRow && p.ScheduledPaymentID != nil {
		if err := schedules.MarkPaid(ctx, *p.ScheduledPaymentID, pay.ID, result.Diagnostics()); err != nil {
			return nil, err
		}
	}

	e.logger.Info("Ledger-only payment recorded",
		"debt_id", p.DebtID, "amount", p.Amount, "payment_id", pay.ID, "method", method)
	return result, nil
}

func (e *Executor) recordApproval(
	ctx context.Context,
	debts debt.Repository,
	payments payment.Repository,
	schedules schedule.Repository,
	d *debt.Debt,
	p Params,
	charge *gateway.ChargeResult,
) (*Result, error) {
	rate, err := debts.GetCommissionRate(ctx, p.DebtID)
	if err != nil {
		return nil, err
	}

	at := e.now()
	pay := payment.NewSettled(p.DebtID, p.ScheduledPaymentID, p.Amount, rate, shared.PaymentMethodCardToken, at)
	attachChargeDiagnostics(pay, charge)
	if err := payments.Create(ctx, pay); err != nil {
		return nil, err
	}

	if err := e.applyToDebt(ctx, debts, d, pay, at); err != nil {
		return nil, err
	}

	result := &Result{Outcome: OutcomePaid, Payment: pay, Charge: charge}
	if p.UpdateScheduleRow && p.ScheduledPaymentID != nil {
		if err := schedules.MarkPaid(ctx, *p.ScheduledPaymentID, pay.ID, result.Diagnostics()); err != nil {
			return nil, err
		}
	}

	e.logger.Info("Payment approved",
		"debt_id", p.DebtID, "amount", p.Amount, "payment_id", pay.ID, "refnum", charge.Reference)
	return result, nil
}

func (e *Executor) recordDecline(
	ctx context.Context,
	payments payment.Repository,
	schedules schedule.Repository,
	p Params,
	charge *gateway.ChargeResult,
) (*Result, error) {
	reason := gateway.Classify(charge.ResultText)

	pay := payment.NewDeclined(p.DebtID, p.ScheduledPaymentID, p.Amount, shared.PaymentMethodCardToken, e.now())
	attachChargeDiagnostics(pay, charge)
	reasonStr := string(reason)
	pay.DeclineReason = &reasonStr
	if err := payments.Create(ctx, pay); err != nil {
		return nil, err
	}

	result := &Result{Outcome: OutcomeDeclined, Payment: pay, Charge: charge, DeclineReason: reason}
	if p.UpdateScheduleRow && p.ScheduledPaymentID != nil {
		if err := schedules.RecordAttemptDecline(ctx, *p.ScheduledPaymentID, result.Diagnostics()); err != nil {
			return nil, err
		}
	}

	e.logger.Warn("Payment declined",
		"debt_id", p.DebtID, "amount", p.Amount, "reason", reason, "result", charge.ResultText)
	return result, nil
}

func (e *Executor) recordTransportFailure(
	ctx context.Context,
	payments payment.Repository,
	schedules schedule.Repository,
	p Params,
	chargeErr error,
) (*Result, error) {
	msg := chargeErr.Error()
	reason := gateway.Classify(msg)

	pay := payment.NewDeclined(p.DebtID, p.ScheduledPaymentID, p.Amount, shared.PaymentMethodCardToken, e.now())
	pay.ErrorMessage = &msg
	pay.ResultCode = strPtr(TransportErrorCode)
	reasonStr := string(reason)
	pay.DeclineReason = &reasonStr
	if err := payments.Create(ctx, pay); err != nil {
		return nil, err
	}

	result := &Result{Outcome: OutcomeError, Payment: pay, DeclineReason: reason, ErrorMessage: msg}
	if p.UpdateScheduleRow && p.ScheduledPaymentID != nil {
		if err := schedules.RecordAttemptDecline(ctx, *p.ScheduledPaymentID, result.Diagnostics()); err != nil {
			return nil, err
		}
	}

	e.logger.Error("Payment attempt failed at the gateway",
		"debt_id", p.DebtID, "amount", p.Amount, "reason", reason, "error", chargeErr)
	return result, nil
}

func (e *Executor) applyToDebt(ctx context.Context, debts debt.Repository, d *debt.Debt, pay *payment.Payment, at time.Time) error {
	stamp := debt.PaymentStamp{PaymentID: pay.ID, Method: pay.PaymentMethod}
	if pay.TransactionReference != nil {
		stamp.Reference = *pay.TransactionReference
	}
	d.ApplyPayment(pay.Amount, at, stamp)
	return debts.Update(ctx, d)
}

func attachChargeDiagnostics(pay *payment.Payment, charge *gateway.ChargeResult) {
	pay.TransactionReference = strPtr(charge.Reference)
	pay.GatewayKey = strPtr(charge.GatewayKey)
	pay.ResultCode = strPtr(charge.ResultCode)
	pay.Result = strPtr(charge.ResultText)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
