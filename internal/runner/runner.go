// Package runner drives the automatic execution of due scheduled payments.
// Rows are claimed with a lock-and-skip update so any number of runner
// instances can work the same table, then each claimed row is attempted in
// its own transaction so one bad row never takes the batch down with it.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/collectline-payments/internal/config"
	"github.com/collectline-payments/internal/domain/schedule"
	"github.com/collectline-payments/internal/domain/shared"
	"github.com/collectline-payments/internal/executor"
	"github.com/collectline-payments/internal/platform/messaging/producers"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/panjf2000/ants/v2"
)

// Run window labels
const (
	WindowMorning = "morning"
	WindowEvening = "evening"
	WindowManual  = "manual"
)

// PaymentExecutor runs a single payment attempt inside a transaction
type PaymentExecutor interface {
	ExecutePayment(ctx context.Context, tx pgx.Tx, p executor.Params) (*executor.Result, error)
}

// txRunner abstracts persistence.PostgresDB.ExecuteTx for testing
type txRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Summary reports what one run accomplished
type Summary struct {
	Window   string `json:"window"`
	Total    int    `json:"total"`
	Paid     int    `json:"paid"`
	Retried  int    `json:"retried"`
	Declined int    `json:"declined"`
	Failed   int    `json:"failed"`
}

// Runner claims and executes due scheduled payments
type Runner struct {
	db          txRunner
	schedules   schedule.Repository
	exec        PaymentExecutor
	publisher   producers.MessagePublisher // nil disables event publishing
	pool        *ants.Pool
	cal         schedule.Calendar
	batchLimit  int
	maxAttempts int
	logger      *slog.Logger
	now         func() time.Time
}

// NewRunner creates a runner from the retry configuration. The worker pool
// size bounds how many rows are attempted concurrently.
func NewRunner(
	db txRunner,
	schedules schedule.Repository,
	exec PaymentExecutor,
	publisher producers.MessagePublisher,
	cfg *config.RetryConfig,
	poolSize int,
	logger *slog.Logger,
) (*Runner, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid retry time zone %q: %w", cfg.TimeZone, err)
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create runner worker pool: %w", err)
	}

	cal := schedule.Calendar{
		Location:    loc,
		MorningHour: cfg.MorningHour,
		EveningHour: cfg.EveningHour,
	}

	return &Runner{
		db:          db,
		schedules:   schedules,
		exec:        exec,
		publisher:   publisher,
		pool:        pool,
		cal:         cal,
		batchLimit:  cfg.BatchLimit,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Calendar returns the retry calendar the runner operates on
func (r *Runner) Calendar() schedule.Calendar {
	return r.cal
}

// Release shuts the worker pool down
func (r *Runner) Release() {
	r.pool.Release()
}

// RunDuePayments claims every attemptable row whose time has come and
// attempts each one. Row-level failures are absorbed and counted; only a
// failure of the claim itself is returned as an error.
func (r *Runner) RunDuePayments(ctx context.Context, window string) (*Summary, error) {
	now := r.now()

	var claimed []*schedule.ClaimedRow
	err := r.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		claimed, err = r.schedules.WithTx(tx).ClaimDue(ctx, now, r.cal, r.batchLimit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim due payments: %w", err)
	}

	summary := &Summary{Window: window, Total: len(claimed)}
	if len(claimed) == 0 {
		r.logger.Info("No due payments to process", "window", window)
		return summary, nil
	}

	r.logger.Info("Claimed due payments", "window", window, "count", len(claimed))

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, row := range claimed {
		row := row
		wg.Add(1)
		task := func() {
			defer wg.Done()
			outcome := r.processRow(ctx, row, window)
			mu.Lock()
			switch outcome {
			case executor.OutcomePaid:
				summary.Paid++
			case outcomeRetried:
				summary.Retried++
			case executor.OutcomeDeclined:
				summary.Declined++
			default:
				summary.Failed++
			}
			mu.Unlock()
		}
		if err := r.pool.Submit(task); err != nil {
			// Pool saturated or released, fall back to inline execution
			task()
		}
	}
	wg.Wait()

	r.logger.Info("Run complete",
		"window", window,
		"total", summary.Total,
		"paid", summary.Paid,
		"retried", summary.Retried,
		"declined", summary.Declined,
		"failed", summary.Failed,
	)
	return summary, nil
}

const outcomeRetried executor.Outcome = "retried"

// processRow attempts one claimed row in its own transaction. If the
// transaction fails the row stays in processing for operator attention;
// automatic release would risk double charging after an ambiguous failure.
func (r *Runner) processRow(ctx context.Context, row *schedule.ClaimedRow, window string) executor.Outcome {
	var result *executor.Result
	var finalized executor.Outcome

	err := r.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		result, err = r.exec.ExecutePayment(ctx, tx, executor.Params{
			DebtID:             row.DebtID,
			Amount:             row.Amount,
			CardToken:          row.CardToken,
			ScheduledPaymentID: &row.ID,
			AttemptNumber:      row.AttemptCount,
			UpdateScheduleRow:  false,
		})
		if err != nil {
			return err
		}
		finalized, err = r.finalizeRow(ctx, tx, row, result)
		return err
	})
	if err != nil {
		r.logger.Error("Scheduled payment attempt failed",
			"scheduled_payment_id", row.ID, "debt_id", row.DebtID, "window", window, "error", err)
		return executor.OutcomeError
	}

	r.publishEvent(ctx, row, result, window)
	return finalized
}

// finalizeRow moves the claimed row to its post-attempt state in the same
// transaction as the attempt's ledger writes
func (r *Runner) finalizeRow(ctx context.Context, tx pgx.Tx, row *schedule.ClaimedRow, result *executor.Result) (executor.Outcome, error) {
	schedules := r.schedules.WithTx(tx)
	diag := result.Diagnostics()

	if result.Paid() {
		return executor.OutcomePaid, schedules.MarkPaid(ctx, row.ID, result.Payment.ID, diag)
	}

	// Only a balance-related decline earns another attempt. Transport
	// failures arrive classified from their message text and are almost
	// always terminal.
	if result.DeclineReason.Retryable() && row.AttemptCount < r.maxAttempts {
		if next, ok := r.cal.NextRetryAt(row.DueDate, row.AttemptCount); ok {
			return outcomeRetried, schedules.MarkRetrying(ctx, row.ID, diag, next)
		}
	}
	return executor.OutcomeDeclined, schedules.MarkDeclined(ctx, row.ID, diag)
}

func (r *Runner) publishEvent(ctx context.Context, row *schedule.ClaimedRow, result *executor.Result, window string) {
	if r.publisher == nil || result == nil || result.Payment == nil {
		return
	}

	event := shared.PaymentAttemptEvent{
		EventID:            uuid.New(),
		DebtID:             row.DebtID,
		ScheduledPaymentID: &row.ID,
		PaymentID:          result.Payment.ID,
		Amount:             row.Amount,
		Outcome:            string(result.Outcome),
		DeclineReason:      string(result.DeclineReason),
		AttemptNumber:      row.AttemptCount,
		Window:             window,
		OccurredAt:         time.Now().UTC(),
	}
	if err := r.publisher.Publish(ctx, strconv.FormatInt(row.DebtID, 10), event); err != nil {
		r.logger.Warn("Failed to publish payment attempt event",
			"scheduled_payment_id", row.ID, "error", err)
	}
}
