package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/collectline-payments/internal/domain/debt"
	"github.com/collectline-payments/internal/domain/plan"
	"github.com/collectline-payments/internal/domain/schedule"
	"github.com/collectline-payments/internal/executor"
	"github.com/collectline-payments/internal/gateway"
	"github.com/collectline-payments/internal/runner"
	"github.com/jackc/pgx/v5"
)

// PlanServiceImpl implements the PlanService interface
type PlanServiceImpl struct {
	db           TxRunner
	planRepo     plan.Repository
	scheduleRepo schedule.Repository
	debtRepo     debt.Repository
	gw           gateway.Gateway
	exec         runner.PaymentExecutor
	cal          schedule.Calendar
	logger       *slog.Logger
	now          func() time.Time
}

// NewPlanService creates a new payment plan service
func NewPlanService(
	db TxRunner,
	planRepo plan.Repository,
	scheduleRepo schedule.Repository,
	debtRepo debt.Repository,
	gw gateway.Gateway,
	exec runner.PaymentExecutor,
	cal schedule.Calendar,
	logger *slog.Logger,
) PlanService {
	return &PlanServiceImpl{
		db:           db,
		planRepo:     planRepo,
		scheduleRepo: scheduleRepo,
		debtRepo:     debtRepo,
		gw:           gw,
		exec:         exec,
		cal:          cal,
		logger:       logger,
		now:          time.Now,
	}
}

// PreviewSchedule generates a schedule from terms without persisting anything
func (s *PlanServiceImpl) PreviewSchedule(terms plan.Terms) ([]plan.Entry, error) {
	return plan.GenerateSchedule(terms)
}

// CreatePlan tokenizes the card, creates the plan and schedule, and charges
// everything already due. The down payment gates the plan: if it does not
// settle, the whole creation rolls back. The saved card token survives an
// aborted creation so the debtor does not re-enter card details.
func (s *PlanServiceImpl) CreatePlan(ctx context.Context, params CreatePlanParams) (*CreatePlanResult, error) {
	entries, err := plan.GenerateSchedule(params.Terms)
	if err != nil {
		return nil, err
	}

	if _, err := s.debtRepo.GetByID(ctx, params.DebtID); err != nil {
		return nil, err
	}

	token, err := s.gw.Tokenize(ctx, params.Card)
	if err != nil {
		return nil, fmt.Errorf("failed to save card: %w", err)
	}

	p, err := plan.NewPlan(params.DebtID, params.Terms, token)
	if err != nil {
		return nil, err
	}

	today := s.cal.DayStart(s.now().In(s.cal.Location))
	rows := make([]*schedule.ScheduledPayment, 0, len(entries))

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		plans := s.planRepo.WithTx(tx)
		schedules := s.scheduleRepo.WithTx(tx)
		debts := s.debtRepo.WithTx(tx)

		if err := plans.Create(ctx, p); err != nil {
			return err
		}

		rows = rows[:0]
		for _, e := range entries {
			rows = append(rows, schedule.NewScheduledPayment(p.ID, e.Amount, e.DueDate, s.cal))
		}
		if err := schedules.CreateBatch(ctx, rows); err != nil {
			return err
		}

		if err := debts.SetHasPaymentPlan(ctx, params.DebtID, true); err != nil {
			return err
		}

		// Rows created today are invisible to the timed runner, so anything
		// already due is charged right here
		for i, e := range entries {
			if s.cal.DayStart(e.DueDate).After(today) {
				continue
			}
			row := rows[i]
			result, err := s.exec.ExecutePayment(ctx, tx, executor.Params{
				DebtID:             params.DebtID,
				Amount:             row.Amount,
				CardToken:          token,
				ScheduledPaymentID: &row.ID,
				AttemptNumber:      1,
				UpdateScheduleRow:  true,
			})
			if err != nil {
				return err
			}
			if e.Kind == plan.EntryKindDownPayment && !result.Paid() {
				return result.Err()
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Payment plan creation failed", "debt_id", params.DebtID, "error", err)
		return nil, err
	}

	// Reload the schedule so rows charged during creation come back with
	// their settled state
	fresh, err := s.scheduleRepo.ListByPlan(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment plan created",
		"plan_id", p.ID, "debt_id", params.DebtID, "installments", params.Terms.InstallmentCount)
	return &CreatePlanResult{Plan: p, Schedule: fresh}, nil
}

// ListPlansByDebt retrieves a debt's payment plans with their schedules
func (s *PlanServiceImpl) ListPlansByDebt(ctx context.Context, debtID int64) ([]*CreatePlanResult, error) {
	plans, err := s.planRepo.ListByDebt(ctx, debtID)
	if err != nil {
		return nil, err
	}

	out := make([]*CreatePlanResult, 0, len(plans))
	for _, p := range plans {
		rows, err := s.scheduleRepo.ListByPlan(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, &CreatePlanResult{Plan: p, Schedule: rows})
	}
	return out, nil
}
