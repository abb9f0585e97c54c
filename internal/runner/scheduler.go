package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/collectline-payments/internal/domain/schedule"
)

// dueRunner is the surface the scheduler drives
type dueRunner interface {
	RunDuePayments(ctx context.Context, window string) (*Summary, error)
	Calendar() schedule.Calendar
}

// Scheduler fires the runner at the morning and evening windows, computed
// on the local wall clock so the fire times track daylight saving shifts.
type Scheduler struct {
	runner dueRunner
	logger *slog.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler around the given runner
func NewScheduler(r dueRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner: r,
		logger: logger,
		now:    time.Now,
	}
}

// Start runs the fire loop until the context is canceled
func (s *Scheduler) Start(ctx context.Context) {
	cal := s.runner.Calendar()
	s.logger.Info("Starting payment run scheduler",
		"time_zone", cal.Location.String(),
		"morning_hour", cal.MorningHour,
		"evening_hour", cal.EveningHour,
	)

	for {
		fireAt, window := s.NextFire(s.now())
		s.logger.Info("Next payment run scheduled", "window", window, "at", fireAt)

		timer := time.NewTimer(time.Until(fireAt))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Payment run scheduler stopping due to context cancellation.")
			return
		case <-timer.C:
			if _, err := s.runner.RunDuePayments(ctx, window); err != nil {
				s.logger.Error("Scheduled payment run failed", "window", window, "error", err)
			}
		}
	}
}

// NextFire returns the next run window strictly after now
func (s *Scheduler) NextFire(now time.Time) (time.Time, string) {
	cal := s.runner.Calendar()
	local := now.In(cal.Location)

	morning := cal.FirstAttemptAt(local)
	evening := time.Date(local.Year(), local.Month(), local.Day(), cal.EveningHour, 0, 0, 0, cal.Location)

	switch {
	case local.Before(morning):
		return morning, WindowMorning
	case local.Before(evening):
		return evening, WindowEvening
	default:
		return cal.FirstAttemptAt(local.AddDate(0, 0, 1)), WindowMorning
	}
}
