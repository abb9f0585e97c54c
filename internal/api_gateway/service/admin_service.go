package service

import (
	"context"
	"log/slog"

	"github.com/collectline-payments/internal/domain/schedule"
	"github.com/collectline-payments/internal/runner"
)

// DueRunner triggers a collection pass over due scheduled payments
type DueRunner interface {
	RunDuePayments(ctx context.Context, window string) (*runner.Summary, error)
}

// AdminServiceImpl implements the AdminService interface
type AdminServiceImpl struct {
	scheduleRepo schedule.Repository
	runner       DueRunner
	logger       *slog.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(scheduleRepo schedule.Repository, dueRunner DueRunner, logger *slog.Logger) AdminService {
	return &AdminServiceImpl{
		scheduleRepo: scheduleRepo,
		runner:       dueRunner,
		logger:       logger,
	}
}

// ListScheduledPayments retrieves scheduled payments matching the filter
func (s *AdminServiceImpl) ListScheduledPayments(ctx context.Context, filter schedule.ListFilter) ([]*schedule.ScheduledPayment, error) {
	return s.scheduleRepo.List(ctx, filter)
}

// RunDuePayments kicks off an out-of-band collection pass
func (s *AdminServiceImpl) RunDuePayments(ctx context.Context) (*runner.Summary, error) {
	s.logger.Info("Manual collection pass requested")
	return s.runner.RunDuePayments(ctx, runner.WindowManual)
}
