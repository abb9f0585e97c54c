package schedule

import (
	"testing"
	"time"

	"github.com/collectline-payments/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func TestCalendar_FirstAttemptAt(t *testing.T) {
	loc := chicago(t)
	cal := NewCalendar(loc)

	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	got := cal.FirstAttemptAt(due)

	assert.Equal(t, time.Date(2026, 3, 10, 5, 0, 0, 0, loc), got)
}

func TestCalendar_NextRetryAt(t *testing.T) {
	loc := chicago(t)
	cal := NewCalendar(loc)
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("first failure retries same evening", func(t *testing.T) {
		at, ok := cal.NextRetryAt(due, 1)
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 3, 10, 17, 0, 0, 0, loc), at)
	})

	t.Run("second failure retries next morning", func(t *testing.T) {
		at, ok := cal.NextRetryAt(due, 2)
		require.True(t, ok)
		assert.Equal(t, time.Date(2026, 3, 11, 5, 0, 0, 0, loc), at)
	})

	t.Run("third failure is terminal", func(t *testing.T) {
		_, ok := cal.NextRetryAt(due, 3)
		assert.False(t, ok)
	})
}

func TestCalendar_NextRetryAt_AcrossDSTTransition(t *testing.T) {
	// US DST starts 2026-03-08; windows stay pinned to local clock hours
	loc := chicago(t)
	cal := NewCalendar(loc)
	due := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

	at, ok := cal.NextRetryAt(due, 2)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 8, 5, 0, 0, 0, loc), at)
	assert.Equal(t, 5, at.Hour())
}

func TestNewScheduledPayment(t *testing.T) {
	loc := chicago(t)
	cal := NewCalendar(loc)
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	sp := NewScheduledPayment(7, decimal.RequireFromString("300.00"), due, cal)

	assert.Equal(t, int64(7), sp.PlanID)
	assert.Equal(t, shared.ScheduleStatusPending, sp.Status)
	assert.Equal(t, 0, sp.AttemptCount)
	require.NotNil(t, sp.NextAttemptAt)
	assert.Equal(t, time.Date(2026, 3, 10, 5, 0, 0, 0, loc), *sp.NextAttemptAt)
	assert.True(t, sp.Attemptable())
}

func TestScheduledPayment_Attemptable(t *testing.T) {
	cases := []struct {
		status shared.ScheduleStatus
		want   bool
	}{
		{shared.ScheduleStatusPending, true},
		{shared.ScheduleStatusRetrying, true},
		{shared.ScheduleStatusProcessing, false},
		{shared.ScheduleStatusPaid, false},
		{shared.ScheduleStatusDeclined, false},
		{shared.ScheduleStatusCancelled, false},
	}
	for _, c := range cases {
		sp := &ScheduledPayment{Status: c.status}
		assert.Equal(t, c.want, sp.Attemptable(), string(c.status))
	}
}
