package schedule

import "time"

const (
	// DefaultMorningHour is the local hour of the first daily run window
	DefaultMorningHour = 5
	// DefaultEveningHour is the local hour of the same-day retry window
	DefaultEveningHour = 17
)

// Calendar maps due dates and attempt counts to absolute retry timestamps
// in the portfolio's local time zone.
type Calendar struct {
	Location    *time.Location
	MorningHour int
	EveningHour int
}

// NewCalendar returns a Calendar with the standard run windows
func NewCalendar(loc *time.Location) Calendar {
	return Calendar{
		Location:    loc,
		MorningHour: DefaultMorningHour,
		EveningHour: DefaultEveningHour,
	}
}

// FirstAttemptAt returns the morning run window on the due date itself
func (c Calendar) FirstAttemptAt(dueDate time.Time) time.Time {
	return c.at(dueDate, c.MorningHour)
}

// NextRetryAt returns the timestamp of the next attempt after attemptsMade
// failures. The second return is false once the attempt budget is spent:
// one failure retries the same evening, two failures retry the next morning,
// three failures are terminal.
func (c Calendar) NextRetryAt(dueDate time.Time, attemptsMade int) (time.Time, bool) {
	switch attemptsMade {
	case 1:
		return c.at(dueDate, c.EveningHour), true
	case 2:
		return c.at(dueDate.AddDate(0, 0, 1), c.MorningHour), true
	default:
		return time.Time{}, false
	}
}

// DayStart returns local midnight on the given date. Rows created on or
// after their own due date's start are excluded from automatic runs.
func (c Calendar) DayStart(dueDate time.Time) time.Time {
	return c.at(dueDate, 0)
}

func (c Calendar) at(d time.Time, hour int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, c.Location)
}
