package plan

import (
	"time"

	"github.com/collectline-payments/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// EntryKind distinguishes the optional down payment from recurring installments
type EntryKind string

const (
	EntryKindDownPayment EntryKind = "down_payment"
	EntryKindInstallment EntryKind = "installment"
)

// Entry is one dated installment of a generated schedule
type Entry struct {
	DueDate time.Time       `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
	Kind    EntryKind       `json:"kind"`
}

// GenerateSchedule produces the ordered installment schedule for the given terms.
// The down payment, when positive, is emitted first at the start date and shifts
// the installment cadence by one period. Installments are floor-rounded to the
// cent with the final installment absorbing the remainder, so the entries always
// sum to the total settlement amount exactly. A non-positive installment count
// yields only the down payment entry (or an empty schedule).
func GenerateSchedule(terms Terms) ([]Entry, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	start := dateOnly(terms.StartDate)
	var entries []Entry

	offset := 0
	if terms.DownPayment.IsPositive() {
		entries = append(entries, Entry{
			DueDate: start,
			Amount:  terms.DownPayment.Round(2),
			Kind:    EntryKindDownPayment,
		})
		offset = 1
	}

	if terms.InstallmentCount <= 0 {
		return entries, nil
	}

	remaining := terms.Total.Sub(terms.DownPayment)
	count := decimal.NewFromInt(int64(terms.InstallmentCount))
	base := remaining.Div(count).RoundDown(2)

	for i := 0; i < terms.InstallmentCount; i++ {
		amount := base
		if i == terms.InstallmentCount-1 {
			// Final installment absorbs the rounding remainder
			amount = remaining.Sub(base.Mul(decimal.NewFromInt(int64(terms.InstallmentCount - 1))))
		}

		entries = append(entries, Entry{
			DueDate: cadenceDate(start, offset+i, terms.Frequency),
			Amount:  amount,
			Kind:    EntryKindInstallment,
		})
	}

	return entries, nil
}

// cadenceDate computes the due date `steps` periods after the start date.
// Monthly steps are computed from the start date itself so the day-of-month
// anchor survives short months (Jan 31 -> Feb 28 -> Mar 31).
func cadenceDate(start time.Time, steps int, freq shared.Frequency) time.Time {
	switch freq {
	case shared.FrequencyWeekly:
		return start.AddDate(0, 0, 7*steps)
	case shared.FrequencyBiweekly:
		return start.AddDate(0, 0, 14*steps)
	case shared.FrequencyMonthly:
		return addMonthsClamped(start, steps)
	}
	return start
}

// addMonthsClamped advances by whole calendar months, clamping the
// day-of-month to the target month's last day instead of overflowing
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, 0, 0, 0, 0, t.Location())
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
