package plan

import (
	"testing"
	"time"

	"github.com/collectline-payments/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestGenerateSchedule_MonthlyWithDownPayment(t *testing.T) {
	entries, err := GenerateSchedule(Terms{
		Total:            dec("1000.00"),
		DownPayment:      dec("100.00"),
		InstallmentCount: 3,
		Frequency:        shared.FrequencyMonthly,
		StartDate:        date(2026, time.January, 1),
	})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, EntryKindDownPayment, entries[0].Kind)
	assert.True(t, entries[0].Amount.Equal(dec("100.00")))
	assert.Equal(t, date(2026, time.January, 1), entries[0].DueDate)

	expected := []struct {
		due    time.Time
		amount string
	}{
		{date(2026, time.February, 1), "300.00"},
		{date(2026, time.March, 1), "300.00"},
		{date(2026, time.April, 1), "300.00"},
	}
	for i, exp := range expected {
		entry := entries[i+1]
		assert.Equal(t, EntryKindInstallment, entry.Kind)
		assert.Equal(t, exp.due, entry.DueDate)
		assert.True(t, entry.Amount.Equal(dec(exp.amount)), "installment %d: got %s", i, entry.Amount)
	}
}

func TestGenerateSchedule_FinalInstallmentAbsorbsRemainder(t *testing.T) {
	start := date(2026, time.March, 2)
	entries, err := GenerateSchedule(Terms{
		Total:            dec("100.00"),
		DownPayment:      decimal.Zero,
		InstallmentCount: 3,
		Frequency:        shared.FrequencyWeekly,
		StartDate:        start,
	})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.True(t, entries[0].Amount.Equal(dec("33.33")))
	assert.True(t, entries[1].Amount.Equal(dec("33.33")))
	assert.True(t, entries[2].Amount.Equal(dec("33.34")))

	// Without a down payment the first installment lands on the start date
	assert.Equal(t, start, entries[0].DueDate)
	assert.Equal(t, start.AddDate(0, 0, 7), entries[1].DueDate)
	assert.Equal(t, start.AddDate(0, 0, 14), entries[2].DueDate)
}

func TestGenerateSchedule_SumsToTotalExactly(t *testing.T) {
	cases := []struct {
		total string
		down  string
		count int
		freq  shared.Frequency
	}{
		{"1000.00", "100.00", 3, shared.FrequencyMonthly},
		{"100.00", "0", 3, shared.FrequencyWeekly},
		{"99.99", "0.01", 7, shared.FrequencyBiweekly},
		{"0.05", "0", 3, shared.FrequencyWeekly},
		{"12345.67", "345.67", 11, shared.FrequencyMonthly},
		{"10.00", "10.00", 4, shared.FrequencyWeekly},
		{"250.00", "0", 1, shared.FrequencyMonthly},
	}

	for _, tc := range cases {
		entries, err := GenerateSchedule(Terms{
			Total:            dec(tc.total),
			DownPayment:      dec(tc.down),
			InstallmentCount: tc.count,
			Frequency:        tc.freq,
			StartDate:        date(2026, time.June, 15),
		})
		require.NoError(t, err)

		sum := decimal.Zero
		for _, entry := range entries {
			sum = sum.Add(entry.Amount)
		}
		assert.True(t, sum.Equal(dec(tc.total)), "total %s down %s count %d: schedule sums to %s", tc.total, tc.down, tc.count, sum)
	}
}

func TestGenerateSchedule_MonthlyEndOfMonthClamping(t *testing.T) {
	entries, err := GenerateSchedule(Terms{
		Total:            dec("400.00"),
		DownPayment:      decimal.Zero,
		InstallmentCount: 4,
		Frequency:        shared.FrequencyMonthly,
		StartDate:        date(2026, time.January, 31),
	})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, date(2026, time.January, 31), entries[0].DueDate)
	assert.Equal(t, date(2026, time.February, 28), entries[1].DueDate)
	// The day-of-month anchor recovers after the short month
	assert.Equal(t, date(2026, time.March, 31), entries[2].DueDate)
	assert.Equal(t, date(2026, time.April, 30), entries[3].DueDate)
}

func TestGenerateSchedule_DownPaymentShiftsCadence(t *testing.T) {
	entries, err := GenerateSchedule(Terms{
		Total:            dec("300.00"),
		DownPayment:      dec("100.00"),
		InstallmentCount: 2,
		Frequency:        shared.FrequencyBiweekly,
		StartDate:        date(2026, time.May, 4),
	})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, date(2026, time.May, 4), entries[0].DueDate)
	assert.Equal(t, date(2026, time.May, 18), entries[1].DueDate)
	assert.Equal(t, date(2026, time.June, 1), entries[2].DueDate)
}

func TestGenerateSchedule_NonPositiveCount(t *testing.T) {
	t.Run("DownPaymentOnly", func(t *testing.T) {
		entries, err := GenerateSchedule(Terms{
			Total:            dec("50.00"),
			DownPayment:      dec("50.00"),
			InstallmentCount: 0,
			Frequency:        shared.FrequencyWeekly,
			StartDate:        date(2026, time.July, 1),
		})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, EntryKindDownPayment, entries[0].Kind)
	})

	t.Run("EmptySchedule", func(t *testing.T) {
		entries, err := GenerateSchedule(Terms{
			Total:            dec("50.00"),
			DownPayment:      decimal.Zero,
			InstallmentCount: 0,
			StartDate:        date(2026, time.July, 1),
		})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestGenerateSchedule_InvalidTerms(t *testing.T) {
	testCases := []struct {
		name  string
		terms Terms
	}{
		{
			name:  "NegativeTotal",
			terms: Terms{Total: dec("-1.00"), InstallmentCount: 2, Frequency: shared.FrequencyWeekly},
		},
		{
			name:  "NegativeDownPayment",
			terms: Terms{Total: dec("100.00"), DownPayment: dec("-5.00"), InstallmentCount: 2, Frequency: shared.FrequencyWeekly},
		},
		{
			name:  "DownPaymentExceedsTotal",
			terms: Terms{Total: dec("100.00"), DownPayment: dec("100.01"), InstallmentCount: 2, Frequency: shared.FrequencyWeekly},
		},
		{
			name:  "UnknownFrequency",
			terms: Terms{Total: dec("100.00"), InstallmentCount: 2, Frequency: "quarterly"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.terms.StartDate = date(2026, time.July, 1)
			entries, err := GenerateSchedule(tc.terms)
			assert.Nil(t, entries)
			var invalidErr ErrInvalidTerms
			assert.ErrorAs(t, err, &invalidErr)
		})
	}
}

func TestNewPlan(t *testing.T) {
	terms := Terms{
		Total:            dec("500.00"),
		DownPayment:      dec("50.00"),
		InstallmentCount: 5,
		Frequency:        shared.FrequencyMonthly,
		StartDate:        date(2026, time.August, 10),
	}

	p, err := NewPlan(42, terms, "tok_abc123")
	require.NoError(t, err)
	assert.Equal(t, int64(42), p.DebtID)
	assert.Equal(t, shared.PlanStatusActive, p.Status)
	assert.Equal(t, "tok_abc123", p.CardToken)
	assert.Equal(t, 5, p.InstallmentCount)

	_, err = NewPlan(42, Terms{Total: dec("-1")}, "tok")
	assert.Error(t, err)
}
