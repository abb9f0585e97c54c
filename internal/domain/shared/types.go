package shared

// Frequency defines the installment cadence of a payment plan
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

// Valid reports whether the frequency is one of the supported cadences
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// PlanStatus defines payment plan lifecycle states
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCancelled PlanStatus = "cancelled"
)

// ScheduleStatus defines scheduled payment lifecycle states.
// paid, declined and cancelled are terminal; missed and cancelled are set
// only by external collaborators, never by the execution engine.
type ScheduleStatus string

const (
	ScheduleStatusPending    ScheduleStatus = "pending"
	ScheduleStatusProcessing ScheduleStatus = "processing"
	ScheduleStatusRetrying   ScheduleStatus = "retrying"
	ScheduleStatusPaid       ScheduleStatus = "paid"
	ScheduleStatusDeclined   ScheduleStatus = "declined"
	ScheduleStatusMissed     ScheduleStatus = "missed"
	ScheduleStatusCancelled  ScheduleStatus = "cancelled"
)

// Terminal reports whether no further attempts may move the row forward
func (s ScheduleStatus) Terminal() bool {
	switch s {
	case ScheduleStatusPaid, ScheduleStatusDeclined, ScheduleStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus defines the outcome recorded on a ledger row
type PaymentStatus string

const (
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusDeclined PaymentStatus = "declined"
)

// DeclineReason categorizes a failed charge for retry eligibility
type DeclineReason string

const (
	// DeclineReasonInsufficientFunds is the only category the runner ever retries
	DeclineReasonInsufficientFunds DeclineReason = "insufficient_funds"
	DeclineReasonDoNotRetry        DeclineReason = "do_not_retry"
	// DeclineReasonUnknown is produced for empty result text; the runner treats it as terminal
	DeclineReasonUnknown DeclineReason = "unknown"
)

// Retryable reports whether the retry calendar applies to this reason
func (r DeclineReason) Retryable() bool {
	return r == DeclineReasonInsufficientFunds
}

// PaymentMethod identifies how a ledger row was settled
type PaymentMethod string

const (
	PaymentMethodCardToken PaymentMethod = "card_token"
	PaymentMethodManual    PaymentMethod = "manual"
	PaymentMethodInternal  PaymentMethod = "internal"
)
