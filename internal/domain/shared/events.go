package shared

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentAttemptEvent is published after a payment attempt commits so
// downstream consumers (notifications, reporting) can react. Publishing is
// best effort and never holds up or rolls back the attempt itself.
type PaymentAttemptEvent struct {
	EventID            uuid.UUID       `json:"event_id"`
	DebtID             int64           `json:"debt_id"`
	ScheduledPaymentID *int64          `json:"scheduled_payment_id,omitempty"`
	PaymentID          int64           `json:"payment_id"`
	Amount             decimal.Decimal `json:"amount"`
	Outcome            string          `json:"outcome"`
	DeclineReason      string          `json:"decline_reason,omitempty"`
	AttemptNumber      int             `json:"attempt_number"`
	Window             string          `json:"window,omitempty"`
	OccurredAt         time.Time       `json:"occurred_at"`
}
