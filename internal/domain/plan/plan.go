package plan

import (
	"time"

	"github.com/collectline-payments/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Terms describes the settlement agreement a plan is generated from
type Terms struct {
	Total            decimal.Decimal
	DownPayment      decimal.Decimal
	InstallmentCount int
	Frequency        shared.Frequency
	StartDate        time.Time // calendar date; time-of-day is ignored
}

// Validate rejects negative or inconsistent settlement terms before anything is persisted
func (t Terms) Validate() error {
	if t.Total.IsNegative() {
		return ErrInvalidTerms{Reason: "total settlement amount cannot be negative"}
	}
	if t.DownPayment.IsNegative() {
		return ErrInvalidTerms{Reason: "down payment cannot be negative"}
	}
	if t.DownPayment.GreaterThan(t.Total) {
		return ErrInvalidTerms{Reason: "down payment exceeds total settlement amount"}
	}
	if t.InstallmentCount > 0 && !t.Frequency.Valid() {
		return ErrInvalidTerms{Reason: "unsupported frequency: " + string(t.Frequency)}
	}
	return nil
}

// Plan represents a payment plan agreed with a debtor.
// Status is mutated by external collaborators; this engine only reads it.
type Plan struct {
	ID                    int64             `json:"id"`
	DebtID                int64             `json:"debt_id"`
	TotalSettlementAmount decimal.Decimal   `json:"total_settlement_amount"`
	DownPaymentAmount     decimal.Decimal   `json:"down_payment_amount"`
	InstallmentCount      int               `json:"installment_count"`
	Frequency             shared.Frequency  `json:"frequency"`
	StartDate             time.Time         `json:"start_date"`
	CardToken             string            `json:"-"` // reusable gateway credential, never serialized
	Status                shared.PlanStatus `json:"status"`
	CreatedAt             time.Time         `json:"created_at"`
}

// NewPlan creates an active plan from validated terms and a saved card token
func NewPlan(debtID int64, terms Terms, cardToken string) (*Plan, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	return &Plan{
		DebtID:                debtID,
		TotalSettlementAmount: terms.Total,
		DownPaymentAmount:     terms.DownPayment,
		InstallmentCount:      terms.InstallmentCount,
		Frequency:             terms.Frequency,
		StartDate:             terms.StartDate,
		CardToken:             cardToken,
		Status:                shared.PlanStatusActive,
		CreatedAt:             time.Now(),
	}, nil
}

// ErrInvalidTerms indicates schedule inputs that fail validation
type ErrInvalidTerms struct {
	Reason string
}

func (e ErrInvalidTerms) Error() string {
	return "invalid settlement terms: " + e.Reason
}
