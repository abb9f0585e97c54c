package debt

import (
	"time"

	"github.com/collectline-payments/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status defines debt lifecycle states
type Status string

const (
	StatusNew           Status = "new"
	StatusInPlan        Status = "payment_plan"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusDisputed      Status = "disputed"
)

// Debt is a placed account owned by a collection portfolio. The execution
// engine mutates only its running balances; placement and dispute handling
// belong to other systems.
type Debt struct {
	ID                    int64                 `json:"id"`
	DebtorID              int64                 `json:"debtor_id"`
	PortfolioID           int64                 `json:"portfolio_id"`
	ClientReferenceNumber string                `json:"client_reference_number"`
	OriginalAmount        decimal.Decimal       `json:"original_amount"`
	AmountDue             decimal.Decimal       `json:"amount_due"`
	TotalPaid             decimal.Decimal       `json:"total_paid"`
	Status                Status                `json:"status"`
	LastPaymentAmount     *decimal.Decimal      `json:"last_payment_amount,omitempty"`
	LastPaymentDate       *time.Time            `json:"last_payment_date,omitempty"`
	LastPaymentID         *int64                `json:"last_payment_id,omitempty"`
	LastPaymentReference  *string               `json:"last_payment_reference,omitempty"`
	LastPaymentMethod     *shared.PaymentMethod `json:"last_payment_method,omitempty"`
	HasPaymentPlan        bool                  `json:"has_payment_plan"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

// PaymentStamp identifies the ledger row that last moved a debt's balance
type PaymentStamp struct {
	PaymentID int64
	Reference string
	Method    shared.PaymentMethod
}

// ApplyPayment posts a settled amount against the balance: amount due goes
// down, total paid and the last payment fields move, and the debt flips to
// paid once nothing remains. The balance may go negative on overpayment;
// it is preserved as-is for reconciliation.
func (d *Debt) ApplyPayment(amount decimal.Decimal, at time.Time, stamp PaymentStamp) {
	d.AmountDue = d.AmountDue.Sub(amount)
	d.TotalPaid = d.TotalPaid.Add(amount)
	d.LastPaymentAmount = &amount
	d.LastPaymentDate = &at
	d.LastPaymentID = &stamp.PaymentID
	if stamp.Reference != "" {
		d.LastPaymentReference = &stamp.Reference
	}
	if stamp.Method != "" {
		d.LastPaymentMethod = &stamp.Method
	}
	if d.AmountDue.LessThanOrEqual(decimal.Zero) {
		d.Status = StatusPaid
	} else if d.Status == StatusNew {
		d.Status = StatusPartiallyPaid
	}
}

// Settled reports whether the balance has been fully collected
func (d *Debt) Settled() bool {
	return d.AmountDue.LessThanOrEqual(decimal.Zero)
}

// BillingDetails carries the debtor identity and address columns the
// gateway requires when saving a card.
type BillingDetails struct {
	DebtID     int64
	FirstName  string
	LastName   string
	Street     string
	City       string
	State      string
	PostalCode string
	Phone      string
	Email      string
}
