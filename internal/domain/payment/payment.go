package payment

import (
	"time"

	"github.com/collectline-payments/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Payment is one immutable ledger row recording the outcome of a charge
// attempt, successful or declined. Ledger rows are never updated after
// insertion; corrections happen through offsetting entries.
type Payment struct {
	ID                 int64                `json:"id"`
	DebtID             int64                `json:"debt_id"`
	ScheduledPaymentID *int64               `json:"scheduled_payment_id,omitempty"`
	Amount             decimal.Decimal      `json:"amount"`
	AgencyPortion      decimal.Decimal      `json:"agency_portion"`
	ClientPortion      decimal.Decimal      `json:"client_portion"`
	Status             shared.PaymentStatus `json:"status"`
	PaymentMethod      shared.PaymentMethod `json:"payment_method"`
	PaymentDate        time.Time            `json:"payment_date"`

	// Gateway diagnostics captured at attempt time
	TransactionReference *string `json:"transaction_reference,omitempty"`
	GatewayKey           *string `json:"gateway_key,omitempty"`
	ResultCode           *string `json:"result_code,omitempty"`
	Result               *string `json:"result,omitempty"`
	DeclineReason        *string `json:"decline_reason,omitempty"`
	ErrorMessage         *string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Split divides a settled amount between agency commission and client
// remittance. The agency portion is the commission percentage rounded
// half-up to the cent; the client portion absorbs any rounding remainder
// so the two always sum to the amount exactly.
func Split(amount decimal.Decimal, commissionRate decimal.Decimal) (agency, client decimal.Decimal) {
	agency = amount.Mul(commissionRate).Div(decimal.NewFromInt(100)).Round(2)
	client = amount.Sub(agency)
	return agency, client
}

// NewSettled builds a paid ledger row with its commission split applied
func NewSettled(debtID int64, scheduledPaymentID *int64, amount, commissionRate decimal.Decimal, method shared.PaymentMethod, at time.Time) *Payment {
	agency, client := Split(amount, commissionRate)
	return &Payment{
		DebtID:             debtID,
		ScheduledPaymentID: scheduledPaymentID,
		Amount:             amount,
		AgencyPortion:      agency,
		ClientPortion:      client,
		Status:             shared.PaymentStatusPaid,
		PaymentMethod:      method,
		PaymentDate:        at,
	}
}

// NewDeclined builds a declined ledger row. Declined rows carry zero
// portions so ledger aggregates over settled money stay correct.
func NewDeclined(debtID int64, scheduledPaymentID *int64, amount decimal.Decimal, method shared.PaymentMethod, at time.Time) *Payment {
	return &Payment{
		DebtID:             debtID,
		ScheduledPaymentID: scheduledPaymentID,
		Amount:             amount,
		AgencyPortion:      decimal.Zero,
		ClientPortion:      decimal.Zero,
		Status:             shared.PaymentStatusDeclined,
		PaymentMethod:      method,
		PaymentDate:        at,
	}
}
