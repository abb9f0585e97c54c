package gateway

import (
	"context"
	"fmt"

	"github.com/collectline-payments/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ChargeStatus tags the outcome variant of a charge attempt
type ChargeStatus string

const (
	ChargeApproved ChargeStatus = "approved"
	ChargeDeclined ChargeStatus = "declined"
	ChargeError    ChargeStatus = "error"
)

// CardDetails carries raw card data for tokenization. It is never persisted
// and never logged.
type CardDetails struct {
	Number     string
	Expiration string // MMYY
	CVV        string
	Cardholder string
	Street     string
	PostalCode string
}

// Customer carries the debtor identity forwarded with a sale so the
// processor's records line up with ours.
type Customer struct {
	FirstName  string
	LastName   string
	Street     string
	City       string
	State      string
	PostalCode string
	Phone      string
	Email      string
	CustomerID string
}

// ChargeRequest describes one sale against a saved token
type ChargeRequest struct {
	Token            string
	Amount           decimal.Decimal
	Invoice          string
	Customer         *Customer
	StoredCredential bool
}

// ChargeResult is the structured outcome of a charge attempt. Status
// selects which fields are meaningful: approved and declined carry the
// processor columns, error carries only Message.
type ChargeResult struct {
	Status     ChargeStatus
	Reference  string
	GatewayKey string
	ResultCode string
	ResultText string
	AuthCode   string
	Message    string
	Raw        map[string]any
}

// Approved reports whether the charge settled
func (r *ChargeResult) Approved() bool {
	return r.Status == ChargeApproved
}

// Gateway is the card processor surface the execution engine depends on
type Gateway interface {
	// Tokenize saves a card and returns its reusable token
	Tokenize(ctx context.Context, card CardDetails) (string, error)
	// Charge runs a sale against a saved token. Processor declines come
	// back as a declined ChargeResult; only transport failures are errors.
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	// Void cancels a prior transaction by its reference
	Void(ctx context.Context, reference string) error
	// VerifyConnection checks credentials against the processor account
	VerifyConnection(ctx context.Context) error
}

// Invoice encodes attempt provenance into the processor-visible invoice id
// so a transaction in the processor portal can be traced back to its row.
func Invoice(debtID int64, scheduledPaymentID *int64, attemptNumber int) string {
	sp := "manual"
	if scheduledPaymentID != nil {
		sp = fmt.Sprintf("%d", *scheduledPaymentID)
	}
	return fmt.Sprintf("Debt-%d-SP%s-A%d", debtID, sp, attemptNumber)
}

// GatewayDeclineError surfaces a processor decline on manual execution
// paths after the audit trail has committed.
type GatewayDeclineError struct {
	Code   string
	Text   string
	Reason shared.DeclineReason
}

func (e GatewayDeclineError) Error() string {
	return fmt.Sprintf("payment declined (%s): %s", e.Code, e.Text)
}

// GatewayTransportError surfaces a processor communication failure
type GatewayTransportError struct {
	Message string
}

func (e GatewayTransportError) Error() string {
	return fmt.Sprintf("payment gateway unreachable: %s", e.Message)
}
