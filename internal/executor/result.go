package executor

import (
	"github.com/collectline-payments/internal/domain/payment"
	"github.com/collectline-payments/internal/domain/schedule"
	"github.com/collectline-payments/internal/domain/shared"
	"github.com/collectline-payments/internal/gateway"
)

// Outcome classifies what happened to a payment attempt
type Outcome string

const (
	OutcomePaid     Outcome = "paid"
	OutcomeDeclined Outcome = "declined"
	OutcomeError    Outcome = "error"
)

// TransportErrorCode stands in for the processor's result code when the
// charge never produced one. Follows the gateway's letter-code scheme
// ("A" approved, "D" declined).
const TransportErrorCode = "E"

// Result is the structured outcome of a payment attempt. The audit trail
// (ledger row, debt mutation, schedule diagnostics) is already written by
// the time a Result is returned; callers decide whether to surface the
// failure as an error or absorb it.
type Result struct {
	Outcome       Outcome
	Payment       *payment.Payment
	Charge        *gateway.ChargeResult
	DeclineReason shared.DeclineReason
	ErrorMessage  string
}

// Paid reports whether the attempt settled money
func (r *Result) Paid() bool {
	return r.Outcome == OutcomePaid
}

// Err translates a failed Result into a typed error for callers that
// surface failures, such as manual execution endpoints. Paid results
// have no error.
func (r *Result) Err() error {
	switch r.Outcome {
	case OutcomeDeclined:
		code, text := "", ""
		if r.Charge != nil {
			code = r.Charge.ResultCode
			text = r.Charge.ResultText
		}
		return gateway.GatewayDeclineError{Code: code, Text: text, Reason: r.DeclineReason}
	case OutcomeError:
		return gateway.GatewayTransportError{Message: r.ErrorMessage}
	}
	return nil
}

// Diagnostics maps the attempt result onto schedule row columns
func (r *Result) Diagnostics() schedule.Diagnostics {
	d := schedule.Diagnostics{
		DeclineReason: r.DeclineReason,
		ErrorMessage:  r.ErrorMessage,
	}
	if r.Payment != nil {
		d.PaymentMethod = r.Payment.PaymentMethod
	}
	if r.Charge != nil {
		d.TransactionReference = r.Charge.Reference
		d.GatewayKey = r.Charge.GatewayKey
		d.ResultCode = r.Charge.ResultCode
		d.Result = r.Charge.ResultText
	} else if r.Outcome == OutcomeError {
		d.ResultCode = TransportErrorCode
	}
	return d
}
