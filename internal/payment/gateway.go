// Package payment abstracts the payment gateway collaborator. The engine
// only ever asks it one thing: charge this amount to this stored token,
// under this idempotency key.
package payment

import "context"

type ChargeRequest struct {
	CustomerToken      string
	PaymentMethodToken string
	AmountCents        int32
	// IdempotencyKey is derived from (overstayID, attemptNumber) and is
	// passed to the gateway as the order identity, so a transport-level
	// retry of the same attempt cannot debit twice.
	IdempotencyKey string
	Description    string
}

type ChargeResult struct {
	// Reference is the gateway's transaction identifier.
	Reference string
}

// Gateway executes tokenized charges. Failures are reported as
// *domain.GatewayError so callers can distinguish retryable from terminal
// outcomes.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}
