package payment

import (
	"context"
	"fmt"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"

	"kitchenhub-backend/internal/domain"
	"kitchenhub-backend/internal/logger"
)

// midtransGateway charges saved card tokens through the Midtrans core
// API. The idempotency key rides as the order ID: Midtrans rejects a
// duplicate order ID, which gives us at-most-one debit per attempt.
type midtransGateway struct {
	client coreapi.Client
}

func NewMidtransGateway(serverKey string, production bool) Gateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	g := &midtransGateway{}
	g.client.New(serverKey, env)
	return g
}

func (g *midtransGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	chargeReq := &coreapi.ChargeReq{
		PaymentType: coreapi.PaymentTypeCreditCard,
		// The gateway account is denominated in the platform's minor
		// unit, so cents pass through unconverted.
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.IdempotencyKey,
			GrossAmt: int64(req.AmountCents),
		},
		CreditCard: &coreapi.CreditCardDetails{
			TokenID: req.PaymentMethodToken,
		},
		CustomExpiry: &coreapi.CustomExpiry{
			ExpiryDuration: 1,
			Unit:           "day",
		},
	}

	// The midtrans client has no context support; run the call on the
	// side so the configured deadline is honored. A timed-out call has
	// an unknown outcome and must be reported transient, never assumed
	// failed — the idempotency key makes the retry safe.
	type chargeOutcome struct {
		resp *coreapi.ChargeResponse
		err  *midtrans.Error
	}
	done := make(chan chargeOutcome, 1)
	go func() {
		resp, err := g.client.ChargeTransaction(chargeReq)
		done <- chargeOutcome{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, &domain.GatewayError{
			Transient: true,
			Reason:    "gateway call timed out, outcome unknown",
			Err:       ctx.Err(),
		}
	case outcome := <-done:
		return classify(outcome.resp, outcome.err)
	}
}

func classify(resp *coreapi.ChargeResponse, midErr *midtrans.Error) (*ChargeResult, error) {
	if midErr != nil {
		// No HTTP status means the request never reached Midtrans;
		// 5xx means Midtrans itself failed. Both are retryable.
		if midErr.StatusCode == 0 || midErr.StatusCode >= 500 {
			return nil, &domain.GatewayError{Transient: true, Reason: midErr.GetMessage(), Err: midErr}
		}
		return nil, &domain.GatewayError{Transient: false, Reason: midErr.GetMessage(), Err: midErr}
	}

	switch resp.TransactionStatus {
	case "capture", "settlement":
		logger.Debug("Charge captured", "transaction_id", resp.TransactionID, "order_id", resp.OrderID)
		return &ChargeResult{Reference: resp.TransactionID}, nil
	case "deny":
		return nil, &domain.GatewayError{
			Transient: false,
			Reason:    fmt.Sprintf("card declined (%s)", resp.StatusMessage),
		}
	case "pending":
		return nil, &domain.GatewayError{
			Transient: true,
			Reason:    "charge pending at gateway, outcome unknown",
		}
	default:
		return nil, &domain.GatewayError{
			Transient: false,
			Reason:    fmt.Sprintf("charge not captured: %s (%s)", resp.TransactionStatus, resp.StatusMessage),
		}
	}
}
