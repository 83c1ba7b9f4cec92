package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
)

// StripeGateway charges through Stripe PaymentIntents, confirmed
// server-side with the supplied payment method.
type StripeGateway struct {
	currency string
}

// NewStripeGateway configures the Stripe client with secretKey.
func NewStripeGateway(secretKey, currency string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	stripe.Key = secretKey
	if currency == "" {
		currency = "usd"
	}
	return &StripeGateway{currency: currency}, nil
}

func (g *StripeGateway) ProcessPayment(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	currency := req.Currency
	if currency == "" {
		currency = g.currency
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(int64(req.AmountCents)),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(req.Method),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
		Metadata: make(map[string]string),
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
			res := &ChargeResult{Status: StatusFailed, ErrorCode: string(se.Code), ErrorMessage: se.Msg}
			if se.DeclineCode != "" {
				res.ErrorCode = string(se.DeclineCode)
			}
			return res, nil
		}
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	res := &ChargeResult{TransactionID: pi.ID, Status: string(pi.Status)}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		res.Success = true
	case stripe.PaymentIntentStatusCanceled:
		res.ErrorCode = "canceled"
	default:
		res.ErrorCode = string(pi.Status)
	}
	return res, nil
}

func (g *StripeGateway) ProcessRefund(ctx context.Context, transactionID string, amountCents uint32) (*RefundResult, error) {
	if transactionID == "" {
		return nil, fmt.Errorf("transaction ID is required")
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(transactionID),
		Amount:        stripe.Int64(int64(amountCents)),
	}
	r, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create refund: %w", err)
	}
	return &RefundResult{
		Success:  r.Status != stripe.RefundStatusFailed && r.Status != stripe.RefundStatusCanceled,
		RefundID: r.ID,
		Status:   string(r.Status),
	}, nil
}

func (g *StripeGateway) VerifyPayment(ctx context.Context, transactionID string) (string, error) {
	pi, err := paymentintent.Get(transactionID, nil)
	if err != nil {
		return "", fmt.Errorf("stripe: get payment intent: %w", err)
	}
	return string(pi.Status), nil
}
