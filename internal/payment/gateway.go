// Package payment defines the payment gateway contract consumed by the
// checkout flow together with a Stripe adapter and a deterministic mock.
package payment

import "context"

// Gateway charges, refunds and verifies payments.  A declined charge is
// reported through ChargeResult.Success=false; transport failures are
// returned as errors.  Callers treat both the same way.
type Gateway interface {
	ProcessPayment(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	ProcessRefund(ctx context.Context, transactionID string, amountCents uint32) (*RefundResult, error)
	VerifyPayment(ctx context.Context, transactionID string) (string, error)
}

// ChargeRequest describes a single charge.  Amounts are in the smallest
// currency unit.
type ChargeRequest struct {
	AmountCents   uint32
	Currency      string
	CustomerEmail string
	Method        string
	Metadata      map[string]string
}

// ChargeResult is the outcome of ProcessPayment.
type ChargeResult struct {
	Success       bool
	TransactionID string
	Status        string
	ErrorCode     string
	ErrorMessage  string
}

// RefundResult is the outcome of ProcessRefund.
type RefundResult struct {
	Success  bool
	RefundID string
	Status   string
}

// Payment statuses reported by VerifyPayment for the mock gateway.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusRefunded  = "refunded"
)
