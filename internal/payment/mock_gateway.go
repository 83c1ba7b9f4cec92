package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Payment methods the mock declines, keyed to the error code it reports.
// They mirror Stripe's test tokens.
var mockDeclines = map[string]string{
	"tok_chargeDeclined":                  "card_declined",
	"tok_chargeDeclinedInsufficientFunds": "insufficient_funds",
	"tok_chargeDeclinedExpiredCard":       "expired_card",
}

type mockTxn struct {
	amountCents uint32
	currency    string
	status      string
}

// MockGateway approves every charge except the declining test methods.
// Transactions are kept in memory so refunds and verification work.
type MockGateway struct {
	// Delay simulates gateway latency; the call honours ctx while waiting.
	Delay time.Duration

	transactions sync.Map
}

// NewMockGateway returns a mock gateway with no latency.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) wait(ctx context.Context) error {
	if g.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.Delay):
		return nil
	}
}

// ProcessPayment approves or declines the charge based on req.Method.
func (g *MockGateway) ProcessPayment(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	if req.Method == "" {
		return &ChargeResult{Status: StatusFailed, ErrorCode: "invalid_payment_method", ErrorMessage: "payment method is required"}, nil
	}
	if req.AmountCents == 0 {
		return &ChargeResult{Status: StatusFailed, ErrorCode: "invalid_amount", ErrorMessage: "amount must be positive"}, nil
	}

	txnID := fmt.Sprintf("mock_txn_%s", uuid.New().String()[:8])
	if code, declined := mockDeclines[req.Method]; declined {
		g.transactions.Store(txnID, &mockTxn{amountCents: req.AmountCents, currency: req.Currency, status: StatusFailed})
		return &ChargeResult{TransactionID: txnID, Status: StatusFailed, ErrorCode: code, ErrorMessage: "your card was declined"}, nil
	}

	g.transactions.Store(txnID, &mockTxn{amountCents: req.AmountCents, currency: req.Currency, status: StatusSucceeded})
	return &ChargeResult{Success: true, TransactionID: txnID, Status: StatusSucceeded}, nil
}

// ProcessRefund refunds a succeeded transaction, up to its captured
// amount.
func (g *MockGateway) ProcessRefund(ctx context.Context, transactionID string, amountCents uint32) (*RefundResult, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	v, ok := g.transactions.Load(transactionID)
	if !ok {
		return nil, fmt.Errorf("transaction not found: %s", transactionID)
	}
	txn := v.(*mockTxn)
	if txn.status != StatusSucceeded {
		return &RefundResult{Status: txn.status}, nil
	}
	if amountCents > txn.amountCents {
		return nil, fmt.Errorf("refund of %d exceeds captured amount %d", amountCents, txn.amountCents)
	}
	g.transactions.Store(transactionID, &mockTxn{amountCents: txn.amountCents, currency: txn.currency, status: StatusRefunded})
	return &RefundResult{Success: true, RefundID: "mock_re_" + uuid.New().String()[:8], Status: StatusSucceeded}, nil
}

// VerifyPayment reports the current status of a transaction.
func (g *MockGateway) VerifyPayment(ctx context.Context, transactionID string) (string, error) {
	v, ok := g.transactions.Load(transactionID)
	if !ok {
		return "", fmt.Errorf("transaction not found: %s", transactionID)
	}
	return v.(*mockTxn).status, nil
}
