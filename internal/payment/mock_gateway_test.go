package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGateway_ChargeAndRefund(t *testing.T) {
	g := NewMockGateway()
	ctx := context.Background()

	res, err := g.ProcessPayment(ctx, ChargeRequest{AmountCents: 2500, Currency: "usd", Method: "pm_card_visa"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.NotEmpty(t, res.TransactionID)

	status, err := g.VerifyPayment(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, status)

	_, err = g.ProcessRefund(ctx, res.TransactionID, 3000)
	assert.Error(t, err, "refund above captured amount")

	ref, err := g.ProcessRefund(ctx, res.TransactionID, 2500)
	require.NoError(t, err)
	assert.True(t, ref.Success)

	status, err = g.VerifyPayment(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, status)
}

func TestMockGateway_Declines(t *testing.T) {
	g := NewMockGateway()
	ctx := context.Background()

	tests := []struct {
		name string
		req  ChargeRequest
		code string
	}{
		{"declined card", ChargeRequest{AmountCents: 100, Method: "tok_chargeDeclined"}, "card_declined"},
		{"insufficient funds", ChargeRequest{AmountCents: 100, Method: "tok_chargeDeclinedInsufficientFunds"}, "insufficient_funds"},
		{"missing method", ChargeRequest{AmountCents: 100}, "invalid_payment_method"},
		{"zero amount", ChargeRequest{Method: "pm_card_visa"}, "invalid_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := g.ProcessPayment(ctx, tt.req)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.code, res.ErrorCode)
		})
	}
}

func TestMockGateway_RefundUnknownTransaction(t *testing.T) {
	_, err := NewMockGateway().ProcessRefund(context.Background(), "nope", 1)
	assert.Error(t, err)
}

func TestMockGateway_DelayHonoursContext(t *testing.T) {
	g := &MockGateway{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := g.ProcessPayment(ctx, ChargeRequest{AmountCents: 100, Method: "pm_card_visa"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
