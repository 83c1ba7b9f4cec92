package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadBookingConfig_Defaults(t *testing.T) {
	for _, k := range []string{"HOLD_TTL", "CLEANUP_INTERVAL", "CLEANUP_BATCH_SIZE", "CLEANUP_LEASE_TTL",
		"PAYMENT_GATEWAY", "PAYMENT_CURRENCY", "NOTIFY_QUEUE_URL", "RABBITMQ_URL", "AMQP_URL", "SIDE_EFFECT_TIMEOUT"} {
		t.Setenv(k, "")
	}

	c := LoadBookingConfig()
	assert.Equal(t, 10*time.Minute, c.HoldTTL)
	assert.Equal(t, 60*time.Second, c.CleanupInterval)
	assert.Equal(t, 200, c.CleanupBatchSize)
	assert.Equal(t, 50*time.Second, c.CleanupLeaseTTL)
	assert.Equal(t, "mock", c.PaymentGateway)
	assert.Equal(t, "usd", c.PaymentCurrency)
	assert.Empty(t, c.NotifyQueueURL)
	assert.Equal(t, 10*time.Second, c.SideEffectTimeout)
}

func TestLoadBookingConfig_Overrides(t *testing.T) {
	t.Setenv("HOLD_TTL", "5m")
	t.Setenv("CLEANUP_INTERVAL", "30s")
	t.Setenv("CLEANUP_BATCH_SIZE", "-4")
	t.Setenv("CLEANUP_LEASE_TTL", "0s")
	t.Setenv("PAYMENT_GATEWAY", "Stripe")
	t.Setenv("PAYMENT_CURRENCY", "EUR")
	t.Setenv("NOTIFY_QUEUE_URL", "")
	t.Setenv("RABBITMQ_URL", "amqp://rabbit:5672/")

	c := LoadBookingConfig()
	assert.Equal(t, 5*time.Minute, c.HoldTTL)
	assert.Equal(t, 30*time.Second, c.CleanupInterval)
	assert.Equal(t, 200, c.CleanupBatchSize)
	assert.Equal(t, 25*time.Second, c.CleanupLeaseTTL)
	assert.Equal(t, "stripe", c.PaymentGateway)
	assert.Equal(t, "eur", c.PaymentCurrency)
	assert.Equal(t, "amqp://rabbit:5672/", c.NotifyQueueURL)
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	t.Setenv("RATE_LIMIT_BURST", "")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 2*time.Second, c.RefillInterval)
	assert.Equal(t, 10*time.Second, c.TTL, "ttl raised to five refill intervals")
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_TLS", "1")

	opts, err := redisOptions()
	assert.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB)
	assert.NotNil(t, opts.TLSConfig)

	t.Setenv("REDIS_URL", "redis://:secret@redis.internal:6379/2")
	opts, err = redisOptions()
	assert.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
}
