package config

import (
	"os"
	"strings"
	"time"
)

// BookingConfig holds the tunables of the seat inventory core.
type BookingConfig struct {
	HoldTTL           time.Duration // default lifetime of a seat hold
	CleanupInterval   time.Duration // time between reclaimer sweeps
	CleanupBatchSize  int           // expired holds loaded per query
	CleanupLeaseTTL   time.Duration // lifetime of the reclaimer's Redis lease
	PaymentGateway    string        // "mock" or "stripe"
	PaymentCurrency   string        // ISO currency charged at checkout
	StripeSecretKey   string
	NotifyQueueURL    string        // AMQP URL; empty disables notifications
	SideEffectTimeout time.Duration // deadline of each fire-and-forget side effect
}

// LoadBookingConfig reads the booking settings, falling back to defaults.
// A lease TTL shorter than the sweep interval is kept as is; a lease TTL
// of zero or less is replaced by 5/6 of the interval.
func LoadBookingConfig() BookingConfig {
	c := BookingConfig{
		HoldTTL:           envDur("HOLD_TTL", 10*time.Minute),
		CleanupInterval:   envDur("CLEANUP_INTERVAL", 60*time.Second),
		CleanupBatchSize:  envInt("CLEANUP_BATCH_SIZE", 200),
		CleanupLeaseTTL:   envDur("CLEANUP_LEASE_TTL", 50*time.Second),
		PaymentGateway:    strings.ToLower(envStr("PAYMENT_GATEWAY", "mock")),
		PaymentCurrency:   strings.ToLower(envStr("PAYMENT_CURRENCY", "usd")),
		StripeSecretKey:   os.Getenv("STRIPE_SECRET_KEY"),
		NotifyQueueURL:    firstEnv("NOTIFY_QUEUE_URL", "RABBITMQ_URL", "AMQP_URL"),
		SideEffectTimeout: envDur("SIDE_EFFECT_TIMEOUT", 10*time.Second),
	}
	if c.HoldTTL <= 0 {
		c.HoldTTL = 10 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 60 * time.Second
	}
	if c.CleanupBatchSize < 1 {
		c.CleanupBatchSize = 200
	}
	if c.CleanupLeaseTTL <= 0 {
		c.CleanupLeaseTTL = c.CleanupInterval * 5 / 6
	}
	if c.SideEffectTimeout <= 0 {
		c.SideEffectTimeout = 10 * time.Second
	}
	return c
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
