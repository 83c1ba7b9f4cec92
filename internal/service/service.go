// Package service implements the seat inventory core: direct booking
// and holds, hold release, show provisioning, checkout with payment
// and cancellation.  Each operation runs inside one store transaction;
// repository errors are translated into the kinds declared in
// errors.go.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/google/uuid"
)

const instrumentation = "github.com/iliyamo/cinema-seat-inventory/internal/service"

// CancellationWindow is how long before a show starts a booking can
// still be cancelled.
const CancellationWindow = 24 * time.Hour

// Notification kinds published to the Notifier.
const (
	NotifyBookingConfirmed = "booking.confirmed"
	NotifyBookingCancelled = "booking.cancelled"
	NotifyRefundIssued     = "payment.refunded"
)

// Notifier delivers best-effort notifications.  Errors are logged by
// the caller and never fail the operation that triggered them.
type Notifier interface {
	Notify(ctx context.Context, kind string, payload any) error
}

// Option configures a service.
type Option func(*deps)

type deps struct {
	now               func() time.Time
	log               *zap.Logger
	notifier          Notifier
	async             func(fn func(ctx context.Context))
	sideEffectTimeout time.Duration
	newToken          func() string
	currency          string

	tracer  trace.Tracer
	success metric.Int64Counter
	failure metric.Int64Counter
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *deps) { d.log = l }
}

// WithNotifier sets where confirmation and cancellation notices go.
func WithNotifier(n Notifier) Option {
	return func(d *deps) { d.notifier = n }
}

// WithAsync replaces the goroutine used for fire-and-forget side
// effects.  Tests pass a runner that calls fn inline.
func WithAsync(run func(fn func(ctx context.Context))) Option {
	return func(d *deps) { d.async = run }
}

// WithSideEffectTimeout bounds each fire-and-forget side effect.
func WithSideEffectTimeout(t time.Duration) Option {
	return func(d *deps) { d.sideEffectTimeout = t }
}

// WithTokenGenerator replaces the hold token generator.
func WithTokenGenerator(gen func() string) Option {
	return func(d *deps) { d.newToken = gen }
}

// WithCurrency sets the currency charged at checkout.
func WithCurrency(c string) Option {
	return func(d *deps) { d.currency = strings.ToLower(c) }
}

func newDeps(opts []Option) deps {
	d := deps{
		now:               func() time.Time { return time.Now().UTC() },
		log:               zap.NewNop(),
		sideEffectTimeout: 10 * time.Second,
		newToken:          uuid.NewString,
		currency:          "usd",
		tracer:            otel.Tracer(instrumentation),
	}
	for _, opt := range opts {
		opt(&d)
	}

	meter := otel.Meter(instrumentation)
	var err error
	if d.success, err = meter.Int64Counter("booking.success",
		metric.WithDescription("Bookings committed")); err != nil {
		d.success = noop.Int64Counter{}
	}
	if d.failure, err = meter.Int64Counter("booking.failure",
		metric.WithDescription("Booking attempts that failed")); err != nil {
		d.failure = noop.Int64Counter{}
	}
	return d
}

// goAsync runs fn detached from the request with its own deadline.
func (d *deps) goAsync(name string, fn func(ctx context.Context)) {
	if d.async != nil {
		d.async(fn)
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("side effect panicked", zap.String("side_effect", name), zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), d.sideEffectTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// notify publishes asynchronously; failures are only logged.
func (d *deps) notify(kind string, payload any) {
	if d.notifier == nil {
		return
	}
	d.goAsync(kind, func(ctx context.Context) {
		if err := d.notifier.Notify(ctx, kind, payload); err != nil {
			d.log.Warn("notification failed", zap.String("kind", kind), zap.Error(err))
		}
	})
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// normalizeSeatIDs sorts the requested ids ascending so multi-seat
// writes always happen in the same order.
func normalizeSeatIDs(ids []uint64) ([]uint64, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no seats requested", ErrInvalidRequest)
	}
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	for i := 1; i < len(out); i++ {
		if out[i] == out[i-1] {
			return nil, fmt.Errorf("%w: seat %d requested twice", ErrInvalidRequest, out[i])
		}
	}
	return out, nil
}
