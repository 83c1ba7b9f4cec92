// Package worker runs the background jobs of the seat inventory.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
	"github.com/iliyamo/cinema-seat-inventory/internal/repository"
	"github.com/iliyamo/cinema-seat-inventory/internal/service"
)

// ReclaimerConfig contains configuration for the hold reclaimer.
type ReclaimerConfig struct {
	// Interval is the time between sweeps.
	Interval time.Duration
	// BatchSize is the number of expired holds loaded per query.
	BatchSize int
}

// DefaultReclaimerConfig returns default configuration.
func DefaultReclaimerConfig() ReclaimerConfig {
	return ReclaimerConfig{
		Interval:  60 * time.Second,
		BatchSize: 200,
	}
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Scanned       int  `json:"scanned"`
	Expired       int  `json:"expired"`
	SeatsReleased int  `json:"seats_released"`
	Failed        int  `json:"failed"`
	Skipped       bool `json:"skipped,omitempty"`
}

func (r *SweepResult) add(o SweepResult) {
	r.Scanned += o.Scanned
	r.Expired += o.Expired
	r.SeatsReleased += o.SeatsReleased
	r.Failed += o.Failed
}

// ReclaimerStats are cumulative counters since start.
type ReclaimerStats struct {
	IsRunning     bool      `json:"is_running"`
	Sweeps        int64     `json:"sweeps"`
	TotalExpired  int64     `json:"total_expired"`
	TotalReleased int64     `json:"total_released"`
	TotalFailed   int64     `json:"total_failed"`
	LastSweepAt   time.Time `json:"last_sweep_at"`
}

// Reclaimer returns the seats of abandoned holds to inventory.  Every
// hold that is ACTIVE or PAYMENT_PENDING past its expiry is marked
// EXPIRED and the seats it still owns become AVAILABLE.  Each hold is
// handled in its own transaction; a failure is logged and the sweep
// moves on.
//
// Correctness never depends on the reclaimer: expired holds and lapsed
// locks are already treated as gone wherever they are read.
type Reclaimer struct {
	store repository.Store
	cfg   ReclaimerConfig
	lease Lease
	log   *zap.Logger
	now   func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	stats   ReclaimerStats
}

// ReclaimerOption configures a Reclaimer.
type ReclaimerOption func(*Reclaimer)

// WithLease makes scheduled sweeps run only while lease is held.
func WithLease(l Lease) ReclaimerOption {
	return func(r *Reclaimer) { r.lease = l }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ReclaimerOption {
	return func(r *Reclaimer) { r.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ReclaimerOption {
	return func(r *Reclaimer) { r.now = now }
}

// NewReclaimer creates a reclaimer over store.
func NewReclaimer(store repository.Store, cfg ReclaimerConfig, opts ...ReclaimerOption) *Reclaimer {
	def := DefaultReclaimerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	r := &Reclaimer{
		store: store,
		cfg:   cfg,
		log:   zap.NewNop(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs a sweep immediately and then every Interval until ctx is
// cancelled or Stop is called.  A stopped reclaimer may be started
// again.
func (r *Reclaimer) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reclaimer already running")
	}
	r.running = true
	stop := make(chan struct{})
	r.stopCh = stop
	r.mu.Unlock()

	r.log.Info("starting hold reclaimer", zap.Duration("interval", r.cfg.Interval), zap.Int("batch_size", r.cfg.BatchSize))
	r.wg.Add(1)
	go r.loop(ctx, stop)
	return nil
}

// Stop stops the loop and waits for an in-flight sweep to finish.
func (r *Reclaimer) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	stop := r.stopCh
	r.stopCh = nil
	r.mu.Unlock()

	close(stop)
	r.wg.Wait()
	if r.lease != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.lease.Release(ctx); err != nil {
			r.log.Warn("reclaimer lease release failed", zap.Error(err))
		}
	}
	r.log.Info("hold reclaimer stopped")
}

func (r *Reclaimer) loop(ctx context.Context, stop <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reclaimer) tick(ctx context.Context) {
	if _, err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		r.log.Error("hold sweep failed", zap.Error(err))
	}
}

// Sweep runs one scheduled pass.  With a lease configured the pass is
// skipped unless this replica holds it.
func (r *Reclaimer) Sweep(ctx context.Context) (SweepResult, error) {
	if r.lease != nil {
		ok, err := r.lease.Acquire(ctx)
		if err != nil {
			return SweepResult{}, fmt.Errorf("acquire reclaimer lease: %w", err)
		}
		if !ok {
			r.log.Debug("hold sweep skipped, lease held elsewhere")
			return SweepResult{Skipped: true}, nil
		}
	}
	res, err := r.sweep(ctx)
	r.record(res)
	if res.Expired > 0 || res.Failed > 0 {
		r.log.Info("hold sweep finished",
			zap.Int("scanned", res.Scanned),
			zap.Int("expired", res.Expired),
			zap.Int("seats_released", res.SeatsReleased),
			zap.Int("failed", res.Failed))
	}
	return res, err
}

// ForceCleanup is the operator variant: it expires every lapsed ACTIVE
// hold in one bulk update, releases their seats, then runs a normal
// sweep for whatever the bulk update does not cover.  It ignores the
// lease and is safe to run alongside scheduled sweeps.
func (r *Reclaimer) ForceCleanup(ctx context.Context) (SweepResult, error) {
	now := r.now()
	var bulk []model.SeatHold
	err := r.store.WithTx(ctx, func(tx repository.Tx) (err error) {
		bulk, err = tx.ExpireHoldsBulk(ctx, now)
		return err
	})
	if err != nil {
		return SweepResult{}, fmt.Errorf("bulk expire holds: %w", err)
	}

	res := SweepResult{Scanned: len(bulk), Expired: len(bulk)}
	for _, h := range bulk {
		n, err := r.releaseSeats(ctx, h)
		if err != nil {
			res.Failed++
			r.log.Warn("releasing seats of expired hold failed", zap.Uint64("hold_id", h.ID), zap.Error(err))
			continue
		}
		res.SeatsReleased += n
	}

	more, err := r.sweep(ctx)
	res.add(more)
	r.record(res)
	r.log.Info("forced hold cleanup finished",
		zap.Int("bulk_expired", len(bulk)),
		zap.Int("expired", res.Expired),
		zap.Int("seats_released", res.SeatsReleased),
		zap.Int("failed", res.Failed))
	return res, err
}

// Stats returns cumulative counters.
func (r *Reclaimer) Stats() ReclaimerStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.IsRunning = r.running
	return s
}

func (r *Reclaimer) record(res SweepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.Sweeps++
	r.stats.TotalExpired += int64(res.Expired)
	r.stats.TotalReleased += int64(res.SeatsReleased)
	r.stats.TotalFailed += int64(res.Failed)
	r.stats.LastSweepAt = r.now()
}

var sweepStatuses = []string{model.HoldActive, model.HoldPaymentPending}

// sweep drains expired holds batch by batch.  A hold that fails, or
// that turns out to need nothing, is not retried within the same pass.
// Such holds stay at the head of the listing, so each query widens by
// their count to reach the holds behind them.  The pass stops once a
// batch is short or holds nothing new.
func (r *Reclaimer) sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	skip := map[uint64]bool{}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		now := r.now()
		limit := r.cfg.BatchSize + len(skip)
		var batch []model.SeatHold
		err := r.store.WithTx(ctx, func(tx repository.Tx) (err error) {
			batch, err = tx.ExpiredHolds(ctx, now, sweepStatuses, limit)
			return err
		})
		if err != nil {
			return res, fmt.Errorf("list expired holds: %w", err)
		}

		fresh, expired := 0, 0
		for _, h := range batch {
			if skip[h.ID] {
				continue
			}
			fresh++
			res.Scanned++
			n, ok, err := r.expireHold(ctx, h.ID, now)
			if err != nil {
				skip[h.ID] = true
				res.Failed++
				r.log.Warn("expiring hold failed", zap.Uint64("hold_id", h.ID), zap.String("hold_token", h.HoldToken), zap.Error(err))
				continue
			}
			if !ok {
				skip[h.ID] = true
				continue
			}
			expired++
			res.SeatsReleased += n
		}
		res.Expired += expired
		if len(batch) < limit || fresh == 0 {
			return res, nil
		}
	}
}

// expireHold re-reads the hold, and if it is still ACTIVE or
// PAYMENT_PENDING past expiry, releases its seats and marks it EXPIRED.
func (r *Reclaimer) expireHold(ctx context.Context, id uint64, now time.Time) (released int, expired bool, err error) {
	err = r.store.WithTx(ctx, func(tx repository.Tx) error {
		released, expired = 0, false
		h, err := tx.HoldByID(ctx, id)
		if err != nil {
			return err
		}
		if h.IsTerminal() || !h.IsExpired(now) {
			return nil
		}
		n, err := service.ReleaseHoldSeats(ctx, tx, *h)
		if err != nil {
			return err
		}
		if err := tx.UpdateHoldStatus(ctx, h, model.HoldExpired); err != nil {
			return err
		}
		released, expired = n, true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return released, expired, nil
}

func (r *Reclaimer) releaseSeats(ctx context.Context, h model.SeatHold) (int, error) {
	var n int
	err := r.store.WithTx(ctx, func(tx repository.Tx) (err error) {
		n, err = service.ReleaseHoldSeats(ctx, tx, h)
		return err
	})
	return n, err
}
