package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
	"github.com/iliyamo/cinema-seat-inventory/internal/repository"
)

// InventoryService creates and removes a show's seat inventory and
// reports seat availability.
type InventoryService struct {
	store repository.Store
	deps
}

// NewInventoryService builds an InventoryService on store.
func NewInventoryService(store repository.Store, opts ...Option) *InventoryService {
	return &InventoryService{store: store, deps: newDeps(opts)}
}

// SeatView is one row of a show's seat map.  Status is the effective
// status: a lock that has lapsed reads as AVAILABLE.
type SeatView struct {
	ShowSeatID uint64 `json:"show_seat_id"`
	SeatID     uint64 `json:"seat_id"`
	Status     string `json:"status"`
	PriceCents uint32 `json:"price_cents"`
}

// ProvisionShow creates one AVAILABLE show seat for every seat of the
// show's hall that is not under maintenance, priced at the show's base
// price.  Provisioning a show twice fails with ErrConflict.
func (s *InventoryService) ProvisionShow(ctx context.Context, showID uint64) (seats []model.ShowSeat, err error) {
	ctx, span := s.tracer.Start(ctx, "service.inventory.provision_show")
	span.SetAttributes(attribute.Int64("show_id", int64(showID)))
	defer func() { endSpan(span, err) }()

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		show, err := tx.GetShow(ctx, showID)
		if err != nil {
			return err
		}
		hall, err := tx.SeatsByHall(ctx, show.HallID)
		if err != nil {
			return err
		}
		seats = seats[:0]
		for _, seat := range hall {
			if seat.UnderMaintenance {
				continue
			}
			seats = append(seats, model.ShowSeat{
				ShowID:     showID,
				SeatID:     seat.ID,
				Status:     model.ShowSeatAvailable,
				PriceCents: show.BasePriceCents,
			})
		}
		if len(seats) == 0 {
			return fmt.Errorf("%w: hall %d has no bookable seats", ErrInvalidOperation, show.HallID)
		}
		return tx.CreateShowSeats(ctx, seats)
	})
	if err != nil {
		return nil, translate(err)
	}
	s.log.Info("show provisioned", zap.Uint64("show_id", showID), zap.Int("seats", len(seats)))
	return seats, nil
}

// DeprovisionShow deletes a show's seat inventory.  It is refused while
// any confirmed booking references the show.
func (s *InventoryService) DeprovisionShow(ctx context.Context, showID uint64) (removed int64, err error) {
	ctx, span := s.tracer.Start(ctx, "service.inventory.deprovision_show")
	span.SetAttributes(attribute.Int64("show_id", int64(showID)))
	defer func() { endSpan(span, err) }()

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetShow(ctx, showID); err != nil {
			return err
		}
		n, err := tx.CountBookingsByShow(ctx, showID, model.BookingConfirmed)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: show %d has %d confirmed bookings", ErrConflict, showID, n)
		}
		removed, err = tx.DeleteShowSeats(ctx, showID)
		return err
	})
	if err != nil {
		return 0, translate(err)
	}
	s.log.Info("show deprovisioned", zap.Uint64("show_id", showID), zap.Int64("seats", removed))
	return removed, nil
}

// SeatMap lists the show's seats with their effective status.
func (s *InventoryService) SeatMap(ctx context.Context, showID uint64) ([]SeatView, error) {
	var views []SeatView
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetShow(ctx, showID); err != nil {
			return err
		}
		seats, err := tx.ListShowSeats(ctx, showID)
		if err != nil {
			return err
		}
		now := s.now()
		views = make([]SeatView, 0, len(seats))
		for _, ss := range seats {
			status := ss.Status
			if ss.IsAvailable(now) {
				status = model.ShowSeatAvailable
			}
			views = append(views, SeatView{
				ShowSeatID: ss.ID,
				SeatID:     ss.SeatID,
				Status:     status,
				PriceCents: ss.PriceCents,
			})
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return views, nil
}
