// Package repository contains data access logic for the seat inventory.
// This file defines the read-only access to shows.  Shows are owned by
// the catalog; the inventory reads them to validate bookings and to
// provision show seats.
package repository

import (
	"context"      // context for controlling query lifetime
	"database/sql" // sql provides DB abstraction
	"errors"       // errors for sentinel comparisons

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// ShowRepo reads shows.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo {
	return &ShowRepo{db: db}
}

// GetByIDTx retrieves a show by its ID inside the given transaction.
// It returns ErrShowNotFound if there is no matching row.
func (r *ShowRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Show, error) {
	const q = `SELECT id, hall_id, title, starts_at, ends_at, base_price_cents, status FROM shows WHERE id = ?`
	var s model.Show
	err := tx.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.HallID, &s.Title, &s.StartsAt, &s.EndsAt, &s.BasePriceCents, &s.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, err
	}
	return &s, nil
}
