package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// SeatRepo provides read access to the physical seats of a hall.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// ListByHallTx retrieves all seats of a hall ordered by row_label then
// seat_number.  Seats under maintenance are included; callers decide
// whether they are eligible.
func (r *SeatRepo) ListByHallTx(ctx context.Context, tx *sql.Tx, hallID uint64) ([]model.Seat, error) {
	const q = `SELECT id, hall_id, row_label, seat_number, seat_type, under_maintenance, created_at, updated_at
	           FROM seats
	           WHERE hall_id = ?
	           ORDER BY row_label, seat_number`
	rows, err := tx.QueryContext(ctx, q, hallID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.HallID, &s.RowLabel, &s.SeatNumber, &s.SeatType, &s.UnderMaintenance, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}
