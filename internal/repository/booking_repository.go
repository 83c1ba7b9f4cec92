package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// BookingRepo provides persistence for bookings and their seats.
// Bookings group together one or more show seats for a particular
// show and user.  Seats booked under a booking are stored in the
// booking_seats table.  All timestamp fields are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates the generated ID.  The caller must commit
// or roll back the transaction.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, show_id, status, total_amount_cents, transaction_id, booked_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	var txnID interface{}
	if b.TransactionID != nil {
		txnID = *b.TransactionID
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.BookedAt
	}
	result, err := tx.ExecContext(ctx, q, b.UserID, b.ShowID, b.Status, b.TotalAmountCents, txnID, utc(b.BookedAt), utc(b.UpdatedAt))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// CreateSeatsBulkTx inserts multiple booking_seats rows in a single
// statement and associates each with bookingID.  The unique key on
// (booking_id, show_seat_id) rejects duplicates.  Passing an empty
// slice has no effect and returns nil.
func (r *BookingRepo) CreateSeatsBulkTx(ctx context.Context, tx *sql.Tx, bookingID uint64, seats []model.BookingSeat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO booking_seats (booking_id, show_seat_id, price_cents) VALUES `
	args := make([]interface{}, 0, len(seats)*3)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, bookingID, s.ShowSeatID, s.PriceCents)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// GetByIDTx loads a booking together with its booking_seats rows.  It
// returns ErrBookingNotFound when the booking does not exist.
func (r *BookingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = `SELECT id, user_id, show_id, status, total_amount_cents, transaction_id, booked_at, updated_at
	           FROM bookings WHERE id = ?`
	var (
		b     model.Booking
		txnID sql.NullString
	)
	err := tx.QueryRowContext(ctx, q, id).Scan(&b.ID, &b.UserID, &b.ShowID, &b.Status, &b.TotalAmountCents, &txnID, &b.BookedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if txnID.Valid {
		ref := txnID.String
		b.TransactionID = &ref
	}
	rows, err := tx.QueryContext(ctx,
		`SELECT id, booking_id, show_seat_id, price_cents FROM booking_seats WHERE booking_id = ? ORDER BY show_seat_id`, b.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	b.Seats = []model.BookingSeat{}
	for rows.Next() {
		var s model.BookingSeat
		if err := rows.Scan(&s.ID, &s.BookingID, &s.ShowSeatID, &s.PriceCents); err != nil {
			return nil, err
		}
		b.Seats = append(b.Seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateStatusTx moves a booking from one status to another.  When the
// booking is no longer in status from, ErrStaleWrite is returned.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleWrite
	}
	return nil
}

// CountByShowTx counts the bookings of a show in the given status.
func (r *BookingRepo) CountByShowTx(ctx context.Context, tx *sql.Tx, showID uint64, status string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE show_id = ? AND status = ?`, showID, status).Scan(&n)
	return n, err
}
