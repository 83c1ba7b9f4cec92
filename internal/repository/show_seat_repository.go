package repository // repository for show seat persistence

import (
	"context"      // context for managing deadlines
	"database/sql" // sql provides DB interfaces
	"fmt"
	"time"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// ShowSeatRepo encapsulates database operations for show_seats.  All
// state changes go through UpdateVersionedTx, which is the only write
// path for an existing row.
type ShowSeatRepo struct {
	db *sql.DB
}

// NewShowSeatRepo constructs a ShowSeatRepo given a DB handle.
func NewShowSeatRepo(db *sql.DB) *ShowSeatRepo {
	return &ShowSeatRepo{db: db}
}

const showSeatColumns = `id, show_id, seat_id, status, price_cents, version, locked_until, locked_by_user_id, created_at, updated_at`

// CreateBulkTx inserts multiple show_seat records in one statement.
// Only show_id, seat_id, status, price_cents and version are inserted;
// timestamps default in the DB.  A duplicate (show_id, seat_id) pair
// violates the unique key and is reported by the store as ErrConflict.
func (r *ShowSeatRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, seats []model.ShowSeat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO show_seats (show_id, seat_id, status, price_cents, version) VALUES `
	args := make([]interface{}, 0, len(seats)*5)
	for i, ss := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, ss.ShowID, ss.SeatID, ss.Status, ss.PriceCents, ss.Version)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ListByShowTx returns every show seat of a show ordered by id.
func (r *ShowSeatRepo) ListByShowTx(ctx context.Context, tx *sql.Tx, showID uint64) ([]model.ShowSeat, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+showSeatColumns+` FROM show_seats WHERE show_id = ? ORDER BY id`, showID)
	if err != nil {
		return nil, err
	}
	return scanShowSeats(rows)
}

// GetByIDsTx returns the show seats with the given ids that belong to
// showID, ordered by id.  Ids that do not exist or belong to another
// show are silently absent from the result; callers compare counts.
func (r *ShowSeatRepo) GetByIDsTx(ctx context.Context, tx *sql.Tx, showID uint64, ids []uint64) ([]model.ShowSeat, error) {
	if len(ids) == 0 {
		return []model.ShowSeat{}, nil
	}
	query := `SELECT ` + showSeatColumns + ` FROM show_seats WHERE show_id = ? AND id IN (` + placeholders(len(ids)) + `) ORDER BY id`
	args := append([]interface{}{showID}, uint64Args(ids)...)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanShowSeats(rows)
}

// UpdateVersionedTx writes the seat's status and lock fields only if
// the stored version still equals seat.Version.  When no row matches,
// another writer committed first and ErrStaleWrite is returned.  On
// success seat.Version is advanced to the stored value.
func (r *ShowSeatRepo) UpdateVersionedTx(ctx context.Context, tx *sql.Tx, seat *model.ShowSeat) error {
	const q = `UPDATE show_seats
	           SET status = ?, locked_until = ?, locked_by_user_id = ?, version = version + 1, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND version = ?`
	var lockedUntil, lockedBy interface{}
	if seat.LockedUntil != nil {
		lockedUntil = seat.LockedUntil.UTC()
	}
	if seat.LockedByUserID != nil {
		lockedBy = *seat.LockedByUserID
	}
	res, err := tx.ExecContext(ctx, q, seat.Status, lockedUntil, lockedBy, seat.ID, seat.Version)
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
	seat.Version++
	return nil
}

// DeleteByShowTx removes every unbooked show seat of a show and returns
// the number of rows deleted.  BOOKED rows are never deleted; if any
// remain after the delete, ErrConflict is returned and the caller's
// transaction must roll back.  The remaining rows are counted with a
// locking read so a booking committed after the transaction's snapshot
// is still seen.
func (r *ShowSeatRepo) DeleteByShowTx(ctx context.Context, tx *sql.Tx, showID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM show_seats WHERE show_id = ? AND status <> ?`, showID, model.ShowSeatBooked)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	var booked int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM show_seats WHERE show_id = ? AND status = ? FOR UPDATE`,
		showID, model.ShowSeatBooked).Scan(&booked); err != nil {
		return 0, err
	}
	if booked > 0 {
		return 0, fmt.Errorf("%w: show %d has %d booked seats", ErrConflict, showID, booked)
	}
	return n, nil
}

func scanShowSeats(rows *sql.Rows) ([]model.ShowSeat, error) {
	defer rows.Close()
	seats := []model.ShowSeat{}
	for rows.Next() {
		var (
			ss          model.ShowSeat
			lockedUntil sql.NullTime
			lockedBy    sql.NullInt64
		)
		if err := rows.Scan(&ss.ID, &ss.ShowID, &ss.SeatID, &ss.Status, &ss.PriceCents, &ss.Version,
			&lockedUntil, &lockedBy, &ss.CreatedAt, &ss.UpdatedAt); err != nil {
			return nil, err
		}
		if lockedUntil.Valid {
			t := lockedUntil.Time.UTC()
			ss.LockedUntil = &t
		}
		if lockedBy.Valid {
			uid := uint64(lockedBy.Int64)
			ss.LockedByUserID = &uid
		}
		seats = append(seats, ss)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// utc normalises a timestamp for storage.
func utc(t time.Time) time.Time { return t.UTC() }
