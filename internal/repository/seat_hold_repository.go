package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// SeatHoldRepo provides data access to the seat_holds table and its
// seat_hold_seats child table.  One hold row covers a set of show
// seats; the hold token is unique.  All timestamps are stored in UTC.
type SeatHoldRepo struct {
	db *sql.DB
}

// NewSeatHoldRepo returns a new SeatHoldRepo bound to the provided database.
func NewSeatHoldRepo(db *sql.DB) *SeatHoldRepo { return &SeatHoldRepo{db: db} }

const seatHoldColumns = `id, hold_token, user_id, show_id, status, version, created_at, expires_at`

// CreateTx inserts the hold and one seat_hold_seats row per seat within
// the provided transaction.  The generated ID is populated on hold.
// A duplicate hold token is reported by the store as ErrConflict.
func (r *SeatHoldRepo) CreateTx(ctx context.Context, tx *sql.Tx, hold *model.SeatHold) error {
	const q = `INSERT INTO seat_holds (hold_token, user_id, show_id, status, version, created_at, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, hold.HoldToken, hold.UserID, hold.ShowID, hold.Status, hold.Version,
		utc(hold.CreatedAt), utc(hold.ExpiresAt))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	hold.ID = uint64(id)
	if len(hold.SeatIDs) == 0 {
		return nil
	}
	query := `INSERT INTO seat_hold_seats (hold_id, show_seat_id) VALUES `
	args := make([]interface{}, 0, len(hold.SeatIDs)*2)
	for i, sid := range hold.SeatIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, hold.ID, sid)
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// GetByTokenTx loads a hold and its seats by token.  It returns
// ErrHoldNotFound when no hold carries the token.
func (r *SeatHoldRepo) GetByTokenTx(ctx context.Context, tx *sql.Tx, token string) (*model.SeatHold, error) {
	return r.getOne(ctx, tx, `SELECT `+seatHoldColumns+` FROM seat_holds WHERE hold_token = ?`, token)
}

// GetByIDTx loads a hold and its seats by id.
func (r *SeatHoldRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.SeatHold, error) {
	return r.getOne(ctx, tx, `SELECT `+seatHoldColumns+` FROM seat_holds WHERE id = ?`, id)
}

func (r *SeatHoldRepo) getOne(ctx context.Context, tx *sql.Tx, q string, arg interface{}) (*model.SeatHold, error) {
	var h model.SeatHold
	err := tx.QueryRowContext(ctx, q, arg).Scan(&h.ID, &h.HoldToken, &h.UserID, &h.ShowID, &h.Status, &h.Version, &h.CreatedAt, &h.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHoldNotFound
		}
		return nil, err
	}
	seatIDs, err := r.seatIDsTx(ctx, tx, []uint64{h.ID})
	if err != nil {
		return nil, err
	}
	h.SeatIDs = seatIDs[h.ID]
	return &h, nil
}

// UpdateStatusTx moves the hold to status only if its stored version
// still equals hold.Version.  It returns ErrStaleWrite otherwise.
func (r *SeatHoldRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, hold *model.SeatHold, status string) error {
	const q = `UPDATE seat_holds SET status = ?, version = version + 1 WHERE id = ? AND version = ?`
	res, err := tx.ExecContext(ctx, q, status, hold.ID, hold.Version)
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
	hold.Status = status
	hold.Version++
	return nil
}

// ListExpiredTx returns up to limit holds in one of the given statuses
// whose expires_at is at or before now, oldest first.
func (r *SeatHoldRepo) ListExpiredTx(ctx context.Context, tx *sql.Tx, now time.Time, statuses []string, limit int) ([]model.SeatHold, error) {
	if len(statuses) == 0 {
		return []model.SeatHold{}, nil
	}
	query := `SELECT ` + seatHoldColumns + ` FROM seat_holds
	          WHERE status IN (` + placeholders(len(statuses)) + `) AND expires_at <= ?
	          ORDER BY expires_at, id LIMIT ?`
	args := make([]interface{}, 0, len(statuses)+2)
	for _, s := range statuses {
		args = append(args, s)
	}
	args = append(args, utc(now), limit)
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	holds, err := scanHolds(rows)
	if err != nil {
		return nil, err
	}
	return r.attachSeats(ctx, tx, holds)
}

// ExpireBulkTx flips every ACTIVE hold whose expiry is at or before
// now to EXPIRED in a single statement and returns the affected holds
// in their new state.  The candidate rows are locked first so the
// returned set is exactly the set that was updated.
func (r *SeatHoldRepo) ExpireBulkTx(ctx context.Context, tx *sql.Tx, now time.Time) ([]model.SeatHold, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+seatHoldColumns+` FROM seat_holds WHERE status = ? AND expires_at <= ? ORDER BY id FOR UPDATE`,
		model.HoldActive, utc(now))
	if err != nil {
		return nil, err
	}
	holds, err := scanHolds(rows)
	if err != nil {
		return nil, err
	}
	if len(holds) == 0 {
		return holds, nil
	}
	ids := make([]uint64, 0, len(holds))
	for _, h := range holds {
		ids = append(ids, h.ID)
	}
	query := `UPDATE seat_holds SET status = ?, version = version + 1 WHERE status = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := append([]interface{}{model.HoldExpired, model.HoldActive}, uint64Args(ids)...)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	for i := range holds {
		holds[i].Status = model.HoldExpired
		holds[i].Version++
	}
	return r.attachSeats(ctx, tx, holds)
}

func (r *SeatHoldRepo) attachSeats(ctx context.Context, tx *sql.Tx, holds []model.SeatHold) ([]model.SeatHold, error) {
	if len(holds) == 0 {
		return holds, nil
	}
	ids := make([]uint64, 0, len(holds))
	for _, h := range holds {
		ids = append(ids, h.ID)
	}
	seatIDs, err := r.seatIDsTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	for i := range holds {
		holds[i].SeatIDs = seatIDs[holds[i].ID]
	}
	return holds, nil
}

// seatIDsTx loads the show seat ids of the given holds keyed by hold id.
func (r *SeatHoldRepo) seatIDsTx(ctx context.Context, tx *sql.Tx, holdIDs []uint64) (map[uint64][]uint64, error) {
	query := `SELECT hold_id, show_seat_id FROM seat_hold_seats WHERE hold_id IN (` + placeholders(len(holdIDs)) + `) ORDER BY hold_id, show_seat_id`
	rows, err := tx.QueryContext(ctx, query, uint64Args(holdIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64][]uint64, len(holdIDs))
	for rows.Next() {
		var holdID, seatID uint64
		if err := rows.Scan(&holdID, &seatID); err != nil {
			return nil, err
		}
		out[holdID] = append(out[holdID], seatID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanHolds(rows *sql.Rows) ([]model.SeatHold, error) {
	defer rows.Close()
	holds := []model.SeatHold{}
	for rows.Next() {
		var h model.SeatHold
		if err := rows.Scan(&h.ID, &h.HoldToken, &h.UserID, &h.ShowID, &h.Status, &h.Version, &h.CreatedAt, &h.ExpiresAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return holds, nil
}
