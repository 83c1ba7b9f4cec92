package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// MySQL error numbers the store classifies.
const (
	mysqlDuplicateEntry = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock       = 1213
)

// MySQLStore implements Store on top of a MySQL database.  Each table
// has its own repository; the transaction wrapper composes them so
// that services never touch *sql.Tx directly.
type MySQLStore struct {
	db        *sql.DB
	shows     *ShowRepo
	seats     *SeatRepo
	users     *UserRepo
	showSeats *ShowSeatRepo
	holds     *SeatHoldRepo
	bookings  *BookingRepo
}

// NewMySQLStore builds a store bound to the given database handle.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{
		db:        db,
		shows:     NewShowRepo(db),
		seats:     NewSeatRepo(db),
		users:     NewUserRepo(db),
		showSeats: NewShowSeatRepo(db),
		holds:     NewSeatHoldRepo(db),
		bookings:  NewBookingRepo(db),
	}
}

// DB exposes the underlying sql.DB.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// WithTx runs fn inside a database transaction.  The transaction is
// committed when fn returns nil and rolled back otherwise.  Driver
// errors that signal a lost race (deadlock, lock wait timeout) are
// reported as ErrStaleWrite; duplicate keys as ErrConflict.
func (s *MySQLStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&mysqlTx{s: s, tx: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	committed = true
	return nil
}

// classify maps MySQL driver errors onto the repository sentinels.
func classify(err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case mysqlDuplicateEntry:
		return fmt.Errorf("%w: %s", ErrConflict, me.Message)
	case mysqlDeadlock, mysqlLockWaitTimeout:
		return fmt.Errorf("%w: %s", ErrStaleWrite, me.Message)
	}
	return err
}

// placeholders returns "?, ?, ..." with n markers for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// uint64Args converts ids into query arguments.
func uint64Args(ids []uint64) []interface{} {
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

// mysqlTx adapts a *sql.Tx to the Tx interface.
type mysqlTx struct {
	s  *MySQLStore
	tx *sql.Tx
}

func (t *mysqlTx) GetShow(ctx context.Context, showID uint64) (*model.Show, error) {
	return t.s.shows.GetByIDTx(ctx, t.tx, showID)
}

func (t *mysqlTx) SeatsByHall(ctx context.Context, hallID uint64) ([]model.Seat, error) {
	return t.s.seats.ListByHallTx(ctx, t.tx, hallID)
}

func (t *mysqlTx) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return t.s.users.GetByEmailTx(ctx, t.tx, email)
}

func (t *mysqlTx) CreateShowSeats(ctx context.Context, seats []model.ShowSeat) error {
	return t.s.showSeats.CreateBulkTx(ctx, t.tx, seats)
}

func (t *mysqlTx) ListShowSeats(ctx context.Context, showID uint64) ([]model.ShowSeat, error) {
	return t.s.showSeats.ListByShowTx(ctx, t.tx, showID)
}

func (t *mysqlTx) ShowSeatsByIDs(ctx context.Context, showID uint64, ids []uint64) ([]model.ShowSeat, error) {
	return t.s.showSeats.GetByIDsTx(ctx, t.tx, showID, ids)
}

func (t *mysqlTx) UpdateShowSeat(ctx context.Context, seat *model.ShowSeat) error {
	return t.s.showSeats.UpdateVersionedTx(ctx, t.tx, seat)
}

func (t *mysqlTx) DeleteShowSeats(ctx context.Context, showID uint64) (int64, error) {
	return t.s.showSeats.DeleteByShowTx(ctx, t.tx, showID)
}

func (t *mysqlTx) CreateHold(ctx context.Context, hold *model.SeatHold) error {
	return t.s.holds.CreateTx(ctx, t.tx, hold)
}

func (t *mysqlTx) HoldByToken(ctx context.Context, token string) (*model.SeatHold, error) {
	return t.s.holds.GetByTokenTx(ctx, t.tx, token)
}

func (t *mysqlTx) HoldByID(ctx context.Context, id uint64) (*model.SeatHold, error) {
	return t.s.holds.GetByIDTx(ctx, t.tx, id)
}

func (t *mysqlTx) UpdateHoldStatus(ctx context.Context, hold *model.SeatHold, status string) error {
	return t.s.holds.UpdateStatusTx(ctx, t.tx, hold, status)
}

func (t *mysqlTx) ExpiredHolds(ctx context.Context, now time.Time, statuses []string, limit int) ([]model.SeatHold, error) {
	return t.s.holds.ListExpiredTx(ctx, t.tx, now, statuses, limit)
}

func (t *mysqlTx) ExpireHoldsBulk(ctx context.Context, now time.Time) ([]model.SeatHold, error) {
	return t.s.holds.ExpireBulkTx(ctx, t.tx, now)
}

func (t *mysqlTx) CreateBooking(ctx context.Context, b *model.Booking) error {
	return t.s.bookings.CreateTx(ctx, t.tx, b)
}

func (t *mysqlTx) CreateBookingSeats(ctx context.Context, bookingID uint64, seats []model.BookingSeat) error {
	return t.s.bookings.CreateSeatsBulkTx(ctx, t.tx, bookingID, seats)
}

func (t *mysqlTx) BookingByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return t.s.bookings.GetByIDTx(ctx, t.tx, id)
}

func (t *mysqlTx) UpdateBookingStatus(ctx context.Context, id uint64, from, to string) error {
	return t.s.bookings.UpdateStatusTx(ctx, t.tx, id, from, to)
}

func (t *mysqlTx) CountBookingsByShow(ctx context.Context, showID uint64, status string) (int, error) {
	return t.s.bookings.CountByShowTx(ctx, t.tx, showID, status)
}
