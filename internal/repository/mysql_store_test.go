package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

func newMockStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLStore(db), mock
}

func TestUpdateShowSeatAdvancesVersion(t *testing.T) {
	store, mock := newMockStore(t)
	until := time.Date(2026, 1, 1, 20, 10, 0, 0, time.UTC)
	seat := &model.ShowSeat{ID: 7, ShowID: 1, SeatID: 3, Version: 4}
	seat.Lock(42, until)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE show_seats")).
		WithArgs(model.ShowSeatLocked, until, uint64(42), uint64(7), uint32(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithTx(context.Background(), func(tx Tx) error {
		return tx.UpdateShowSeat(context.Background(), seat)
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(5), seat.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateShowSeatStaleRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	seat := &model.ShowSeat{ID: 7, Version: 4, Status: model.ShowSeatBooked}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE show_seats")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx Tx) error {
		return tx.UpdateShowSeat(context.Background(), seat)
	})
	assert.ErrorIs(t, err, ErrStaleWrite)
	assert.Equal(t, uint32(4), seat.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateHoldStatusStale(t *testing.T) {
	store, mock := newMockStore(t)
	hold := &model.SeatHold{ID: 9, Status: model.HoldActive, Version: 2}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE seat_holds SET status = ?, version = version + 1 WHERE id = ? AND version = ?")).
		WithArgs(model.HoldExpired, uint64(9), uint32(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx Tx) error {
		return tx.UpdateHoldStatus(context.Background(), hold, model.HoldExpired)
	})
	assert.ErrorIs(t, err, ErrStaleWrite)
	assert.Equal(t, model.HoldActive, hold.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxClassifiesDriverErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"duplicate key", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, ErrConflict},
		{"deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, ErrStaleWrite},
		{"lock wait", &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout"}, ErrStaleWrite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO show_seats")).WillReturnError(tt.err)
			mock.ExpectRollback()

			err := store.WithTx(context.Background(), func(tx Tx) error {
				return tx.CreateShowSeats(context.Background(), []model.ShowSeat{{ShowID: 1, SeatID: 1, Status: model.ShowSeatAvailable}})
			})
			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWithTxPassesThroughUnknownErrors(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldByTokenLoadsSeats(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM seat_holds WHERE hold_token = ?")).
		WithArgs("tok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "hold_token", "user_id", "show_id", "status", "version", "created_at", "expires_at"}).
			AddRow(3, "tok", 42, 1, model.HoldActive, 0, created, created.Add(10*time.Minute)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM seat_hold_seats")).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"hold_id", "show_seat_id"}).AddRow(3, 11).AddRow(3, 12))
	mock.ExpectCommit()

	var hold *model.SeatHold
	err := store.WithTx(context.Background(), func(tx Tx) error {
		var err error
		hold, err = tx.HoldByToken(context.Background(), "tok")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{11, 12}, hold.SeatIDs)
	assert.Equal(t, created.Add(10*time.Minute), hold.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHoldByTokenNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM seat_holds WHERE hold_token = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx Tx) error {
		_, err := tx.HoldByToken(context.Background(), "missing")
		return err
	})
	assert.ErrorIs(t, err, ErrHoldNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBookingStatusRequiresFromStatus(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = ?")).
		WithArgs(model.BookingCancelled, uint64(5), model.BookingConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx Tx) error {
		return tx.UpdateBookingStatus(context.Background(), 5, model.BookingConfirmed, model.BookingCancelled)
	})
	assert.ErrorIs(t, err, ErrStaleWrite)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteShowSeatsKeepsBookedRows(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM show_seats WHERE show_id = ? AND status <> ?")).
		WithArgs(uint64(1), model.ShowSeatBooked).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM show_seats WHERE show_id = ? AND status = ? FOR UPDATE")).
		WithArgs(uint64(1), model.ShowSeatBooked).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := store.WithTx(context.Background(), func(tx Tx) error {
		_, err := tx.DeleteShowSeats(context.Background(), 1)
		return err
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteShowSeatsCommitsWhenNoneBooked(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM show_seats WHERE show_id = ? AND status <> ?")).
		WithArgs(uint64(1), model.ShowSeatBooked).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM show_seats WHERE show_id = ? AND status = ? FOR UPDATE")).
		WithArgs(uint64(1), model.ShowSeatBooked).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCommit()

	var n int64
	err := store.WithTx(context.Background(), func(tx Tx) (err error) {
		n, err = tx.DeleteShowSeats(context.Background(), 1)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
