package model

import "time"

// Seat describes a physical seat in a hall.  Seats are
// uniquely identified by their hall, row label and seat number.
// Seats flagged as under maintenance never receive a show_seat
// when a show is provisioned.
//
// Fields:
//  ID               – primary key identifier.
//  HallID           – hall to which this seat belongs.
//  RowLabel         – letter or string designating the row.
//  SeatNumber       – number of the seat within the row.
//  SeatType         – type of seat (STANDARD, VIP, ACCESSIBLE).
//  UnderMaintenance – whether the seat is currently out of service.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Seat struct {
	ID               uint64    // seats.id
	HallID           uint64    // seats.hall_id
	RowLabel         string    // seats.row_label
	SeatNumber       uint32    // seats.seat_number
	SeatType         string    // seats.seat_type
	UnderMaintenance bool      // seats.under_maintenance
	CreatedAt        time.Time // seats.created_at
	UpdatedAt        time.Time // seats.updated_at
}
