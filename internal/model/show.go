package model

import "time"

// Show represents a scheduled screening of a movie in a particular
// hall.  Shows are owned by the catalog; the seat inventory only
// reads them to validate bookings and to provision show seats.
//
// Fields:
//  ID             – primary key identifier.
//  HallID         – hall where the show is taking place.
//  Title          – movie title or an external reference.
//  StartsAt       – when the show begins.
//  EndsAt         – when the show ends (must be after StartsAt).
//  BasePriceCents – default price in cents for provisioned seats.
//  Status         – current state of the show (SCHEDULED, CANCELLED,
//                   FINISHED).
type Show struct {
	ID             uint64    // shows.id
	HallID         uint64    // shows.hall_id
	Title          string    // shows.title
	StartsAt       time.Time // shows.starts_at
	EndsAt         time.Time // shows.ends_at
	BasePriceCents uint32    // shows.base_price_cents
	Status         string    // shows.status
}

// HasStarted reports whether the show start time is at or before now.
func (s Show) HasStarted(now time.Time) bool {
	return !s.StartsAt.After(now)
}
