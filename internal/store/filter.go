package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/domain/user"
	"github.com/carwave/carpool/internal/geo"
)

// Circle selects points within RadiusMeters of Center
type Circle struct {
	Center       geo.Point
	RadiusMeters float64
}

// Contains reports whether p lies in the circle
func (c Circle) Contains(p geo.Point) bool {
	return geo.Within(p, c.Center, c.RadiusMeters)
}

// RideFilter holds the storage-side search predicates. Nil or unbounded
// fields impose no constraint. Results are ordered by creation time, then id.
type RideFilter struct {
	Departure       *Circle
	Arrival         *Circle
	DepartureWindow *geo.Window
	ArrivalWindow   *geo.Window
	DriverSex       *user.Sex
	DriverAge       geo.Bound[int]
	Consumption     geo.Bound[float64]
	// ExcludeDriver drops rides driven by that user.
	ExcludeDriver *uuid.UUID
	// ArrivingAfter drops rides whose arrival time is before it.
	ArrivingAfter *time.Time
	// After resumes a search behind the last ride of a previous page.
	After *Cursor
	// Limit of zero or less means no limit.
	Limit int
}

// Cursor is a position in the creation-time then id order of SearchRides
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorAt returns the position of r
func CursorAt(r *ride.Ride) *Cursor {
	return &Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
}

// Before reports whether c sorts strictly before r
func (c Cursor) Before(r *ride.Ride) bool {
	if !c.CreatedAt.Equal(r.CreatedAt) {
		return c.CreatedAt.Before(r.CreatedAt)
	}
	return c.ID.String() < r.ID.String()
}

// Matches evaluates the filter against one ride with its driver and
// optional car. Implementations that cannot push a predicate down use it.
func (f RideFilter) Matches(r *ride.Ride, driver *user.User, car *ride.Car) bool {
	if f.After != nil && !f.After.Before(r) {
		return false
	}
	if f.ExcludeDriver != nil && r.DriverID == *f.ExcludeDriver {
		return false
	}
	if f.Departure != nil && (r.Departure == nil || !f.Departure.Contains(*r.Departure)) {
		return false
	}
	if f.Arrival != nil && !f.Arrival.Contains(r.Arrival) {
		return false
	}
	if f.DepartureWindow != nil && (r.DepartureAt == nil || !f.DepartureWindow.Contains(*r.DepartureAt)) {
		return false
	}
	if f.ArrivalWindow != nil && !f.ArrivalWindow.Contains(r.ArrivalAt) {
		return false
	}
	if f.ArrivingAfter != nil && r.ArrivalAt.Before(*f.ArrivingAfter) {
		return false
	}
	if f.DriverSex != nil && (driver == nil || driver.Sex == nil || *driver.Sex != *f.DriverSex) {
		return false
	}
	if f.DriverAge.Active() && (driver == nil || !f.DriverAge.ContainsPtr(driver.Age)) {
		return false
	}
	if f.Consumption.Active() && (car == nil || !f.Consumption.Contains(car.Consumption)) {
		return false
	}
	return true
}
