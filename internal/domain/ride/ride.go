package ride

import (
	"time"

	"github.com/google/uuid"

	"github.com/carwave/carpool/internal/geo"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

// Ride is a driver-posted trip offer. Capacity counts the passenger
// requests that may be accepted; the driver's own seat is not included.
type Ride struct {
	ID             uuid.UUID  `json:"id"`
	DriverID       uuid.UUID  `json:"driver_id"`
	Capacity       int        `json:"capacity"`
	CarPlate       *string    `json:"car_plate,omitempty"`
	Departure      *geo.Point `json:"departure,omitempty"`
	DepartureAt    *time.Time `json:"departure_at,omitempty"`
	DeparturePlace string     `json:"departure_place,omitempty"`
	Arrival        geo.Point  `json:"arrival"`
	ArrivalAt      time.Time  `json:"arrival_at"`
	ArrivalPlace   string     `json:"arrival_place,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateInput holds the fields a driver supplies when posting a ride
type CreateInput struct {
	Capacity    int
	CarPlate    *string
	Departure   *geo.Point
	DepartureAt *time.Time
	Arrival     geo.Point
	ArrivalAt   time.Time
}

// UpdateInput holds a ride edit. Nil fields stay unchanged; RemoveCar
// detaches the car reference.
type UpdateInput struct {
	Capacity    *int
	CarPlate    *string
	RemoveCar   bool
	Departure   *geo.Point
	DepartureAt *time.Time
	Arrival     *geo.Point
	ArrivalAt   *time.Time
}

// New validates in and builds a ride for driverID
func New(driverID uuid.UUID, in CreateInput, now time.Time) (*Ride, error) {
	r := &Ride{
		ID:        uuid.New(),
		DriverID:  driverID,
		Capacity:  in.Capacity,
		CarPlate:  in.CarPlate,
		Departure: in.Departure,
		Arrival:   in.Arrival,
		ArrivalAt: geo.Normalize(in.ArrivalAt),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.DepartureAt != nil {
		t := geo.Normalize(*in.DepartureAt)
		r.DepartureAt = &t
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Apply copies the set fields of in onto r and revalidates. On error r is
// left in an unspecified state, so callers apply to a copy.
func (r *Ride) Apply(in UpdateInput, now time.Time) error {
	if in.Capacity != nil {
		r.Capacity = *in.Capacity
	}
	if in.RemoveCar {
		r.CarPlate = nil
	} else if in.CarPlate != nil {
		r.CarPlate = in.CarPlate
	}
	if in.Departure != nil {
		r.Departure = in.Departure
		r.DeparturePlace = ""
	}
	if in.DepartureAt != nil {
		t := geo.Normalize(*in.DepartureAt)
		r.DepartureAt = &t
	}
	if in.Arrival != nil {
		r.Arrival = *in.Arrival
		r.ArrivalPlace = ""
	}
	if in.ArrivalAt != nil {
		r.ArrivalAt = geo.Normalize(*in.ArrivalAt)
	}
	r.UpdatedAt = now
	return r.Validate()
}

// Validate checks the ride's own fields
func (r *Ride) Validate() error {
	if r.Capacity < 1 {
		return apperrors.Validation("capacity", "capacity must be at least 1")
	}
	if !r.Arrival.Valid() {
		return apperrors.Validation("arrival", "coordinates out of range")
	}
	if r.ArrivalAt.IsZero() {
		return apperrors.Validation("arrival_at", "arrival time is required")
	}
	if r.Departure != nil && !r.Departure.Valid() {
		return apperrors.Validation("departure", "coordinates out of range")
	}
	if r.DepartureAt != nil && r.DepartureAt.After(r.ArrivalAt) {
		return apperrors.Validation("departure_at", "departure must not be after arrival")
	}
	return nil
}

// Completed reports whether the arrival time has elapsed at now
func (r *Ride) Completed(now time.Time) bool {
	return r.ArrivalAt.Before(now)
}

// Clone returns a deep copy of r
func (r *Ride) Clone() *Ride {
	c := *r
	if r.CarPlate != nil {
		p := *r.CarPlate
		c.CarPlate = &p
	}
	if r.Departure != nil {
		d := *r.Departure
		c.Departure = &d
	}
	if r.DepartureAt != nil {
		t := *r.DepartureAt
		c.DepartureAt = &t
	}
	return &c
}
