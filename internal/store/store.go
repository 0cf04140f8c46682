// Package store defines the persistence contract of the carpool engine.
// Implementations live in the memory and postgres subpackages.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carwave/carpool/internal/domain/request"
	"github.com/carwave/carpool/internal/domain/review"
	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/domain/user"
)

// Queries is the set of operations available both on the store and inside
// a transaction. Lookups of missing rows return the matching NotFound
// sentinel from pkg/errors; uniqueness violations return the matching
// Conflict sentinel.
type Queries interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*user.User, error)
	UpdateUser(ctx context.Context, u *user.User) error
	// DeleteUser cascades to the user's cars, rides, requests and reviews.
	DeleteUser(ctx context.Context, id uuid.UUID) error

	CreateCar(ctx context.Context, c *ride.Car) error
	GetCar(ctx context.Context, plate string) (*ride.Car, error)
	UpdateCar(ctx context.Context, c *ride.Car) error
	// DeleteCar detaches the car from rides referencing it.
	DeleteCar(ctx context.Context, plate string) error

	CreateRide(ctx context.Context, r *ride.Ride) error
	GetRide(ctx context.Context, id uuid.UUID) (*ride.Ride, error)
	// LockRide reads a ride and holds it until the transaction ends.
	// Outside a transaction it behaves like GetRide.
	LockRide(ctx context.Context, id uuid.UUID) (*ride.Ride, error)
	UpdateRide(ctx context.Context, r *ride.Ride) error
	// DeleteRide cascades to the ride's requests.
	DeleteRide(ctx context.Context, id uuid.UUID) error
	SearchRides(ctx context.Context, f RideFilter) ([]*ride.Ride, error)
	// RidesByCar returns the rides using the car, oldest first. Inside a
	// transaction the rides stay locked until it ends.
	RidesByCar(ctx context.Context, plate string) ([]*ride.Ride, error)

	CreateRequest(ctx context.Context, r *request.Request) error
	GetRequest(ctx context.Context, rideID, riderID uuid.UUID) (*request.Request, error)
	UpdateRequest(ctx context.Context, r *request.Request) error
	DeleteRequest(ctx context.Context, rideID, riderID uuid.UUID) error
	// ListRequests returns a ride's requests oldest first; nil status lists all.
	ListRequests(ctx context.Context, rideID uuid.UUID, status *request.Status) ([]*request.Request, error)
	CountAccepted(ctx context.Context, rideID uuid.UUID) (int, error)

	GetReview(ctx context.Context, author, subject uuid.UUID, role review.Role) (*review.Review, error)
	CreateReview(ctx context.Context, rv *review.Review) error
	UpdateReview(ctx context.Context, rv *review.Review) error
	RatingStats(ctx context.Context, subject uuid.UUID, role review.Role) (RatingStats, error)
	// TopTags returns the n most used tags, count descending then tag ascending.
	TopTags(ctx context.Context, subject uuid.UUID, role review.Role, n int) ([]TagCount, error)
	// SharedTrip reports whether author and subject completed a ride
	// before now in a way that lets author review subject in role.
	SharedTrip(ctx context.Context, author, subject uuid.UUID, role review.Role, now time.Time) (bool, error)
	// SearchTags lists distinct tags starting with prefix, case-insensitive.
	SearchTags(ctx context.Context, prefix string, limit int) ([]string, error)
}

// Store is a Queries with transactional scoping. fn runs inside one
// transaction; a non-nil return rolls back everything fn did.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error
}

// RatingStats is the aggregate of a user's reviews in one role
type RatingStats struct {
	Average float64
	Count   int
}

// TagCount is a tag with its number of occurrences
type TagCount struct {
	Tag   string `db:"tag"`
	Count int    `db:"n"`
}
