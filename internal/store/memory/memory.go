// Package memory is an in-process implementation of store.Store. One mutex
// serializes all access; a transaction works on a private copy that
// replaces the shared state only when the transaction succeeds.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carwave/carpool/internal/domain/request"
	"github.com/carwave/carpool/internal/domain/review"
	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/domain/user"
	"github.com/carwave/carpool/internal/store"
)

// Store is safe for concurrent use
type Store struct {
	mu sync.Mutex
	st *state
}

var _ store.Store = (*Store)(nil)

// New returns an empty store
func New() *Store {
	return &Store{st: newState()}
}

// WithTx runs fn against a snapshot and commits it if fn succeeds
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, q store.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := s.st.clone()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx
	return nil
}

func (s *Store) read() (*state, func()) {
	s.mu.Lock()
	return s.st, s.mu.Unlock
}

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	st, unlock := s.read()
	defer unlock()
	return st.CreateUser(ctx, u)
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	st, unlock := s.read()
	defer unlock()
	return st.GetUser(ctx, id)
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	st, unlock := s.read()
	defer unlock()
	return st.UpdateUser(ctx, u)
}

func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	st, unlock := s.read()
	defer unlock()
	return st.DeleteUser(ctx, id)
}

func (s *Store) CreateCar(ctx context.Context, c *ride.Car) error {
	st, unlock := s.read()
	defer unlock()
	return st.CreateCar(ctx, c)
}

func (s *Store) GetCar(ctx context.Context, plate string) (*ride.Car, error) {
	st, unlock := s.read()
	defer unlock()
	return st.GetCar(ctx, plate)
}

func (s *Store) UpdateCar(ctx context.Context, c *ride.Car) error {
	st, unlock := s.read()
	defer unlock()
	return st.UpdateCar(ctx, c)
}

func (s *Store) DeleteCar(ctx context.Context, plate string) error {
	st, unlock := s.read()
	defer unlock()
	return st.DeleteCar(ctx, plate)
}

func (s *Store) CreateRide(ctx context.Context, r *ride.Ride) error {
	st, unlock := s.read()
	defer unlock()
	return st.CreateRide(ctx, r)
}

func (s *Store) GetRide(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	st, unlock := s.read()
	defer unlock()
	return st.GetRide(ctx, id)
}

func (s *Store) LockRide(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	return s.GetRide(ctx, id)
}

func (s *Store) UpdateRide(ctx context.Context, r *ride.Ride) error {
	st, unlock := s.read()
	defer unlock()
	return st.UpdateRide(ctx, r)
}

func (s *Store) DeleteRide(ctx context.Context, id uuid.UUID) error {
	st, unlock := s.read()
	defer unlock()
	return st.DeleteRide(ctx, id)
}

func (s *Store) SearchRides(ctx context.Context, f store.RideFilter) ([]*ride.Ride, error) {
	st, unlock := s.read()
	defer unlock()
	return st.SearchRides(ctx, f)
}

func (s *Store) RidesByCar(ctx context.Context, plate string) ([]*ride.Ride, error) {
	st, unlock := s.read()
	defer unlock()
	return st.RidesByCar(ctx, plate)
}

func (s *Store) CreateRequest(ctx context.Context, r *request.Request) error {
	st, unlock := s.read()
	defer unlock()
	return st.CreateRequest(ctx, r)
}

func (s *Store) GetRequest(ctx context.Context, rideID, riderID uuid.UUID) (*request.Request, error) {
	st, unlock := s.read()
	defer unlock()
	return st.GetRequest(ctx, rideID, riderID)
}

func (s *Store) UpdateRequest(ctx context.Context, r *request.Request) error {
	st, unlock := s.read()
	defer unlock()
	return st.UpdateRequest(ctx, r)
}

func (s *Store) DeleteRequest(ctx context.Context, rideID, riderID uuid.UUID) error {
	st, unlock := s.read()
	defer unlock()
	return st.DeleteRequest(ctx, rideID, riderID)
}

func (s *Store) ListRequests(ctx context.Context, rideID uuid.UUID, status *request.Status) ([]*request.Request, error) {
	st, unlock := s.read()
	defer unlock()
	return st.ListRequests(ctx, rideID, status)
}

func (s *Store) CountAccepted(ctx context.Context, rideID uuid.UUID) (int, error) {
	st, unlock := s.read()
	defer unlock()
	return st.CountAccepted(ctx, rideID)
}

func (s *Store) GetReview(ctx context.Context, author, subject uuid.UUID, role review.Role) (*review.Review, error) {
	st, unlock := s.read()
	defer unlock()
	return st.GetReview(ctx, author, subject, role)
}

func (s *Store) CreateReview(ctx context.Context, rv *review.Review) error {
	st, unlock := s.read()
	defer unlock()
	return st.CreateReview(ctx, rv)
}

func (s *Store) UpdateReview(ctx context.Context, rv *review.Review) error {
	st, unlock := s.read()
	defer unlock()
	return st.UpdateReview(ctx, rv)
}

func (s *Store) RatingStats(ctx context.Context, subject uuid.UUID, role review.Role) (store.RatingStats, error) {
	st, unlock := s.read()
	defer unlock()
	return st.RatingStats(ctx, subject, role)
}

func (s *Store) TopTags(ctx context.Context, subject uuid.UUID, role review.Role, n int) ([]store.TagCount, error) {
	st, unlock := s.read()
	defer unlock()
	return st.TopTags(ctx, subject, role, n)
}

func (s *Store) SharedTrip(ctx context.Context, author, subject uuid.UUID, role review.Role, now time.Time) (bool, error) {
	st, unlock := s.read()
	defer unlock()
	return st.SharedTrip(ctx, author, subject, role, now)
}

func (s *Store) SearchTags(ctx context.Context, prefix string, limit int) ([]string, error) {
	st, unlock := s.read()
	defer unlock()
	return st.SearchTags(ctx, prefix, limit)
}
