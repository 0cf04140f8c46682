package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carwave/carpool/internal/domain/request"
	"github.com/carwave/carpool/internal/domain/review"
	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/domain/user"
	"github.com/carwave/carpool/internal/store"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

type requestKey struct {
	ride, rider uuid.UUID
}

type reviewKey struct {
	author, subject uuid.UUID
	role            review.Role
}

// state is the unsynchronized data set. Every value handed in or out is
// copied so callers never alias stored rows.
type state struct {
	users    map[uuid.UUID]*user.User
	cars     map[string]*ride.Car
	rides    map[uuid.UUID]*ride.Ride
	requests map[requestKey]*request.Request
	reviews  map[reviewKey]*review.Review
}

var _ store.Queries = (*state)(nil)

func newState() *state {
	return &state{
		users:    make(map[uuid.UUID]*user.User),
		cars:     make(map[string]*ride.Car),
		rides:    make(map[uuid.UUID]*ride.Ride),
		requests: make(map[requestKey]*request.Request),
		reviews:  make(map[reviewKey]*review.Review),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range s.cars {
		c.cars[k] = copyCar(v)
	}
	for k, v := range s.rides {
		c.rides[k] = v.Clone()
	}
	for k, v := range s.requests {
		c.requests[k] = copyRequest(v)
	}
	for k, v := range s.reviews {
		c.reviews[k] = copyReview(v)
	}
	return c
}

func copyUser(u *user.User) *user.User {
	c := *u
	if u.Email != nil {
		v := *u.Email
		c.Email = &v
	}
	if u.Age != nil {
		v := *u.Age
		c.Age = &v
	}
	if u.Sex != nil {
		v := *u.Sex
		c.Sex = &v
	}
	if u.Home != nil {
		v := *u.Home
		c.Home = &v
	}
	return &c
}

func copyCar(c *ride.Car) *ride.Car {
	v := *c
	return &v
}

func copyRequest(r *request.Request) *request.Request {
	v := *r
	return &v
}

func copyReview(rv *review.Review) *review.Review {
	v := *rv
	v.Tags = append([]string(nil), rv.Tags...)
	return &v
}

// Users

func (s *state) CreateUser(_ context.Context, u *user.User) error {
	if _, ok := s.users[u.ID]; ok {
		return apperrors.ErrDuplicateUser
	}
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return apperrors.ErrDuplicateUser
		}
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *state) GetUser(_ context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (s *state) UpdateUser(_ context.Context, u *user.User) error {
	if _, ok := s.users[u.ID]; !ok {
		return apperrors.ErrUserNotFound
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *state) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.users[id]; !ok {
		return apperrors.ErrUserNotFound
	}
	for plate, c := range s.cars {
		if c.OwnerID == id {
			_ = s.DeleteCar(ctx, plate)
		}
	}
	for rideID, r := range s.rides {
		if r.DriverID == id {
			_ = s.DeleteRide(ctx, rideID)
		}
	}
	for k := range s.requests {
		if k.rider == id {
			delete(s.requests, k)
		}
	}
	for k := range s.reviews {
		if k.author == id || k.subject == id {
			delete(s.reviews, k)
		}
	}
	delete(s.users, id)
	return nil
}

// Cars

func (s *state) CreateCar(_ context.Context, c *ride.Car) error {
	if _, ok := s.users[c.OwnerID]; !ok {
		return apperrors.ErrUserNotFound
	}
	if _, ok := s.cars[c.Plate]; ok {
		return apperrors.ErrDuplicateCar
	}
	s.cars[c.Plate] = copyCar(c)
	return nil
}

func (s *state) GetCar(_ context.Context, plate string) (*ride.Car, error) {
	c, ok := s.cars[plate]
	if !ok {
		return nil, apperrors.ErrCarNotFound
	}
	return copyCar(c), nil
}

func (s *state) UpdateCar(_ context.Context, c *ride.Car) error {
	if _, ok := s.cars[c.Plate]; !ok {
		return apperrors.ErrCarNotFound
	}
	s.cars[c.Plate] = copyCar(c)
	return nil
}

func (s *state) DeleteCar(_ context.Context, plate string) error {
	if _, ok := s.cars[plate]; !ok {
		return apperrors.ErrCarNotFound
	}
	for _, r := range s.rides {
		if r.CarPlate != nil && *r.CarPlate == plate {
			r.CarPlate = nil
		}
	}
	delete(s.cars, plate)
	return nil
}

// Rides

func (s *state) CreateRide(_ context.Context, r *ride.Ride) error {
	if _, ok := s.users[r.DriverID]; !ok {
		return apperrors.ErrUserNotFound
	}
	if r.CarPlate != nil {
		if _, ok := s.cars[*r.CarPlate]; !ok {
			return apperrors.ErrCarNotFound
		}
	}
	s.rides[r.ID] = r.Clone()
	return nil
}

func (s *state) GetRide(_ context.Context, id uuid.UUID) (*ride.Ride, error) {
	r, ok := s.rides[id]
	if !ok {
		return nil, apperrors.ErrRideNotFound
	}
	return r.Clone(), nil
}

// LockRide needs no extra work: a transaction already holds the store lock.
func (s *state) LockRide(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	return s.GetRide(ctx, id)
}

func (s *state) UpdateRide(_ context.Context, r *ride.Ride) error {
	if _, ok := s.rides[r.ID]; !ok {
		return apperrors.ErrRideNotFound
	}
	if r.CarPlate != nil {
		if _, ok := s.cars[*r.CarPlate]; !ok {
			return apperrors.ErrCarNotFound
		}
	}
	s.rides[r.ID] = r.Clone()
	return nil
}

func (s *state) DeleteRide(_ context.Context, id uuid.UUID) error {
	if _, ok := s.rides[id]; !ok {
		return apperrors.ErrRideNotFound
	}
	for k := range s.requests {
		if k.ride == id {
			delete(s.requests, k)
		}
	}
	delete(s.rides, id)
	return nil
}

func (s *state) SearchRides(_ context.Context, f store.RideFilter) ([]*ride.Ride, error) {
	var out []*ride.Ride
	for _, r := range s.rides {
		var car *ride.Car
		if r.CarPlate != nil {
			car = s.cars[*r.CarPlate]
		}
		if f.Matches(r, s.users[r.DriverID], car) {
			out = append(out, r.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *state) RidesByCar(_ context.Context, plate string) ([]*ride.Ride, error) {
	var out []*ride.Ride
	for _, r := range s.rides {
		if r.CarPlate != nil && *r.CarPlate == plate {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return store.Cursor{CreatedAt: out[i].CreatedAt, ID: out[i].ID}.Before(out[j])
	})
	return out, nil
}

// Passenger requests

func (s *state) CreateRequest(_ context.Context, r *request.Request) error {
	if _, ok := s.rides[r.RideID]; !ok {
		return apperrors.ErrRideNotFound
	}
	if _, ok := s.users[r.RiderID]; !ok {
		return apperrors.ErrUserNotFound
	}
	key := requestKey{r.RideID, r.RiderID}
	if _, ok := s.requests[key]; ok {
		return apperrors.ErrDuplicateRequest
	}
	s.requests[key] = copyRequest(r)
	return nil
}

func (s *state) GetRequest(_ context.Context, rideID, riderID uuid.UUID) (*request.Request, error) {
	r, ok := s.requests[requestKey{rideID, riderID}]
	if !ok {
		return nil, apperrors.ErrRequestNotFound
	}
	return copyRequest(r), nil
}

func (s *state) UpdateRequest(_ context.Context, r *request.Request) error {
	key := requestKey{r.RideID, r.RiderID}
	if _, ok := s.requests[key]; !ok {
		return apperrors.ErrRequestNotFound
	}
	s.requests[key] = copyRequest(r)
	return nil
}

func (s *state) DeleteRequest(_ context.Context, rideID, riderID uuid.UUID) error {
	key := requestKey{rideID, riderID}
	if _, ok := s.requests[key]; !ok {
		return apperrors.ErrRequestNotFound
	}
	delete(s.requests, key)
	return nil
}

func (s *state) ListRequests(_ context.Context, rideID uuid.UUID, status *request.Status) ([]*request.Request, error) {
	var out []*request.Request
	for k, r := range s.requests {
		if k.ride != rideID || (status != nil && r.Status != *status) {
			continue
		}
		out = append(out, copyRequest(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].RiderID.String() < out[j].RiderID.String()
	})
	return out, nil
}

func (s *state) CountAccepted(_ context.Context, rideID uuid.UUID) (int, error) {
	n := 0
	for k, r := range s.requests {
		if k.ride == rideID && r.Status == request.StatusAccepted {
			n++
		}
	}
	return n, nil
}

func (s *state) accepted(rideID, riderID uuid.UUID) bool {
	r, ok := s.requests[requestKey{rideID, riderID}]
	return ok && r.Status == request.StatusAccepted
}

// Reviews

func (s *state) GetReview(_ context.Context, author, subject uuid.UUID, role review.Role) (*review.Review, error) {
	rv, ok := s.reviews[reviewKey{author, subject, role}]
	if !ok {
		return nil, apperrors.ErrReviewNotFound
	}
	return copyReview(rv), nil
}

func (s *state) CreateReview(_ context.Context, rv *review.Review) error {
	if _, ok := s.users[rv.AuthorID]; !ok {
		return apperrors.ErrUserNotFound
	}
	if _, ok := s.users[rv.SubjectID]; !ok {
		return apperrors.ErrUserNotFound
	}
	key := reviewKey{rv.AuthorID, rv.SubjectID, rv.Role}
	if _, ok := s.reviews[key]; ok {
		return apperrors.ErrDuplicateReview
	}
	s.reviews[key] = copyReview(rv)
	return nil
}

func (s *state) UpdateReview(_ context.Context, rv *review.Review) error {
	key := reviewKey{rv.AuthorID, rv.SubjectID, rv.Role}
	if _, ok := s.reviews[key]; !ok {
		return apperrors.ErrReviewNotFound
	}
	s.reviews[key] = copyReview(rv)
	return nil
}

func (s *state) RatingStats(_ context.Context, subject uuid.UUID, role review.Role) (store.RatingStats, error) {
	var sum, n int
	for k, rv := range s.reviews {
		if k.subject == subject && k.role == role {
			sum += rv.Rating
			n++
		}
	}
	if n == 0 {
		return store.RatingStats{}, nil
	}
	return store.RatingStats{Average: float64(sum) / float64(n), Count: n}, nil
}

func (s *state) TopTags(_ context.Context, subject uuid.UUID, role review.Role, n int) ([]store.TagCount, error) {
	counts := make(map[string]int)
	for k, rv := range s.reviews {
		if k.subject != subject || k.role != role {
			continue
		}
		for _, tag := range rv.Tags {
			counts[tag]++
		}
	}

	out := make([]store.TagCount, 0, len(counts))
	for tag, c := range counts {
		out = append(out, store.TagCount{Tag: tag, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *state) SharedTrip(_ context.Context, author, subject uuid.UUID, role review.Role, now time.Time) (bool, error) {
	for _, r := range s.rides {
		if !r.Completed(now) {
			continue
		}
		switch role {
		case review.RoleDriver:
			if r.DriverID == subject && s.accepted(r.ID, author) {
				return true, nil
			}
		case review.RolePassenger:
			if !s.accepted(r.ID, subject) {
				continue
			}
			if r.DriverID == author || s.accepted(r.ID, author) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *state) SearchTags(_ context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.ToLower(prefix)
	seen := make(map[string]struct{})
	var out []string
	for _, rv := range s.reviews {
		for _, tag := range rv.Tags {
			if _, dup := seen[tag]; dup || !strings.HasPrefix(strings.ToLower(tag), prefix) {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
