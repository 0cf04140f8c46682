// Package storetest is a behavioural suite every store.Store must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carwave/carpool/internal/domain/request"
	"github.com/carwave/carpool/internal/domain/review"
	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/domain/user"
	"github.com/carwave/carpool/internal/geo"
	"github.com/carwave/carpool/internal/store"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

// Factory returns an empty store
type Factory func(t *testing.T) store.Store

// Base is the reference instant fixtures are placed around. Whole seconds
// keep round trips exact on stores with microsecond precision.
var Base = time.Date(2030, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	Berlin  = geo.Point{Lat: 52.5200, Lon: 13.4050}
	Potsdam = geo.Point{Lat: 52.3906, Lon: 13.0645}
	Munich  = geo.Point{Lat: 48.1351, Lon: 11.5820}
)

// Run executes the whole suite against stores built by newStore
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Cars", func(t *testing.T) { testCars(t, newStore(t)) })
	t.Run("SearchRides", func(t *testing.T) { testSearchRides(t, newStore(t)) })
	t.Run("Requests", func(t *testing.T) { testRequests(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("Cascades", func(t *testing.T) { testCascades(t, newStore(t)) })
	t.Run("Reviews", func(t *testing.T) { testReviews(t, newStore(t)) })
	t.Run("SharedTrip", func(t *testing.T) { testSharedTrip(t, newStore(t)) })
}

// MustUser inserts a user with the given optional attributes
func MustUser(t *testing.T, s store.Queries, age *int, sex *user.Sex) *user.User {
	t.Helper()
	u, err := user.New(user.CreateInput{
		Username:  "u-" + uuid.NewString()[:8],
		FirstName: "Test",
		Age:       age,
		Sex:       sex,
	}, Base)
	require.NoError(t, err)
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

// MustCar registers a car for owner
func MustCar(t *testing.T, s store.Queries, owner uuid.UUID, consumption float64, places int) *ride.Car {
	t.Helper()
	c, err := ride.NewCar(owner, ride.CarInput{
		Plate:           "T-" + uuid.NewString()[:8],
		Model:           "Test",
		Year:            2020,
		Fuel:            ride.FuelGasoline,
		Consumption:     consumption,
		PassengerPlaces: places,
	}, Base)
	require.NoError(t, err)
	require.NoError(t, s.CreateCar(context.Background(), c))
	return c
}

// RideParams describes a fixture ride
type RideParams struct {
	Driver    uuid.UUID
	Capacity  int
	Car       *string
	From      *geo.Point
	DepartAt  *time.Time
	To        geo.Point
	ArriveAt  time.Time
	CreatedAt time.Time
}

// MustRide inserts a ride built from p
func MustRide(t *testing.T, s store.Queries, p RideParams) *ride.Ride {
	t.Helper()
	if p.Capacity == 0 {
		p.Capacity = 2
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = Base.Add(-24 * time.Hour)
	}
	r, err := ride.New(p.Driver, ride.CreateInput{
		Capacity:    p.Capacity,
		CarPlate:    p.Car,
		Departure:   p.From,
		DepartureAt: p.DepartAt,
		Arrival:     p.To,
		ArrivalAt:   p.ArriveAt,
	}, p.CreatedAt)
	require.NoError(t, err)
	require.NoError(t, s.CreateRide(context.Background(), r))
	return r
}

// MustAccepted inserts an accepted request of rider on rideID
func MustAccepted(t *testing.T, s store.Queries, rideID, rider uuid.UUID) {
	t.Helper()
	r := request.New(rideID, rider, Base)
	require.NoError(t, r.Decide(request.ActionAccept, Base))
	require.NoError(t, s.CreateRequest(context.Background(), r))
}

func ptr[T any](v T) *T { return &v }

func ids(rides []*ride.Ride) []uuid.UUID {
	out := make([]uuid.UUID, len(rides))
	for i, r := range rides {
		out[i] = r.ID
	}
	return out
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := MustUser(t, s, ptr(30), ptr(user.SexFemale))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Username, got.Username)
	assert.Equal(t, 30, *got.Age)
	assert.Equal(t, user.SexFemale, *got.Sex)

	dup := *u
	dup.ID = uuid.New()
	assert.True(t, errors.Is(s.CreateUser(ctx, &dup), apperrors.ErrDuplicateUser))

	got.LastName = "Changed"
	require.NoError(t, s.UpdateUser(ctx, got))
	again, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Changed", again.LastName)

	_, err = s.GetUser(ctx, uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrUserNotFound))
}

func testCars(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := MustUser(t, s, nil, nil)
	car := MustCar(t, s, owner.ID, 6.5, 4)

	got, err := s.GetCar(ctx, car.Plate)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.OwnerID)
	assert.Equal(t, 6.5, got.Consumption)

	assert.True(t, errors.Is(s.CreateCar(ctx, car), apperrors.ErrDuplicateCar))

	r := MustRide(t, s, RideParams{Driver: owner.ID, Car: &car.Plate, To: Berlin, ArriveAt: Base})
	MustRide(t, s, RideParams{Driver: owner.ID, To: Berlin, ArriveAt: Base})
	using, err := s.RidesByCar(ctx, car.Plate)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{r.ID}, ids(using))

	require.NoError(t, s.DeleteCar(ctx, car.Plate))
	using, err = s.RidesByCar(ctx, car.Plate)
	require.NoError(t, err)
	assert.Empty(t, using)

	detached, err := s.GetRide(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, detached.CarPlate)

	_, err = s.GetCar(ctx, car.Plate)
	assert.True(t, errors.Is(err, apperrors.ErrCarNotFound))
}

func testSearchRides(t *testing.T, s store.Store) {
	ctx := context.Background()

	young := MustUser(t, s, ptr(25), ptr(user.SexFemale))
	old := MustUser(t, s, ptr(40), ptr(user.SexMale))
	anon := MustUser(t, s, nil, nil)
	thrifty := MustCar(t, s, young.ID, 4.0, 4)
	thirsty := MustCar(t, s, old.ID, 9.0, 4)

	departAt := Base.Add(-time.Hour)
	nearBerlin := MustRide(t, s, RideParams{Driver: young.ID, Car: &thrifty.Plate, From: &Potsdam, DepartAt: &departAt,
		To: Berlin, ArriveAt: Base, CreatedAt: Base.Add(-3 * time.Hour)})
	lateBerlin := MustRide(t, s, RideParams{Driver: old.ID, Car: &thirsty.Plate,
		To: geo.Point{Lat: Berlin.Lat + 0.02, Lon: Berlin.Lon}, ArriveAt: Base.Add(45 * time.Minute), CreatedAt: Base.Add(-2 * time.Hour)})
	anonBerlin := MustRide(t, s, RideParams{Driver: anon.ID,
		To: Berlin, ArriveAt: Base.Add(10 * time.Minute), CreatedAt: Base.Add(-time.Hour)})
	munich := MustRide(t, s, RideParams{Driver: young.ID, To: Munich, ArriveAt: Base, CreatedAt: Base.Add(-4 * time.Hour)})

	tests := []struct {
		name string
		f    store.RideFilter
		want []uuid.UUID
	}{
		{"no filter, creation order", store.RideFilter{},
			[]uuid.UUID{munich.ID, nearBerlin.ID, lateBerlin.ID, anonBerlin.ID}},
		{"arrival radius", store.RideFilter{Arrival: &store.Circle{Center: Berlin, RadiusMeters: 5000}},
			[]uuid.UUID{nearBerlin.ID, lateBerlin.ID, anonBerlin.ID}},
		{"arrival radius and window", store.RideFilter{
			Arrival:       &store.Circle{Center: Berlin, RadiusMeters: 5000},
			ArrivalWindow: &geo.Window{At: Base, Tolerance: 30 * time.Minute}},
			[]uuid.UUID{nearBerlin.ID, anonBerlin.ID}},
		{"departure radius needs a departure point", store.RideFilter{Departure: &store.Circle{Center: Potsdam, RadiusMeters: 1000}},
			[]uuid.UUID{nearBerlin.ID}},
		{"departure window", store.RideFilter{DepartureWindow: &geo.Window{At: departAt.Add(30 * time.Minute), Tolerance: 30 * time.Minute}},
			[]uuid.UUID{nearBerlin.ID}},
		{"sex excludes undeclared", store.RideFilter{DriverSex: ptr(user.SexMale)},
			[]uuid.UUID{lateBerlin.ID}},
		{"age inclusive lower bound", store.RideFilter{DriverAge: geo.AtLeast(40)},
			[]uuid.UUID{lateBerlin.ID}},
		{"age inclusive upper bound", store.RideFilter{DriverAge: geo.AtMost(25)},
			[]uuid.UUID{munich.ID, nearBerlin.ID}},
		{"age just outside", store.RideFilter{DriverAge: geo.Between(26, 39)}, nil},
		{"consumption excludes carless rides", store.RideFilter{Consumption: geo.AtMost(5.0)},
			[]uuid.UUID{nearBerlin.ID}},
		{"arriving after", store.RideFilter{ArrivingAfter: ptr(Base.Add(5 * time.Minute))},
			[]uuid.UUID{lateBerlin.ID, anonBerlin.ID}},
		{"exclude driver", store.RideFilter{ExcludeDriver: &young.ID},
			[]uuid.UUID{lateBerlin.ID, anonBerlin.ID}},
		{"limit", store.RideFilter{Limit: 2},
			[]uuid.UUID{munich.ID, nearBerlin.ID}},
		{"after cursor", store.RideFilter{After: store.CursorAt(nearBerlin)},
			[]uuid.UUID{lateBerlin.ID, anonBerlin.ID}},
		{"after cursor with limit", store.RideFilter{After: store.CursorAt(munich), Limit: 2},
			[]uuid.UUID{nearBerlin.ID, lateBerlin.ID}},
		{"after last ride", store.RideFilter{After: store.CursorAt(anonBerlin)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SearchRides(ctx, tt.f)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func testRequests(t *testing.T, s store.Store) {
	ctx := context.Background()
	driver := MustUser(t, s, nil, nil)
	x := MustUser(t, s, nil, nil)
	y := MustUser(t, s, nil, nil)
	r := MustRide(t, s, RideParams{Driver: driver.ID, To: Berlin, ArriveAt: Base})

	rx := request.New(r.ID, x.ID, Base)
	require.NoError(t, s.CreateRequest(ctx, rx))
	require.NoError(t, s.CreateRequest(ctx, request.New(r.ID, y.ID, Base.Add(time.Second))))
	assert.True(t, errors.Is(s.CreateRequest(ctx, request.New(r.ID, x.ID, Base)), apperrors.ErrDuplicateRequest))

	n, err := s.CountAccepted(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, rx.Decide(request.ActionAccept, Base.Add(time.Minute)))
	require.NoError(t, s.UpdateRequest(ctx, rx))

	got, err := s.GetRequest(ctx, r.ID, x.ID)
	require.NoError(t, err)
	assert.Equal(t, request.StatusAccepted, got.Status)
	assert.True(t, got.LastModified.Equal(Base.Add(time.Minute)))

	n, err = s.CountAccepted(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err := s.ListRequests(ctx, r.ID, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, x.ID, all[0].RiderID)

	pending, err := s.ListRequests(ctx, r.ID, ptr(request.StatusPending))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, y.ID, pending[0].RiderID)

	require.NoError(t, s.DeleteRequest(ctx, r.ID, y.ID))
	_, err = s.GetRequest(ctx, r.ID, y.ID)
	assert.True(t, errors.Is(err, apperrors.ErrRequestNotFound))
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	driver := MustUser(t, s, nil, nil)
	rider := MustUser(t, s, nil, nil)
	r := MustRide(t, s, RideParams{Driver: driver.ID, To: Berlin, ArriveAt: Base})

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		locked, err := q.LockRide(ctx, r.ID)
		if err != nil {
			return err
		}
		locked.Capacity = 9
		if err := q.UpdateRide(ctx, locked); err != nil {
			return err
		}
		if err := q.CreateRequest(ctx, request.New(r.ID, rider.ID, Base)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	after, err := s.GetRide(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Capacity)
	_, err = s.GetRequest(ctx, r.ID, rider.ID)
	assert.True(t, errors.Is(err, apperrors.ErrRequestNotFound))

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		return q.CreateRequest(ctx, request.New(r.ID, rider.ID, Base))
	}))
	_, err = s.GetRequest(ctx, r.ID, rider.ID)
	assert.NoError(t, err)
}

func testCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	driver := MustUser(t, s, nil, nil)
	rider := MustUser(t, s, nil, nil)
	car := MustCar(t, s, driver.ID, 5, 4)
	r := MustRide(t, s, RideParams{Driver: driver.ID, Car: &car.Plate, To: Berlin, ArriveAt: Base})
	require.NoError(t, s.CreateRequest(ctx, request.New(r.ID, rider.ID, Base)))

	require.NoError(t, s.DeleteRide(ctx, r.ID))
	_, err := s.GetRequest(ctx, r.ID, rider.ID)
	assert.True(t, errors.Is(err, apperrors.ErrRequestNotFound))

	r2 := MustRide(t, s, RideParams{Driver: driver.ID, To: Berlin, ArriveAt: Base})
	require.NoError(t, s.CreateRequest(ctx, request.New(r2.ID, rider.ID, Base)))
	require.NoError(t, s.DeleteUser(ctx, driver.ID))

	_, err = s.GetRide(ctx, r2.ID)
	assert.True(t, errors.Is(err, apperrors.ErrRideNotFound))
	_, err = s.GetCar(ctx, car.Plate)
	assert.True(t, errors.Is(err, apperrors.ErrCarNotFound))
	_, err = s.GetRequest(ctx, r2.ID, rider.ID)
	assert.True(t, errors.Is(err, apperrors.ErrRequestNotFound))
}

func testReviews(t *testing.T, s store.Store) {
	ctx := context.Background()
	subject := MustUser(t, s, nil, nil)
	a := MustUser(t, s, nil, nil)
	b := MustUser(t, s, nil, nil)
	c := MustUser(t, s, nil, nil)

	stats, err := s.RatingStats(ctx, subject.ID, review.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)

	put := func(author uuid.UUID, role review.Role, rating int, tags ...string) *review.Review {
		rv, err := review.New(author, subject.ID, role, review.UpsertInput{Rating: rating, Body: "ok", Tags: tags}, Base)
		require.NoError(t, err)
		require.NoError(t, s.CreateReview(ctx, rv))
		return rv
	}
	first := put(a.ID, review.RoleDriver, 5, "punctual", "friendly")
	put(b.ID, review.RoleDriver, 4, "friendly", "Quiet")
	put(c.ID, review.RoleDriver, 3, "quiet", "punctual")
	put(a.ID, review.RolePassenger, 1, "late")

	assert.True(t, errors.Is(s.CreateReview(ctx, first), apperrors.ErrDuplicateReview))

	stats, err = s.RatingStats(ctx, subject.ID, review.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
	assert.InDelta(t, 4.0, stats.Average, 1e-9)

	top, err := s.TopTags(ctx, subject.ID, review.RoleDriver, 3)
	require.NoError(t, err)
	assert.Equal(t, []store.TagCount{{Tag: "friendly", Count: 2}, {Tag: "punctual", Count: 2}, {Tag: "Quiet", Count: 1}}, top)

	first.Replace(review.UpsertInput{Rating: 2, Body: "changed", Tags: []string{"rude"}}, Base.Add(time.Hour))
	require.NoError(t, s.UpdateReview(ctx, first))
	got, err := s.GetReview(ctx, a.ID, subject.ID, review.RoleDriver)
	require.NoError(t, err)
	assert.Equal(t, []string{"rude"}, got.Tags)
	assert.Equal(t, "changed", got.Body)

	tags, err := s.SearchTags(ctx, "q", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Quiet", "quiet"}, tags)

	tags, err = s.SearchTags(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, tags, 2)
}

func testSharedTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	driver := MustUser(t, s, nil, nil)
	x := MustUser(t, s, nil, nil)
	y := MustUser(t, s, nil, nil)
	stranger := MustUser(t, s, nil, nil)

	past := MustRide(t, s, RideParams{Driver: driver.ID, To: Berlin, ArriveAt: Base.Add(-time.Hour)})
	future := MustRide(t, s, RideParams{Driver: driver.ID, To: Berlin, ArriveAt: Base.Add(time.Hour)})

	check := func(author, subject uuid.UUID, role review.Role) bool {
		ok, err := s.SharedTrip(ctx, author, subject, role, Base)
		require.NoError(t, err)
		return ok
	}

	assert.False(t, check(x.ID, driver.ID, review.RoleDriver))

	MustAccepted(t, s, future.ID, x.ID)
	assert.False(t, check(x.ID, driver.ID, review.RoleDriver), "ride not completed yet")

	require.NoError(t, s.CreateRequest(ctx, request.New(past.ID, y.ID, Base.Add(-2*time.Hour))))
	assert.False(t, check(y.ID, driver.ID, review.RoleDriver), "pending is not a trip")

	MustAccepted(t, s, past.ID, x.ID)
	assert.True(t, check(x.ID, driver.ID, review.RoleDriver))
	assert.True(t, check(driver.ID, x.ID, review.RolePassenger))
	assert.False(t, check(driver.ID, x.ID, review.RoleDriver), "x never drove")
	assert.False(t, check(x.ID, driver.ID, review.RolePassenger), "driver was not a passenger")
	assert.False(t, check(stranger.ID, driver.ID, review.RoleDriver))

	pending, err := s.GetRequest(ctx, past.ID, y.ID)
	require.NoError(t, err)
	require.NoError(t, pending.Decide(request.ActionAccept, Base))
	require.NoError(t, s.UpdateRequest(ctx, pending))
	assert.True(t, check(x.ID, y.ID, review.RolePassenger), "co-passengers")
	assert.True(t, check(y.ID, x.ID, review.RolePassenger))
}
