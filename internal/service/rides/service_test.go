package rides

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carwave/carpool/internal/domain/request"
	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/geo"
	"github.com/carwave/carpool/internal/store/memory"
	"github.com/carwave/carpool/internal/store/storetest"
	apperrors "github.com/carwave/carpool/pkg/errors"
	"github.com/carwave/carpool/pkg/websocket"
)

type placeGeocoder struct {
	fail bool
}

func (g placeGeocoder) Resolve(context.Context, string) (geo.Point, error) {
	return geo.Point{}, errors.New("not used")
}

func (g placeGeocoder) Reverse(_ context.Context, p geo.Point) (string, error) {
	if g.fail {
		return "", apperrors.WrapAppError(apperrors.ErrGeocoding, errors.New("quota"))
	}
	return fmt.Sprintf("place:%.1f,%.1f", p.Lat, p.Lon), nil
}

type sent struct {
	to   string
	kind string
}

type recorder struct {
	mu    sync.Mutex
	users []sent
	rides []sent
}

func (r *recorder) SendToUser(userID string, msg websocket.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, sent{userID, msg.Type})
}

func (r *recorder) BroadcastToRide(rideID string, msg websocket.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rides = append(r.rides, sent{rideID, msg.Type})
}

type fixture struct {
	st    *memory.Store
	svc   *Service
	notes *recorder
}

func newFixture(t *testing.T, geocoder placeGeocoder) *fixture {
	t.Helper()
	f := &fixture{st: memory.New(), notes: &recorder{}}
	f.svc = NewService(f.st, geocoder, f.notes, nil, nil)
	f.svc.now = func() time.Time { return storetest.Base.Add(-24 * time.Hour) }
	return f
}

func createInput(plate *string, capacity int) ride.CreateInput {
	return ride.CreateInput{
		Capacity:  capacity,
		CarPlate:  plate,
		Departure: &storetest.Potsdam,
		Arrival:   storetest.Berlin,
		ArrivalAt: storetest.Base,
	}
}

func ptr[T any](v T) *T { return &v }

func TestCreateRide(t *testing.T) {
	f := newFixture(t, placeGeocoder{})
	ctx := context.Background()
	driver := storetest.MustUser(t, f.st, nil, nil)
	other := storetest.MustUser(t, f.st, nil, nil)
	car := storetest.MustCar(t, f.st, driver.ID, 5.5, 3)
	foreign := storetest.MustCar(t, f.st, other.ID, 5.5, 3)

	lower := strings.ToLower(car.Plate)
	r, err := f.svc.CreateRide(ctx, driver.ID, createInput(&lower, 3))
	require.NoError(t, err)
	assert.Equal(t, "place:52.4,13.1", r.DeparturePlace)
	assert.Equal(t, "place:52.5,13.4", r.ArrivalPlace)

	stored, err := f.st.GetRide(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ArrivalPlace, stored.ArrivalPlace)
	assert.Equal(t, car.Plate, *stored.CarPlate)

	tests := []struct {
		name   string
		driver uuid.UUID
		in     ride.CreateInput
		want   error
		field  string
	}{
		{name: "foreign car", driver: driver.ID, in: createInput(&foreign.Plate, 1), want: apperrors.ErrNotCarOwner},
		{name: "unknown car", driver: driver.ID, in: createInput(ptr("NOPE-1"), 1), want: apperrors.ErrCarNotFound},
		{name: "over car places", driver: driver.ID, in: createInput(&car.Plate, 4), field: "capacity"},
		{name: "zero capacity", driver: driver.ID, in: createInput(nil, 0), field: "capacity"},
		{name: "unknown driver", driver: uuid.New(), in: createInput(nil, 1), want: apperrors.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateRide(ctx, tt.driver, tt.in)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			if tt.field != "" {
				assert.Equal(t, tt.field, apperrors.GetAppError(err).Field)
			}
		})
	}
}

func TestCreateRideWithoutGeocoding(t *testing.T) {
	f := newFixture(t, placeGeocoder{fail: true})
	driver := storetest.MustUser(t, f.st, nil, nil)

	r, err := f.svc.CreateRide(context.Background(), driver.ID, createInput(nil, 2))
	require.NoError(t, err)
	assert.Empty(t, r.ArrivalPlace)
	assert.Empty(t, r.DeparturePlace)
}

func TestUpdateRideCapacity(t *testing.T) {
	f := newFixture(t, placeGeocoder{})
	ctx := context.Background()
	driver := storetest.MustUser(t, f.st, nil, nil)
	r, err := f.svc.CreateRide(ctx, driver.ID, createInput(nil, 3))
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		storetest.MustAccepted(t, f.st, r.ID, storetest.MustUser(t, f.st, nil, nil).ID)
	}

	_, err = f.svc.UpdateRide(ctx, driver.ID, r.ID, ride.UpdateInput{Capacity: ptr(1)})
	assert.ErrorIs(t, err, apperrors.ErrCapacityBelowSeats)
	stored, err := f.st.GetRide(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Capacity)

	updated, err := f.svc.UpdateRide(ctx, driver.ID, r.ID, ride.UpdateInput{Capacity: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Capacity)

	_, err = f.svc.UpdateRide(ctx, uuid.New(), r.ID, ride.UpdateInput{Capacity: ptr(5)})
	assert.ErrorIs(t, err, apperrors.ErrNotRideDriver)

	_, err = f.svc.UpdateRide(ctx, driver.ID, uuid.New(), ride.UpdateInput{})
	assert.ErrorIs(t, err, apperrors.ErrRideNotFound)

	assert.Equal(t, []sent{{r.ID.String(), NoticeUpdated}}, f.notes.rides)
}

func TestUpdateRideMovesPlaces(t *testing.T) {
	f := newFixture(t, placeGeocoder{})
	ctx := context.Background()
	driver := storetest.MustUser(t, f.st, nil, nil)
	r, err := f.svc.CreateRide(ctx, driver.ID, createInput(nil, 2))
	require.NoError(t, err)

	updated, err := f.svc.UpdateRide(ctx, driver.ID, r.ID, ride.UpdateInput{Arrival: &storetest.Munich})
	require.NoError(t, err)
	assert.Equal(t, "place:48.1,11.6", updated.ArrivalPlace)
	assert.Equal(t, r.DeparturePlace, updated.DeparturePlace)

	arrive := storetest.Base.Add(-48 * time.Hour)
	_, err = f.svc.UpdateRide(ctx, driver.ID, r.ID, ride.UpdateInput{DepartureAt: ptr(storetest.Base), ArrivalAt: &arrive})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestUpdateRideCar(t *testing.T) {
	f := newFixture(t, placeGeocoder{})
	ctx := context.Background()
	driver := storetest.MustUser(t, f.st, nil, nil)
	small := storetest.MustCar(t, f.st, driver.ID, 4, 1)
	big := storetest.MustCar(t, f.st, driver.ID, 8, 4)
	r, err := f.svc.CreateRide(ctx, driver.ID, createInput(&big.Plate, 3))
	require.NoError(t, err)

	_, err = f.svc.UpdateRide(ctx, driver.ID, r.ID, ride.UpdateInput{CarPlate: &small.Plate})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	updated, err := f.svc.UpdateRide(ctx, driver.ID, r.ID, ride.UpdateInput{RemoveCar: true})
	require.NoError(t, err)
	assert.Nil(t, updated.CarPlate)
}

func TestCancelRide(t *testing.T) {
	f := newFixture(t, placeGeocoder{})
	ctx := context.Background()
	driver := storetest.MustUser(t, f.st, nil, nil)
	r, err := f.svc.CreateRide(ctx, driver.ID, createInput(nil, 2))
	require.NoError(t, err)

	accepted := storetest.MustUser(t, f.st, nil, nil)
	pending := storetest.MustUser(t, f.st, nil, nil)
	rejected := storetest.MustUser(t, f.st, nil, nil)
	storetest.MustAccepted(t, f.st, r.ID, accepted.ID)
	require.NoError(t, f.st.CreateRequest(ctx, request.New(r.ID, pending.ID, storetest.Base)))
	no := request.New(r.ID, rejected.ID, storetest.Base)
	require.NoError(t, no.Decide(request.ActionReject, storetest.Base))
	require.NoError(t, f.st.CreateRequest(ctx, no))

	assert.ErrorIs(t, f.svc.CancelRide(ctx, accepted.ID, r.ID), apperrors.ErrNotRideDriver)
	require.NoError(t, f.svc.CancelRide(ctx, driver.ID, r.ID))

	_, err = f.st.GetRide(ctx, r.ID)
	assert.ErrorIs(t, err, apperrors.ErrRideNotFound)
	_, err = f.st.GetRequest(ctx, r.ID, accepted.ID)
	assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)

	assert.ElementsMatch(t, []sent{
		{accepted.ID.String(), NoticeCancelled},
		{pending.ID.String(), NoticeCancelled},
	}, f.notes.users)

	assert.ErrorIs(t, f.svc.CancelRide(ctx, driver.ID, r.ID), apperrors.ErrRideNotFound)
}

func TestCars(t *testing.T) {
	f := newFixture(t, placeGeocoder{})
	ctx := context.Background()
	owner := storetest.MustUser(t, f.st, nil, nil)
	other := storetest.MustUser(t, f.st, nil, nil)

	in := ride.CarInput{Plate: " b-ab 123 ", Model: "Golf", Year: 2015, Fuel: ride.FuelDiesel, Consumption: 5.1, PassengerPlaces: 4}
	car, err := f.svc.CreateCar(ctx, owner.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "B-AB 123", car.Plate)

	_, err = f.svc.CreateCar(ctx, other.ID, in)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateCar)

	_, err = f.svc.CreateCar(ctx, uuid.New(), ride.CarInput{Plate: "X-1", Year: 2015, Fuel: ride.FuelDiesel, PassengerPlaces: 1})
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)

	_, err = f.svc.CreateCar(ctx, owner.ID, ride.CarInput{Plate: "X-2", Year: 1850, Fuel: ride.FuelDiesel, PassengerPlaces: 1})
	assert.Equal(t, "year", apperrors.GetAppError(err).Field)

	got, err := f.svc.GetCar(ctx, "b-ab 123")
	require.NoError(t, err)
	assert.Equal(t, "Golf", got.Model)

	_, err = f.svc.UpdateCar(ctx, other.ID, car.Plate, ride.CarUpdate{Model: ptr("Polo")})
	assert.ErrorIs(t, err, apperrors.ErrNotCarOwner)

	updated, err := f.svc.UpdateCar(ctx, owner.ID, car.Plate, ride.CarUpdate{Model: ptr("Polo"), Consumption: ptr(4.2)})
	require.NoError(t, err)
	assert.Equal(t, "Polo", updated.Model)
	assert.Equal(t, 4.2, updated.Consumption)

	r, err := f.svc.CreateRide(ctx, owner.ID, createInput(&car.Plate, 2))
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteCar(ctx, other.ID, car.Plate), apperrors.ErrNotCarOwner)
	require.NoError(t, f.svc.DeleteCar(ctx, owner.ID, car.Plate))

	_, err = f.svc.GetCar(ctx, car.Plate)
	assert.ErrorIs(t, err, apperrors.ErrCarNotFound)
	stored, err := f.st.GetRide(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CarPlate)
}

func TestUpdateCarPlacesAgainstRides(t *testing.T) {
	f := newFixture(t, placeGeocoder{})
	ctx := context.Background()
	owner := storetest.MustUser(t, f.st, nil, nil)
	car := storetest.MustCar(t, f.st, owner.ID, 5.0, 6)

	upcoming := storetest.MustRide(t, f.st, storetest.RideParams{Driver: owner.ID, Car: &car.Plate, Capacity: 4,
		To: storetest.Berlin, ArriveAt: storetest.Base})
	// finished rides no longer bind the car
	storetest.MustRide(t, f.st, storetest.RideParams{Driver: owner.ID, Car: &car.Plate, Capacity: 6,
		To: storetest.Berlin, ArriveAt: storetest.Base.Add(-48 * time.Hour), CreatedAt: storetest.Base.Add(-72 * time.Hour)})

	_, err := f.svc.UpdateCar(ctx, owner.ID, car.Plate, ride.CarUpdate{PassengerPlaces: ptr(1)})
	assert.ErrorIs(t, err, apperrors.ErrPlacesBelowRide)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	stored, err := f.st.GetCar(ctx, car.Plate)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.PassengerPlaces)

	updated, err := f.svc.UpdateCar(ctx, owner.ID, car.Plate, ride.CarUpdate{PassengerPlaces: ptr(upcoming.Capacity)})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.PassengerPlaces)

	updated, err = f.svc.UpdateCar(ctx, owner.ID, car.Plate, ride.CarUpdate{PassengerPlaces: ptr(7)})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.PassengerPlaces)
}
