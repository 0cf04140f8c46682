package ride

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carwave/carpool/internal/geo"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

func validInput() CreateInput {
	return CreateInput{
		Capacity:  3,
		Arrival:   geo.Point{Lat: 52.52, Lon: 13.40},
		ArrivalAt: time.Date(2030, 1, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600)),
	}
}

func TestNew_NormalizesTimes(t *testing.T) {
	r, err := New(uuid.New(), validInput(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.UTC, r.ArrivalAt.Location())
	assert.Equal(t, 8, r.ArrivalAt.Hour())
}

func TestNew_Invalid(t *testing.T) {
	late := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"zero capacity", func(in *CreateInput) { in.Capacity = 0 }, "capacity"},
		{"arrival off the map", func(in *CreateInput) { in.Arrival.Lat = 120 }, "arrival"},
		{"missing arrival time", func(in *CreateInput) { in.ArrivalAt = time.Time{} }, "arrival_at"},
		{"departure after arrival", func(in *CreateInput) { in.DepartureAt = &late }, "departure_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := New(uuid.New(), in, time.Now())
			require.Error(t, err)
			assert.Equal(t, tt.field, apperrors.GetAppError(err).Field)
		})
	}
}

func TestApply(t *testing.T) {
	r, err := New(uuid.New(), validInput(), time.Now())
	require.NoError(t, err)
	plate := "B-CP 1"
	r.CarPlate = &plate
	r.ArrivalPlace = "place-1"

	capacity := 1
	to := geo.Point{Lat: 48.1, Lon: 11.6}
	require.NoError(t, r.Apply(UpdateInput{Capacity: &capacity, RemoveCar: true, Arrival: &to}, time.Now()))

	assert.Equal(t, 1, r.Capacity)
	assert.Nil(t, r.CarPlate)
	assert.Equal(t, to, r.Arrival)
	assert.Empty(t, r.ArrivalPlace, "place id is stale once the point moves")
}

func TestCompleted(t *testing.T) {
	r, err := New(uuid.New(), validInput(), time.Now())
	require.NoError(t, err)

	assert.False(t, r.Completed(r.ArrivalAt))
	assert.True(t, r.Completed(r.ArrivalAt.Add(time.Second)))
}

func TestClone_IsDeep(t *testing.T) {
	plate := "X"
	r := &Ride{CarPlate: &plate}
	c := r.Clone()
	*c.CarPlate = "Y"
	assert.Equal(t, "X", *r.CarPlate)
}

func TestNewCar(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	in := CarInput{Plate: " b-xy 123 ", Model: "Golf", Year: 2018, Fuel: FuelDiesel, Consumption: 5.2, PassengerPlaces: 4}

	c, err := NewCar(uuid.New(), in, now)
	require.NoError(t, err)
	assert.Equal(t, "B-XY 123", c.Plate)

	tests := []struct {
		name   string
		mutate func(*CarInput)
		field  string
	}{
		{"long plate", func(in *CarInput) { in.Plate = "ABCDEFGHIJKLMNOPQ" }, "plate"},
		{"future year", func(in *CarInput) { in.Year = 2025 }, "year"},
		{"old year", func(in *CarInput) { in.Year = 1899 }, "year"},
		{"fuel", func(in *CarInput) { in.Fuel = "steam" }, "fuel"},
		{"consumption", func(in *CarInput) { in.Consumption = -1 }, "consumption"},
		{"places", func(in *CarInput) { in.PassengerPlaces = 0 }, "passenger_places"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := in
			tt.mutate(&bad)
			_, err := NewCar(uuid.New(), bad, now)
			require.Error(t, err)
			assert.Equal(t, tt.field, apperrors.GetAppError(err).Field)
		})
	}
}
