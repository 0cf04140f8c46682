package ride

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/carwave/carpool/pkg/errors"
)

// FuelType represents the car's fuel
type FuelType string

const (
	FuelGasoline FuelType = "gasoline"
	FuelDiesel   FuelType = "diesel"
	FuelElectric FuelType = "electric"
)

// IsValid validates the fuel type
func (f FuelType) IsValid() bool {
	switch f {
	case FuelGasoline, FuelDiesel, FuelElectric:
		return true
	}
	return false
}

const (
	maxPlateLength = 16
	minBuildYear   = 1900
)

// Car is identified by its license plate and owned by one user
type Car struct {
	Plate           string    `json:"plate"`
	OwnerID         uuid.UUID `json:"owner_id"`
	Model           string    `json:"model"`
	Color           string    `json:"color"`
	Year            int       `json:"year"`
	Fuel            FuelType  `json:"fuel"`
	Consumption     float64   `json:"consumption"`
	PassengerPlaces int       `json:"passenger_places"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CarInput holds the fields of a car registration
type CarInput struct {
	Plate           string
	Model           string
	Color           string
	Year            int
	Fuel            FuelType
	Consumption     float64
	PassengerPlaces int
}

// CarUpdate holds a car edit; nil fields stay unchanged
type CarUpdate struct {
	Model           *string
	Color           *string
	Year            *int
	Fuel            *FuelType
	Consumption     *float64
	PassengerPlaces *int
}

// NormalizePlate upper-cases and trims a license plate
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// NewCar validates in and builds a car owned by ownerID
func NewCar(ownerID uuid.UUID, in CarInput, now time.Time) (*Car, error) {
	c := &Car{
		Plate:           NormalizePlate(in.Plate),
		OwnerID:         ownerID,
		Model:           strings.TrimSpace(in.Model),
		Color:           strings.TrimSpace(in.Color),
		Year:            in.Year,
		Fuel:            in.Fuel,
		Consumption:     in.Consumption,
		PassengerPlaces: in.PassengerPlaces,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := c.Validate(now); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply copies the set fields of in onto c and revalidates
func (c *Car) Apply(in CarUpdate, now time.Time) error {
	if in.Model != nil {
		c.Model = strings.TrimSpace(*in.Model)
	}
	if in.Color != nil {
		c.Color = strings.TrimSpace(*in.Color)
	}
	if in.Year != nil {
		c.Year = *in.Year
	}
	if in.Fuel != nil {
		c.Fuel = *in.Fuel
	}
	if in.Consumption != nil {
		c.Consumption = *in.Consumption
	}
	if in.PassengerPlaces != nil {
		c.PassengerPlaces = *in.PassengerPlaces
	}
	c.UpdatedAt = now
	return c.Validate(now)
}

// Validate checks the car fields against now for the build year
func (c *Car) Validate(now time.Time) error {
	if c.Plate == "" || len(c.Plate) > maxPlateLength {
		return apperrors.Validation("plate", "license plate must be 1-16 characters")
	}
	if c.Year < minBuildYear || c.Year > now.Year() {
		return apperrors.Validation("year", "build year out of range")
	}
	if !c.Fuel.IsValid() {
		return apperrors.Validation("fuel", "fuel must be gasoline, diesel or electric")
	}
	if c.Consumption < 0 {
		return apperrors.Validation("consumption", "consumption must not be negative")
	}
	if c.PassengerPlaces < 1 {
		return apperrors.Validation("passenger_places", "a car needs at least one passenger place")
	}
	return nil
}
