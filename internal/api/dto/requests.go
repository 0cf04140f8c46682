package dto

import (
	"time"

	"github.com/carwave/carpool/internal/domain/request"
	"github.com/carwave/carpool/internal/domain/review"
	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/domain/user"
	"github.com/carwave/carpool/internal/geo"
)

// PointRequest is a coordinate in a request body
type PointRequest struct {
	Lat float64 `json:"lat" binding:"gte=-90,lte=90"`
	Lon float64 `json:"lon" binding:"gte=-180,lte=180"`
}

func (p *PointRequest) point() *geo.Point {
	if p == nil {
		return nil
	}
	return &geo.Point{Lat: p.Lat, Lon: p.Lon}
}

// CreateUserRequest represents a registration
type CreateUserRequest struct {
	Username  string        `json:"username" binding:"required,max=64"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Email     *string       `json:"email" binding:"omitempty,email"`
	Age       *int          `json:"age"`
	Sex       *string       `json:"sex"`
	Home      *PointRequest `json:"home"`
}

// Input converts the request into the domain input
func (r CreateUserRequest) Input() (user.CreateInput, error) {
	sex, err := parseSex(r.Sex)
	if err != nil {
		return user.CreateInput{}, err
	}
	return user.CreateInput{
		Username:  r.Username,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Age:       r.Age,
		Sex:       sex,
		Home:      r.Home.point(),
	}, nil
}

// UpdateUserRequest represents a profile edit
type UpdateUserRequest struct {
	FirstName *string       `json:"first_name"`
	LastName  *string       `json:"last_name"`
	Email     *string       `json:"email" binding:"omitempty,email"`
	Age       *int          `json:"age"`
	Sex       *string       `json:"sex"`
	Home      *PointRequest `json:"home"`
}

// Input converts the request into the domain input
func (r UpdateUserRequest) Input() (user.UpdateInput, error) {
	sex, err := parseSex(r.Sex)
	if err != nil {
		return user.UpdateInput{}, err
	}
	return user.UpdateInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Age:       r.Age,
		Sex:       sex,
		Home:      r.Home.point(),
	}, nil
}

func parseSex(raw *string) (*user.Sex, error) {
	if raw == nil {
		return nil, nil
	}
	sex, err := user.ParseSex(*raw)
	if err != nil {
		return nil, err
	}
	return &sex, nil
}

// CreateCarRequest represents a car registration
type CreateCarRequest struct {
	Plate           string  `json:"plate" binding:"required"`
	Model           string  `json:"model"`
	Color           string  `json:"color"`
	Year            int     `json:"year" binding:"required"`
	Fuel            string  `json:"fuel" binding:"required"`
	Consumption     float64 `json:"consumption"`
	PassengerPlaces int     `json:"passenger_places" binding:"required"`
}

// Input converts the request into the domain input
func (r CreateCarRequest) Input() ride.CarInput {
	return ride.CarInput{
		Plate:           r.Plate,
		Model:           r.Model,
		Color:           r.Color,
		Year:            r.Year,
		Fuel:            ride.FuelType(r.Fuel),
		Consumption:     r.Consumption,
		PassengerPlaces: r.PassengerPlaces,
	}
}

// UpdateCarRequest represents a car edit
type UpdateCarRequest struct {
	Model           *string  `json:"model"`
	Color           *string  `json:"color"`
	Year            *int     `json:"year"`
	Fuel            *string  `json:"fuel"`
	Consumption     *float64 `json:"consumption"`
	PassengerPlaces *int     `json:"passenger_places"`
}

// Input converts the request into the domain input
func (r UpdateCarRequest) Input() ride.CarUpdate {
	in := ride.CarUpdate{
		Model:           r.Model,
		Color:           r.Color,
		Year:            r.Year,
		Consumption:     r.Consumption,
		PassengerPlaces: r.PassengerPlaces,
	}
	if r.Fuel != nil {
		fuel := ride.FuelType(*r.Fuel)
		in.Fuel = &fuel
	}
	return in
}

// CreateRideRequest represents a ride posting
type CreateRideRequest struct {
	Capacity    int           `json:"capacity" binding:"required"`
	CarPlate    *string       `json:"car_plate"`
	Departure   *PointRequest `json:"departure"`
	DepartureAt *time.Time    `json:"departure_at"`
	Arrival     *PointRequest `json:"arrival" binding:"required"`
	ArrivalAt   time.Time     `json:"arrival_at" binding:"required"`
}

// Input converts the request into the domain input
func (r CreateRideRequest) Input() ride.CreateInput {
	var arrival geo.Point
	if r.Arrival != nil {
		arrival = *r.Arrival.point()
	}
	return ride.CreateInput{
		Capacity:    r.Capacity,
		CarPlate:    r.CarPlate,
		Departure:   r.Departure.point(),
		DepartureAt: r.DepartureAt,
		Arrival:     arrival,
		ArrivalAt:   r.ArrivalAt,
	}
}

// UpdateRideRequest represents a ride edit
type UpdateRideRequest struct {
	Capacity    *int          `json:"capacity"`
	CarPlate    *string       `json:"car_plate"`
	RemoveCar   bool          `json:"remove_car"`
	Departure   *PointRequest `json:"departure"`
	DepartureAt *time.Time    `json:"departure_at"`
	Arrival     *PointRequest `json:"arrival"`
	ArrivalAt   *time.Time    `json:"arrival_at"`
}

// Input converts the request into the domain input
func (r UpdateRideRequest) Input() ride.UpdateInput {
	return ride.UpdateInput{
		Capacity:    r.Capacity,
		CarPlate:    r.CarPlate,
		RemoveCar:   r.RemoveCar,
		Departure:   r.Departure.point(),
		DepartureAt: r.DepartureAt,
		Arrival:     r.Arrival.point(),
		ArrivalAt:   r.ArrivalAt,
	}
}

// DecideRequest represents a driver's decision on a passenger request
type DecideRequest struct {
	Action string `json:"action" binding:"required"`
}

// ParseAction parses the action verb
func (r DecideRequest) ParseAction() (request.Action, error) {
	return request.ParseAction(r.Action)
}

// UpsertReviewRequest represents a review submission
type UpsertReviewRequest struct {
	Rating int      `json:"rating" binding:"required"`
	Body   string   `json:"body"`
	Tags   []string `json:"tags"`
}

// Input converts the request into the domain input
func (r UpsertReviewRequest) Input() review.UpsertInput {
	return review.UpsertInput{Rating: r.Rating, Body: r.Body, Tags: r.Tags}
}
