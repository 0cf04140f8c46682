package postgres

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/carwave/carpool/internal/domain/request"
	"github.com/carwave/carpool/internal/domain/review"
	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/domain/user"
	"github.com/carwave/carpool/internal/geo"
)

type userRow struct {
	ID           uuid.UUID       `db:"id"`
	Username     string          `db:"username"`
	PasswordHash string          `db:"password_hash"`
	FirstName    string          `db:"first_name"`
	LastName     string          `db:"last_name"`
	Email        sql.NullString  `db:"email"`
	Age          sql.NullInt64   `db:"age"`
	Sex          sql.NullString  `db:"sex"`
	HomeLat      sql.NullFloat64 `db:"home_lat"`
	HomeLon      sql.NullFloat64 `db:"home_lon"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

const userColumns = `id, username, password_hash, first_name, last_name, email, age, sex, home_lat, home_lon, created_at, updated_at`

func (r userRow) toDomain() *user.User {
	u := &user.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.Email.Valid {
		u.Email = &r.Email.String
	}
	if r.Age.Valid {
		age := int(r.Age.Int64)
		u.Age = &age
	}
	if r.Sex.Valid {
		sex := user.Sex(r.Sex.String)
		u.Sex = &sex
	}
	if r.HomeLat.Valid && r.HomeLon.Valid {
		u.Home = &geo.Point{Lat: r.HomeLat.Float64, Lon: r.HomeLon.Float64}
	}
	return u
}

func userArgs(u *user.User) []interface{} {
	var email, sex sql.NullString
	var age sql.NullInt64
	var lat, lon sql.NullFloat64
	if u.Email != nil {
		email = sql.NullString{String: *u.Email, Valid: true}
	}
	if u.Age != nil {
		age = sql.NullInt64{Int64: int64(*u.Age), Valid: true}
	}
	if u.Sex != nil {
		sex = sql.NullString{String: string(*u.Sex), Valid: true}
	}
	if u.Home != nil {
		lat = sql.NullFloat64{Float64: u.Home.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: u.Home.Lon, Valid: true}
	}
	return []interface{}{u.ID, u.Username, u.PasswordHash, u.FirstName, u.LastName,
		email, age, sex, lat, lon, u.CreatedAt, u.UpdatedAt}
}

type carRow struct {
	Plate           string    `db:"plate"`
	OwnerID         uuid.UUID `db:"owner_id"`
	Model           string    `db:"model"`
	Color           string    `db:"color"`
	Year            int       `db:"year"`
	Fuel            string    `db:"fuel"`
	Consumption     float64   `db:"consumption"`
	PassengerPlaces int       `db:"passenger_places"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

const carColumns = `plate, owner_id, model, color, year, fuel, consumption, passenger_places, created_at, updated_at`

func (r carRow) toDomain() *ride.Car {
	return &ride.Car{
		Plate:           r.Plate,
		OwnerID:         r.OwnerID,
		Model:           r.Model,
		Color:           r.Color,
		Year:            r.Year,
		Fuel:            ride.FuelType(r.Fuel),
		Consumption:     r.Consumption,
		PassengerPlaces: r.PassengerPlaces,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

type rideRow struct {
	ID             uuid.UUID       `db:"id"`
	DriverID       uuid.UUID       `db:"driver_id"`
	Capacity       int             `db:"capacity"`
	CarPlate       sql.NullString  `db:"car_plate"`
	DepartureLat   sql.NullFloat64 `db:"departure_lat"`
	DepartureLon   sql.NullFloat64 `db:"departure_lon"`
	DepartureAt    sql.NullTime    `db:"departure_at"`
	DeparturePlace string          `db:"departure_place"`
	ArrivalLat     float64         `db:"arrival_lat"`
	ArrivalLon     float64         `db:"arrival_lon"`
	ArrivalAt      time.Time       `db:"arrival_at"`
	ArrivalPlace   string          `db:"arrival_place"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

const rideColumns = `r.id, r.driver_id, r.capacity, r.car_plate, r.departure_lat, r.departure_lon, r.departure_at,
	r.departure_place, r.arrival_lat, r.arrival_lon, r.arrival_at, r.arrival_place, r.created_at, r.updated_at`

func (r rideRow) toDomain() *ride.Ride {
	out := &ride.Ride{
		ID:             r.ID,
		DriverID:       r.DriverID,
		Capacity:       r.Capacity,
		DeparturePlace: r.DeparturePlace,
		Arrival:        geo.Point{Lat: r.ArrivalLat, Lon: r.ArrivalLon},
		ArrivalAt:      r.ArrivalAt.UTC(),
		ArrivalPlace:   r.ArrivalPlace,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.CarPlate.Valid {
		out.CarPlate = &r.CarPlate.String
	}
	if r.DepartureLat.Valid && r.DepartureLon.Valid {
		out.Departure = &geo.Point{Lat: r.DepartureLat.Float64, Lon: r.DepartureLon.Float64}
	}
	if r.DepartureAt.Valid {
		t := r.DepartureAt.Time.UTC()
		out.DepartureAt = &t
	}
	return out
}

func rideArgs(r *ride.Ride) []interface{} {
	var plate sql.NullString
	var lat, lon sql.NullFloat64
	var departAt sql.NullTime
	if r.CarPlate != nil {
		plate = sql.NullString{String: *r.CarPlate, Valid: true}
	}
	if r.Departure != nil {
		lat = sql.NullFloat64{Float64: r.Departure.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: r.Departure.Lon, Valid: true}
	}
	if r.DepartureAt != nil {
		departAt = sql.NullTime{Time: *r.DepartureAt, Valid: true}
	}
	return []interface{}{r.ID, r.DriverID, r.Capacity, plate, lat, lon, departAt, r.DeparturePlace,
		r.Arrival.Lat, r.Arrival.Lon, r.ArrivalAt, r.ArrivalPlace, r.CreatedAt, r.UpdatedAt}
}

type requestRow struct {
	RideID       uuid.UUID `db:"ride_id"`
	RiderID      uuid.UUID `db:"rider_id"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	LastModified time.Time `db:"last_modified"`
}

const requestColumns = `ride_id, rider_id, status, created_at, last_modified`

func (r requestRow) toDomain() *request.Request {
	return &request.Request{
		RideID:       r.RideID,
		RiderID:      r.RiderID,
		Status:       request.Status(r.Status),
		CreatedAt:    r.CreatedAt.UTC(),
		LastModified: r.LastModified.UTC(),
	}
}

type reviewRow struct {
	AuthorID     uuid.UUID      `db:"author_id"`
	SubjectID    uuid.UUID      `db:"subject_id"`
	AsDriver     bool           `db:"as_driver"`
	Rating       int            `db:"rating"`
	Body         string         `db:"body"`
	Tags         pq.StringArray `db:"tags"`
	CreatedAt    time.Time      `db:"created_at"`
	LastModified time.Time      `db:"last_modified"`
}

const reviewColumns = `author_id, subject_id, as_driver, rating, body, tags, created_at, last_modified`

func (r reviewRow) toDomain() *review.Review {
	tags := []string(r.Tags)
	if tags == nil {
		tags = []string{}
	}
	return &review.Review{
		AuthorID:     r.AuthorID,
		SubjectID:    r.SubjectID,
		Role:         review.RoleOf(r.AsDriver),
		Rating:       r.Rating,
		Body:         r.Body,
		Tags:         tags,
		CreatedAt:    r.CreatedAt.UTC(),
		LastModified: r.LastModified.UTC(),
	}
}
