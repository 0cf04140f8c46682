package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/store"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

func (q queries) CreateRide(ctx context.Context, r *ride.Ride) error {
	query := `INSERT INTO rides (id, driver_id, capacity, car_plate, departure_lat, departure_lon, departure_at,
			departure_place, arrival_lat, arrival_lon, arrival_at, arrival_place, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	if _, err := q.ext.ExecContext(ctx, query, rideArgs(r)...); err != nil {
		return translate(err, "create ride", nil)
	}
	return nil
}

func (q queries) GetRide(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	return q.getRide(ctx, `SELECT `+rideColumns+` FROM rides r WHERE r.id = $1`, id)
}

func (q queries) LockRide(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	return q.getRide(ctx, `SELECT `+rideColumns+` FROM rides r WHERE r.id = $1 FOR UPDATE`, id)
}

func (q queries) getRide(ctx context.Context, query string, id uuid.UUID) (*ride.Ride, error) {
	var row rideRow
	if err := sqlx.GetContext(ctx, q.ext, &row, query, id); err != nil {
		return nil, notFound(err, "get ride", apperrors.ErrRideNotFound)
	}
	return row.toDomain(), nil
}

func (q queries) UpdateRide(ctx context.Context, r *ride.Ride) error {
	args := rideArgs(r)
	// every column except driver_id and created_at, which never change
	return q.execOne(ctx, "update ride", apperrors.ErrRideNotFound, nil,
		`UPDATE rides SET
			capacity = $2, car_plate = $3, departure_lat = $4, departure_lon = $5, departure_at = $6,
			departure_place = $7, arrival_lat = $8, arrival_lon = $9, arrival_at = $10,
			arrival_place = $11, updated_at = $12
		WHERE id = $1`,
		append([]interface{}{args[0]}, append(args[2:12:12], args[13])...)...)
}

func (q queries) RidesByCar(ctx context.Context, plate string) ([]*ride.Ride, error) {
	var rows []rideRow
	err := sqlx.SelectContext(ctx, q.ext, &rows,
		`SELECT `+rideColumns+` FROM rides r WHERE r.car_plate = $1 ORDER BY r.created_at, r.id FOR UPDATE`, plate)
	if err != nil {
		return nil, fmt.Errorf("rides by car: %w", err)
	}

	out := make([]*ride.Ride, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// DeleteRide relies on ON DELETE CASCADE to drop the requests
func (q queries) DeleteRide(ctx context.Context, id uuid.UUID) error {
	return q.execOne(ctx, "delete ride", apperrors.ErrRideNotFound, nil,
		`DELETE FROM rides WHERE id = $1`, id)
}

// distanceSQL is the haversine distance in meters from column pair
// (lat, lon) to the point bound at placeholders $a, $b.
func distanceSQL(lat, lon string, a, b int) string {
	return fmt.Sprintf(`6371000 * 2 * ASIN(SQRT(LEAST(1,
		POWER(SIN(RADIANS(%[1]s - $%[3]d) / 2), 2) +
		COS(RADIANS($%[3]d)) * COS(RADIANS(%[1]s)) * POWER(SIN(RADIANS(%[2]s - $%[4]d) / 2), 2))))`,
		lat, lon, a, b)
}

// rideQuery accumulates WHERE clauses and their positional arguments
type rideQuery struct {
	where []string
	args  []interface{}
}

func (b *rideQuery) arg(v interface{}) int {
	b.args = append(b.args, v)
	return len(b.args)
}

func (b *rideQuery) add(clause string) {
	b.where = append(b.where, clause)
}

func buildSearch(f store.RideFilter) (string, []interface{}) {
	var b rideQuery

	if c := f.After; c != nil {
		b.add(fmt.Sprintf("(r.created_at, r.id) > ($%d, $%d)", b.arg(c.CreatedAt.UTC()), b.arg(c.ID)))
	}
	if f.ExcludeDriver != nil {
		b.add(fmt.Sprintf("r.driver_id <> $%d", b.arg(*f.ExcludeDriver)))
	}
	if c := f.Departure; c != nil {
		lat, lon := b.arg(c.Center.Lat), b.arg(c.Center.Lon)
		radius := b.arg(c.RadiusMeters)
		b.add(fmt.Sprintf("r.departure_lat IS NOT NULL AND %s <= $%d",
			distanceSQL("r.departure_lat", "r.departure_lon", lat, lon), radius))
	}
	if c := f.Arrival; c != nil {
		lat, lon := b.arg(c.Center.Lat), b.arg(c.Center.Lon)
		radius := b.arg(c.RadiusMeters)
		b.add(fmt.Sprintf("%s <= $%d", distanceSQL("r.arrival_lat", "r.arrival_lon", lat, lon), radius))
	}
	if w := f.DepartureWindow; w != nil {
		b.add(fmt.Sprintf("r.departure_at BETWEEN $%d AND $%d", b.arg(w.Start().UTC()), b.arg(w.End().UTC())))
	}
	if w := f.ArrivalWindow; w != nil {
		b.add(fmt.Sprintf("r.arrival_at BETWEEN $%d AND $%d", b.arg(w.Start().UTC()), b.arg(w.End().UTC())))
	}
	if f.ArrivingAfter != nil {
		b.add(fmt.Sprintf("r.arrival_at >= $%d", b.arg(f.ArrivingAfter.UTC())))
	}
	if f.DriverSex != nil {
		b.add(fmt.Sprintf("u.sex = $%d", b.arg(string(*f.DriverSex))))
	}
	if f.DriverAge.Active() {
		b.add("u.age IS NOT NULL")
		if min, ok := f.DriverAge.Min(); ok {
			b.add(fmt.Sprintf("u.age >= $%d", b.arg(min)))
		}
		if max, ok := f.DriverAge.Max(); ok {
			b.add(fmt.Sprintf("u.age <= $%d", b.arg(max)))
		}
	}
	if f.Consumption.Active() {
		b.add("c.plate IS NOT NULL")
		if min, ok := f.Consumption.Min(); ok {
			b.add(fmt.Sprintf("c.consumption >= $%d", b.arg(min)))
		}
		if max, ok := f.Consumption.Max(); ok {
			b.add(fmt.Sprintf("c.consumption <= $%d", b.arg(max)))
		}
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + rideColumns + `
		FROM rides r
		JOIN users u ON u.id = r.driver_id
		LEFT JOIN cars c ON c.plate = r.car_plate`)
	if len(b.where) > 0 {
		sb.WriteString("\n\t\tWHERE ")
		sb.WriteString(strings.Join(b.where, "\n\t\t  AND "))
	}
	sb.WriteString("\n\t\tORDER BY r.created_at, r.id")
	if f.Limit > 0 {
		fmt.Fprintf(&sb, "\n\t\tLIMIT $%d", b.arg(f.Limit))
	}
	return sb.String(), b.args
}

func (q queries) SearchRides(ctx context.Context, f store.RideFilter) ([]*ride.Ride, error) {
	query, args := buildSearch(f)

	var rows []rideRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("search rides: %w", err)
	}

	out := make([]*ride.Ride, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
