package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/carwave/carpool/internal/domain/ride"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

func (q queries) CreateCar(ctx context.Context, c *ride.Car) error {
	query := `INSERT INTO cars (` + carColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := q.ext.ExecContext(ctx, query,
		c.Plate, c.OwnerID, c.Model, c.Color, c.Year, string(c.Fuel),
		c.Consumption, c.PassengerPlaces, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return translate(err, "create car", apperrors.ErrDuplicateCar)
	}
	return nil
}

func (q queries) GetCar(ctx context.Context, plate string) (*ride.Car, error) {
	var row carRow
	err := sqlx.GetContext(ctx, q.ext, &row, `SELECT `+carColumns+` FROM cars WHERE plate = $1`, plate)
	if err != nil {
		return nil, notFound(err, "get car", apperrors.ErrCarNotFound)
	}
	return row.toDomain(), nil
}

func (q queries) UpdateCar(ctx context.Context, c *ride.Car) error {
	return q.execOne(ctx, "update car", apperrors.ErrCarNotFound, nil,
		`UPDATE cars SET
			model = $2, color = $3, year = $4, fuel = $5, consumption = $6,
			passenger_places = $7, updated_at = $8
		WHERE plate = $1`,
		c.Plate, c.Model, c.Color, c.Year, string(c.Fuel), c.Consumption, c.PassengerPlaces, c.UpdatedAt)
}

// DeleteCar relies on ON DELETE SET NULL to detach rides
func (q queries) DeleteCar(ctx context.Context, plate string) error {
	return q.execOne(ctx, "delete car", apperrors.ErrCarNotFound, nil,
		`DELETE FROM cars WHERE plate = $1`, plate)
}
