package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carwave/carpool/internal/domain/request"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

func (q queries) CreateRequest(ctx context.Context, r *request.Request) error {
	query := `INSERT INTO passenger_requests (` + requestColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err := q.ext.ExecContext(ctx, query, r.RideID, r.RiderID, string(r.Status), r.CreatedAt, r.LastModified)
	if err != nil {
		return translate(err, "create request", apperrors.ErrDuplicateRequest)
	}
	return nil
}

func (q queries) GetRequest(ctx context.Context, rideID, riderID uuid.UUID) (*request.Request, error) {
	var row requestRow
	err := sqlx.GetContext(ctx, q.ext, &row,
		`SELECT `+requestColumns+` FROM passenger_requests WHERE ride_id = $1 AND rider_id = $2`,
		rideID, riderID)
	if err != nil {
		return nil, notFound(err, "get request", apperrors.ErrRequestNotFound)
	}
	return row.toDomain(), nil
}

func (q queries) UpdateRequest(ctx context.Context, r *request.Request) error {
	return q.execOne(ctx, "update request", apperrors.ErrRequestNotFound, nil,
		`UPDATE passenger_requests SET status = $3, last_modified = $4 WHERE ride_id = $1 AND rider_id = $2`,
		r.RideID, r.RiderID, string(r.Status), r.LastModified)
}

func (q queries) DeleteRequest(ctx context.Context, rideID, riderID uuid.UUID) error {
	return q.execOne(ctx, "delete request", apperrors.ErrRequestNotFound, nil,
		`DELETE FROM passenger_requests WHERE ride_id = $1 AND rider_id = $2`, rideID, riderID)
}

func (q queries) ListRequests(ctx context.Context, rideID uuid.UUID, status *request.Status) ([]*request.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM passenger_requests WHERE ride_id = $1`
	args := []interface{}{rideID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at, rider_id`

	var rows []requestRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	out := make([]*request.Request, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (q queries) CountAccepted(ctx context.Context, rideID uuid.UUID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q.ext, &n,
		`SELECT COUNT(*) FROM passenger_requests WHERE ride_id = $1 AND status = 'accepted'`, rideID)
	if err != nil {
		return 0, fmt.Errorf("count accepted: %w", err)
	}
	return n, nil
}
