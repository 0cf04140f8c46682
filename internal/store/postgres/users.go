package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carwave/carpool/internal/domain/user"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

func (q queries) CreateUser(ctx context.Context, u *user.User) error {
	query := `INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := q.ext.ExecContext(ctx, query, userArgs(u)...); err != nil {
		return translate(err, "create user", apperrors.ErrDuplicateUser)
	}
	return nil
}

func (q queries) GetUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, q.ext, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "get user", apperrors.ErrUserNotFound)
	}
	return row.toDomain(), nil
}

func (q queries) UpdateUser(ctx context.Context, u *user.User) error {
	args := userArgs(u)
	return q.execOne(ctx, "update user", apperrors.ErrUserNotFound, apperrors.ErrDuplicateUser,
		`UPDATE users SET
			username = $2, password_hash = $3, first_name = $4, last_name = $5, email = $6,
			age = $7, sex = $8, home_lat = $9, home_lon = $10, updated_at = $11
		WHERE id = $1`,
		append(args[:10:10], u.UpdatedAt)...)
}

func (q queries) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return q.execOne(ctx, "delete user", apperrors.ErrUserNotFound, nil,
		`DELETE FROM users WHERE id = $1`, id)
}
