package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/carwave/carpool/internal/domain/review"
	"github.com/carwave/carpool/internal/store"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

func (q queries) GetReview(ctx context.Context, author, subject uuid.UUID, role review.Role) (*review.Review, error) {
	var row reviewRow
	err := sqlx.GetContext(ctx, q.ext, &row,
		`SELECT `+reviewColumns+` FROM reviews WHERE author_id = $1 AND subject_id = $2 AND as_driver = $3`,
		author, subject, role.AsDriver())
	if err != nil {
		return nil, notFound(err, "get review", apperrors.ErrReviewNotFound)
	}
	return row.toDomain(), nil
}

func (q queries) CreateReview(ctx context.Context, rv *review.Review) error {
	query := `INSERT INTO reviews (` + reviewColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := q.ext.ExecContext(ctx, query,
		rv.AuthorID, rv.SubjectID, rv.Role.AsDriver(), rv.Rating, rv.Body,
		pq.Array(rv.Tags), rv.CreatedAt, rv.LastModified)
	if err != nil {
		return translate(err, "create review", apperrors.ErrDuplicateReview)
	}
	return nil
}

func (q queries) UpdateReview(ctx context.Context, rv *review.Review) error {
	return q.execOne(ctx, "update review", apperrors.ErrReviewNotFound, nil,
		`UPDATE reviews SET rating = $4, body = $5, tags = $6, last_modified = $7
		WHERE author_id = $1 AND subject_id = $2 AND as_driver = $3`,
		rv.AuthorID, rv.SubjectID, rv.Role.AsDriver(), rv.Rating, rv.Body, pq.Array(rv.Tags), rv.LastModified)
}

func (q queries) RatingStats(ctx context.Context, subject uuid.UUID, role review.Role) (store.RatingStats, error) {
	var row struct {
		Average float64 `db:"average"`
		Count   int     `db:"count"`
	}
	err := sqlx.GetContext(ctx, q.ext, &row,
		`SELECT COALESCE(AVG(rating), 0)::float8 AS average, COUNT(*) AS count
		FROM reviews WHERE subject_id = $1 AND as_driver = $2`,
		subject, role.AsDriver())
	if err != nil {
		return store.RatingStats{}, fmt.Errorf("rating stats: %w", err)
	}
	return store.RatingStats{Average: row.Average, Count: row.Count}, nil
}

func (q queries) TopTags(ctx context.Context, subject uuid.UUID, role review.Role, n int) ([]store.TagCount, error) {
	out := []store.TagCount{}
	err := sqlx.SelectContext(ctx, q.ext, &out,
		`SELECT t.tag, COUNT(*) AS n
		FROM reviews rv CROSS JOIN LATERAL unnest(rv.tags) AS t(tag)
		WHERE rv.subject_id = $1 AND rv.as_driver = $2
		GROUP BY t.tag
		ORDER BY n DESC, t.tag COLLATE "C"
		LIMIT $3`,
		subject, role.AsDriver(), limitArg(n))
	if err != nil {
		return nil, fmt.Errorf("top tags: %w", err)
	}
	return out, nil
}

// sharedDriverTrip: subject drove a completed ride author was accepted on
const sharedDriverTrip = `SELECT EXISTS (
	SELECT 1 FROM rides r
	JOIN passenger_requests pr ON pr.ride_id = r.id
	WHERE r.driver_id = $2 AND pr.rider_id = $1 AND pr.status = 'accepted' AND r.arrival_at < $3)`

// sharedPassengerTrip: subject was accepted on a completed ride that author
// either drove or was accepted on as well
const sharedPassengerTrip = `SELECT EXISTS (
	SELECT 1 FROM rides r
	JOIN passenger_requests pr ON pr.ride_id = r.id
	WHERE pr.rider_id = $2 AND pr.status = 'accepted' AND r.arrival_at < $3
	  AND (r.driver_id = $1 OR EXISTS (
		SELECT 1 FROM passenger_requests co
		WHERE co.ride_id = r.id AND co.rider_id = $1 AND co.status = 'accepted')))`

func (q queries) SharedTrip(ctx context.Context, author, subject uuid.UUID, role review.Role, now time.Time) (bool, error) {
	query := sharedPassengerTrip
	if role.AsDriver() {
		query = sharedDriverTrip
	}
	var ok bool
	if err := sqlx.GetContext(ctx, q.ext, &ok, query, author, subject, now.UTC()); err != nil {
		return false, fmt.Errorf("shared trip: %w", err)
	}
	return ok, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (q queries) SearchTags(ctx context.Context, prefix string, limit int) ([]string, error) {
	out := []string{}
	err := sqlx.SelectContext(ctx, q.ext, &out,
		`SELECT t.tag
		FROM reviews rv CROSS JOIN LATERAL unnest(rv.tags) AS t(tag)
		WHERE t.tag ILIKE $1 ESCAPE '\'
		GROUP BY t.tag
		ORDER BY t.tag COLLATE "C"
		LIMIT $2`,
		likeEscaper.Replace(prefix)+"%", limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("search tags: %w", err)
	}
	return out, nil
}
