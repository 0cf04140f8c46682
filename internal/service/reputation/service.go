package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/carwave/carpool/internal/domain/review"
	"github.com/carwave/carpool/internal/observability"
	"github.com/carwave/carpool/internal/store"
	"github.com/carwave/carpool/pkg/cache"
	apperrors "github.com/carwave/carpool/pkg/errors"
	"github.com/carwave/carpool/pkg/logger"
	"github.com/carwave/carpool/pkg/monitoring"
)

// Config holds reputation configuration
type Config struct {
	Rules       review.Rules
	TopTagCount int
	CacheTTL    time.Duration
	MaxTagHints int
}

// Service aggregates ratings and tags and guards review writes
type Service struct {
	store  store.Store
	redis  redis.Cmdable
	logger *logger.Logger
	nr     *monitoring.NewRelicApp
	config Config
	now    func() time.Time
}

// NewService creates a new reputation service. redisClient may be nil,
// which disables caching.
func NewService(st store.Store, redisClient redis.Cmdable, logger_ *logger.Logger, nr *monitoring.NewRelicApp, config Config) *Service {
	if config.TopTagCount <= 0 {
		config.TopTagCount = 5
	}
	if config.MaxTagHints <= 0 {
		config.MaxTagHints = 10
	}
	if config.Rules.MaxTags <= 0 {
		config.Rules = review.DefaultRules
	}
	return &Service{
		store:  st,
		redis:  redisClient,
		logger: logger.Component(logger_, "reputation"),
		nr:     nr,
		config: config,
		now:    time.Now,
	}
}

// epochKey is bumped when a user is deleted, which may remove reviews of
// any number of subjects.
const epochKey = "reputation:epoch"

func generationKey(userID uuid.UUID, role review.Role) string {
	return fmt.Sprintf("reputation:gen:%s:%s", userID, role)
}

// summaryKey names the cache entry for the current epoch and generation of
// (userID, role). Bumping either retires older entries, including ones
// written late by a reader that raced an invalidation.
func (s *Service) summaryKey(ctx context.Context, userID uuid.UUID, role review.Role) (string, error) {
	vals, err := s.redis.MGet(ctx, epochKey, generationKey(userID, role)).Result()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("reputation:%s:%s:%s.%s", userID, role, counter(vals[0]), counter(vals[1])), nil
}

func counter(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "0"
}

// Summary returns the average rating, review count and top tags of userID
// in role. Average is nil when there are no reviews.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID, role review.Role) (review.Summary, error) {
	var key string
	if s.redis != nil {
		var err error
		if key, err = s.summaryKey(ctx, userID, role); err != nil {
			s.logger.Warn("reputation cache unavailable", logger.UserID(userID), logger.Err(err))
		}
	}
	if key != "" {
		var cached review.Summary
		found, err := cache.GetJSON(ctx, s.redis, key, &cached)
		if err != nil {
			s.logger.Warn("reputation cache read failed", logger.String("key", key), logger.Err(err))
		}
		if found {
			observability.ReputationCache.WithLabelValues("hit").Inc()
			return cached, nil
		}
		observability.ReputationCache.WithLabelValues("miss").Inc()
	}

	stats, err := s.store.RatingStats(ctx, userID, role)
	if err != nil {
		return review.Summary{}, s.storageError("rating stats", err)
	}
	tags, err := s.store.TopTags(ctx, userID, role, s.config.TopTagCount)
	if err != nil {
		return review.Summary{}, s.storageError("top tags", err)
	}

	summary := review.Summary{UserID: userID, Role: role, Count: stats.Count, TopTags: tagNames(tags)}
	if stats.Count > 0 {
		avg := stats.Average
		summary.Average = &avg
	}

	if key != "" {
		if _, err := cache.SetJSONIfAbsent(ctx, s.redis, key, summary, s.config.CacheTTL); err != nil {
			s.logger.Warn("reputation cache write failed", logger.String("key", key), logger.Err(err))
		}
	}
	return summary, nil
}

// AverageRating returns the mean rating of userID in role, or nil if the
// user has not been reviewed in that role.
func (s *Service) AverageRating(ctx context.Context, userID uuid.UUID, role review.Role) (*float64, error) {
	summary, err := s.Summary(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	return summary.Average, nil
}

// TopTags returns the n most frequent tags userID received in role,
// ties broken by tag text.
func (s *Service) TopTags(ctx context.Context, userID uuid.UUID, role review.Role, n int) ([]string, error) {
	if n <= 0 {
		return nil, apperrors.Validation("n", "n must be positive")
	}
	if n <= s.config.TopTagCount {
		summary, err := s.Summary(ctx, userID, role)
		if err != nil {
			return nil, err
		}
		if len(summary.TopTags) > n {
			return summary.TopTags[:n], nil
		}
		return summary.TopTags, nil
	}

	tags, err := s.store.TopTags(ctx, userID, role, n)
	if err != nil {
		return nil, s.storageError("top tags", err)
	}
	return tagNames(tags), nil
}

// MayReview reports whether author may review subject in role. That needs
// a completed ride on which the two actually travelled together through
// accepted requests: subject driving and author riding for RoleDriver;
// for RolePassenger subject riding and author either driving or riding too.
func (s *Service) MayReview(ctx context.Context, author, subject uuid.UUID, role review.Role) (bool, error) {
	if author == subject {
		return false, nil
	}
	ok, err := s.store.SharedTrip(ctx, author, subject, role, s.now())
	if err != nil {
		return false, s.storageError("shared trip", err)
	}
	return ok, nil
}

// UpsertReview creates or replaces author's review of subject in role.
// created reports whether a new review was written.
func (s *Service) UpsertReview(ctx context.Context, author, subject uuid.UUID, role review.Role, in review.UpsertInput) (rv *review.Review, created bool, err error) {
	if author == subject {
		return nil, false, apperrors.Validation("subject", "users cannot review themselves")
	}
	in, err = s.config.Rules.Normalize(in)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	err = s.store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		if _, err := q.GetUser(ctx, subject); err != nil {
			return err
		}
		ok, err := q.SharedTrip(ctx, author, subject, role, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.ErrReviewNotAllowed
		}

		existing, err := q.GetReview(ctx, author, subject, role)
		switch {
		case errors.Is(err, apperrors.ErrReviewNotFound):
			rv, err = review.New(author, subject, role, in, now)
			if err != nil {
				return err
			}
			created = true
			return q.CreateReview(ctx, rv)
		case err != nil:
			return err
		}

		existing.Replace(in, now)
		rv = existing
		return q.UpdateReview(ctx, rv)
	})
	if err != nil {
		s.logger.Warn("review rejected",
			logger.ID("author_id", author),
			logger.ID("subject_id", subject),
			logger.String("role", string(role)),
			logger.Err(err))
		return nil, false, s.storageError("upsert review", err)
	}

	op := "update"
	if created {
		op = "create"
	}
	observability.ReviewsUpserted.WithLabelValues(op).Inc()
	s.nr.RecordReviewUpserted(string(role), rv.Rating, created)
	s.invalidate(ctx, subject, role)

	s.logger.Info("review saved",
		logger.ID("author_id", author),
		logger.ID("subject_id", subject),
		logger.String("role", string(role)),
		logger.Bool("created", created))
	return rv, created, nil
}

// SuggestTags lists known tags starting with prefix
func (s *Service) SuggestTags(ctx context.Context, prefix string) ([]string, error) {
	tags, err := s.store.SearchTags(ctx, prefix, s.config.MaxTagHints)
	if err != nil {
		return nil, s.storageError("search tags", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID, role review.Role) {
	if s.redis == nil {
		return
	}
	key := generationKey(userID, role)
	if err := s.redis.Incr(ctx, key).Err(); err != nil {
		s.logger.Warn("reputation cache invalidation failed", logger.String("key", key), logger.Err(err))
		return
	}
	// outlives every entry written under the previous generation
	if s.config.CacheTTL > 0 {
		if err := s.redis.Expire(ctx, key, 2*s.config.CacheTTL).Err(); err != nil {
			s.logger.Warn("reputation cache invalidation failed", logger.String("key", key), logger.Err(err))
		}
	}
}

// ForgetUser retires every cached summary after userID was deleted along
// with the reviews it wrote and received.
func (s *Service) ForgetUser(ctx context.Context, userID uuid.UUID) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Incr(ctx, epochKey).Err(); err != nil {
		s.logger.Warn("reputation cache invalidation failed", logger.UserID(userID), logger.Err(err))
	}
}

func (s *Service) storageError(op string, err error) error {
	if !apperrors.IsAppError(err) {
		s.logger.Error("storage failure", logger.String("op", op), logger.Err(err))
	}
	return apperrors.Storage(err)
}

func tagNames(tags []store.TagCount) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Tag
	}
	return out
}
