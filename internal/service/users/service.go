// Package users manages accounts: the drivers and riders the rest of the
// engine refers to.
package users

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carwave/carpool/internal/domain/user"
	"github.com/carwave/carpool/internal/geo"
	"github.com/carwave/carpool/internal/store"
	apperrors "github.com/carwave/carpool/pkg/errors"
	"github.com/carwave/carpool/pkg/logger"
)

// ReputationCache drops cached reputation that a deletion made stale
type ReputationCache interface {
	ForgetUser(ctx context.Context, userID uuid.UUID)
}

// Service handles user accounts
type Service struct {
	store      store.Store
	reputation ReputationCache
	logger     *logger.Logger
	now        func() time.Time
}

// NewService creates a new user service. reputation may be nil.
func NewService(st store.Store, reputation ReputationCache, logger_ *logger.Logger) *Service {
	return &Service{store: st, reputation: reputation, logger: logger.Component(logger_, "users"), now: time.Now}
}

// Create registers a user. Usernames are unique.
func (s *Service) Create(ctx context.Context, in user.CreateInput) (*user.User, error) {
	u, err := user.New(in, geo.Normalize(s.now()))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, s.fail("create user", err)
	}
	s.logger.Info("user created", logger.UserID(u.ID))
	return u, nil
}

// Get returns one user
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, s.fail("get user", err)
	}
	return u, nil
}

// Update edits actor's own profile
func (s *Service) Update(ctx context.Context, actor, id uuid.UUID, in user.UpdateInput) (*user.User, error) {
	if actor != id {
		return nil, apperrors.Forbidden("Users can only edit their own profile", nil)
	}

	var updated *user.User
	err := s.store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		u, err := q.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if err := u.Apply(in, geo.Normalize(s.now())); err != nil {
			return err
		}
		updated = u
		return q.UpdateUser(ctx, u)
	})
	if err != nil {
		return nil, s.fail("update user", err)
	}
	return updated, nil
}

// Delete removes actor's own account with its cars, rides, requests and
// reviews
func (s *Service) Delete(ctx context.Context, actor, id uuid.UUID) error {
	if actor != id {
		return apperrors.Forbidden("Users can only delete their own account", nil)
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return s.fail("delete user", err)
	}
	if s.reputation != nil {
		s.reputation.ForgetUser(ctx, id)
	}
	s.logger.Info("user deleted", logger.UserID(id))
	return nil
}

func (s *Service) fail(op string, err error) error {
	if !apperrors.IsAppError(err) {
		s.logger.Error("storage failure", logger.String("op", op), logger.Err(err))
	}
	return apperrors.Storage(err)
}
