// Package requests implements the passenger request lifecycle:
// pending requests are accepted or rejected by the driver, never beyond
// the ride's capacity.
package requests

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carwave/carpool/internal/domain/request"
	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/geo"
	"github.com/carwave/carpool/internal/observability"
	"github.com/carwave/carpool/internal/store"
	apperrors "github.com/carwave/carpool/pkg/errors"
	"github.com/carwave/carpool/pkg/logger"
	"github.com/carwave/carpool/pkg/monitoring"
	"github.com/carwave/carpool/pkg/websocket"
)

// Notice types pushed to users
const (
	NoticeCreated   = "request.created"
	NoticeAccepted  = "request.accepted"
	NoticeRejected  = "request.rejected"
	NoticeWithdrawn = "request.withdrawn"
)

const (
	transitionCreate   = "create"
	transitionWithdraw = "withdraw"
)

// Notifier delivers lifecycle notices to connected users
type Notifier interface {
	SendToUser(userID string, message websocket.Message)
}

type nopNotifier struct{}

func (nopNotifier) SendToUser(string, websocket.Message) {}

// Service runs passenger request transitions
type Service struct {
	store    store.Store
	notifier Notifier
	logger   *logger.Logger
	nr       *monitoring.NewRelicApp
	now      func() time.Time
}

// NewService creates a new request service. notifier may be nil.
func NewService(st store.Store, notifier Notifier, logger_ *logger.Logger, nr *monitoring.NewRelicApp) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		store:    st,
		notifier: notifier,
		logger:   logger.Component(logger_, "requests"),
		nr:       nr,
		now:      time.Now,
	}
}

// Create files a pending request by rider for rideID. A rider gets one
// request per ride whatever became of an earlier one.
func (s *Service) Create(ctx context.Context, rider, rideID uuid.UUID) (req *request.Request, err error) {
	defer s.observe(transitionCreate, rideID, rider, &req, &err)

	var driverID uuid.UUID
	err = s.store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		r, err := q.GetRide(ctx, rideID)
		if err != nil {
			return err
		}
		if r.DriverID == rider {
			return apperrors.ErrOwnRide
		}
		driverID = r.DriverID

		req = request.New(rideID, rider, geo.Normalize(s.now()))
		return q.CreateRequest(ctx, req)
	})
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	s.notifier.SendToUser(driverID.String(), websocket.Message{Type: NoticeCreated, Data: req})
	return req, nil
}

// Decide accepts or rejects the pending request of rider on rideID.
// Only the ride's driver may decide. An accept that would exceed the
// ride's capacity fails with ErrRideFull and leaves the request pending.
func (s *Service) Decide(ctx context.Context, actor, rideID, rider uuid.UUID, action request.Action) (req *request.Request, err error) {
	transition := string(action)
	if action != request.ActionAccept && action != request.ActionReject {
		transition = "invalid"
	}
	defer s.observe(transition, rideID, rider, &req, &err)

	err = s.store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		// the row lock serializes deciders of one ride
		r, err := q.LockRide(ctx, rideID)
		if err != nil {
			return err
		}
		if r.DriverID != actor {
			return apperrors.ErrNotRideDriver
		}

		current, err := q.GetRequest(ctx, rideID, rider)
		if err != nil {
			return err
		}
		next := *current
		if err := next.Decide(action, geo.Normalize(s.now())); err != nil {
			return err
		}

		if next.Status == request.StatusAccepted {
			if err := ensureSeat(ctx, q, r); err != nil {
				return err
			}
		}

		if err := q.UpdateRequest(ctx, &next); err != nil {
			return err
		}
		req = &next
		return nil
	})
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	notice := NoticeRejected
	if req.Status == request.StatusAccepted {
		notice = NoticeAccepted
	}
	s.notifier.SendToUser(rider.String(), websocket.Message{Type: notice, Data: req})
	return req, nil
}

func ensureSeat(ctx context.Context, q store.Queries, r *ride.Ride) error {
	accepted, err := q.CountAccepted(ctx, r.ID)
	if err != nil {
		return err
	}
	if accepted >= r.Capacity {
		return apperrors.ErrRideFull
	}
	return nil
}

// Withdraw deletes rider's own request while it is still pending
func (s *Service) Withdraw(ctx context.Context, actor, rideID, rider uuid.UUID) (err error) {
	var withdrawn *request.Request
	defer s.observe(transitionWithdraw, rideID, rider, &withdrawn, &err)

	if actor != rider {
		return apperrors.ErrNotRequestRider
	}

	var driverID uuid.UUID
	err = s.store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		r, err := q.GetRide(ctx, rideID)
		if err != nil {
			return err
		}
		driverID = r.DriverID

		req, err := q.GetRequest(ctx, rideID, rider)
		if err != nil {
			return err
		}
		if !req.CanWithdraw() {
			return apperrors.ErrRequestDecided
		}
		withdrawn = req
		return q.DeleteRequest(ctx, rideID, rider)
	})
	if err != nil {
		return apperrors.Storage(err)
	}

	s.notifier.SendToUser(driverID.String(), websocket.Message{Type: NoticeWithdrawn, Data: withdrawn})
	return nil
}

// List returns the requests of rideID oldest first. The driver sees every
// request, optionally narrowed to status; anyone else sees the accepted
// passengers only.
func (s *Service) List(ctx context.Context, actor *uuid.UUID, rideID uuid.UUID, status *request.Status) ([]*request.Request, error) {
	r, err := s.store.GetRide(ctx, rideID)
	if err != nil {
		return nil, s.storageError("get ride", err)
	}

	if status != nil && !status.IsValid() {
		return nil, apperrors.Validation("status", "unknown request status")
	}
	if actor == nil || *actor != r.DriverID {
		accepted := request.StatusAccepted
		status = &accepted
	}

	reqs, err := s.store.ListRequests(ctx, rideID, status)
	if err != nil {
		return nil, s.storageError("list requests", err)
	}
	if reqs == nil {
		reqs = []*request.Request{}
	}
	return reqs, nil
}

// Passengers lists the accepted requests of rideID
func (s *Service) Passengers(ctx context.Context, rideID uuid.UUID) ([]*request.Request, error) {
	return s.List(ctx, nil, rideID, nil)
}

func (s *Service) observe(transition string, rideID, rider uuid.UUID, req **request.Request, err *error) {
	outcome := observability.Outcome(*err)
	observability.RequestTransitions.WithLabelValues(transition, outcome).Inc()

	fields := []logger.Field{
		logger.String("transition", transition),
		logger.RideID(rideID),
		logger.ID("rider_id", rider),
	}
	switch outcome {
	case observability.OutcomeOK:
		status := ""
		if *req != nil {
			status = string((*req).Status)
		}
		s.logger.Info("passenger request transition", append(fields, logger.String("status", status))...)
		s.nr.RecordRequestTransition(rideID.String(), rider.String(), transition, status)
	case observability.OutcomeRejected:
		s.logger.Warn("passenger request transition rejected", append(fields, logger.Err(*err))...)
	default:
		s.logger.Error("passenger request transition failed", append(fields, logger.Err(*err))...)
	}
}

func (s *Service) storageError(op string, err error) error {
	if !apperrors.IsAppError(err) {
		s.logger.Error("storage failure", logger.String("op", op), logger.Err(err))
	}
	return apperrors.Storage(err)
}
