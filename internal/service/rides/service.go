// Package rides manages ride postings and the cars they use.
package rides

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carwave/carpool/internal/domain/request"
	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/geo"
	"github.com/carwave/carpool/internal/geocode"
	"github.com/carwave/carpool/internal/store"
	apperrors "github.com/carwave/carpool/pkg/errors"
	"github.com/carwave/carpool/pkg/logger"
	"github.com/carwave/carpool/pkg/monitoring"
	"github.com/carwave/carpool/pkg/websocket"
)

// Notice types pushed to users
const (
	NoticeUpdated   = "ride.updated"
	NoticeCancelled = "ride.cancelled"
)

// Notifier delivers ride notices to connected users
type Notifier interface {
	SendToUser(userID string, message websocket.Message)
	BroadcastToRide(rideID string, message websocket.Message)
}

type nopNotifier struct{}

func (nopNotifier) SendToUser(string, websocket.Message)      {}
func (nopNotifier) BroadcastToRide(string, websocket.Message) {}

// Service handles ride and car mutations
type Service struct {
	store    store.Store
	geocoder geocode.Geocoder
	notifier Notifier
	logger   *logger.Logger
	nr       *monitoring.NewRelicApp
	now      func() time.Time
}

// NewService creates a new ride service. geocoder and notifier may be nil.
func NewService(st store.Store, geocoder geocode.Geocoder, notifier Notifier, logger_ *logger.Logger, nr *monitoring.NewRelicApp) *Service {
	if geocoder == nil {
		geocoder = geocode.Disabled{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		store:    st,
		geocoder: geocoder,
		notifier: notifier,
		logger:   logger.Component(logger_, "rides"),
		nr:       nr,
		now:      time.Now,
	}
}

// CreateRide posts a ride driven by driver
func (s *Service) CreateRide(ctx context.Context, driver uuid.UUID, in ride.CreateInput) (*ride.Ride, error) {
	if in.CarPlate != nil {
		plate := ride.NormalizePlate(*in.CarPlate)
		in.CarPlate = &plate
	}
	r, err := ride.New(driver, in, geo.Normalize(s.now()))
	if err != nil {
		return nil, err
	}
	s.resolvePlaces(ctx, r)

	err = s.store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		if _, err := q.GetUser(ctx, driver); err != nil {
			return err
		}
		if err := checkCar(ctx, q, r); err != nil {
			return err
		}
		return q.CreateRide(ctx, r)
	})
	if err != nil {
		return nil, s.fail("create ride", err)
	}

	s.logger.Info("ride created",
		logger.RideID(r.ID),
		logger.ID("driver_id", driver),
		logger.Int("capacity", r.Capacity))
	return r, nil
}

// GetRide returns one ride
func (s *Service) GetRide(ctx context.Context, id uuid.UUID) (*ride.Ride, error) {
	r, err := s.store.GetRide(ctx, id)
	if err != nil {
		return nil, s.fail("get ride", err)
	}
	return r, nil
}

// UpdateRide edits a ride of actor. Capacity may not drop below the
// number of accepted passengers.
func (s *Service) UpdateRide(ctx context.Context, actor, id uuid.UUID, in ride.UpdateInput) (*ride.Ride, error) {
	if in.CarPlate != nil {
		plate := ride.NormalizePlate(*in.CarPlate)
		in.CarPlate = &plate
	}
	// place lookups happen before the row lock is taken
	var departurePlace, arrivalPlace string
	if in.Departure != nil {
		departurePlace = s.placeID(ctx, *in.Departure)
	}
	if in.Arrival != nil {
		arrivalPlace = s.placeID(ctx, *in.Arrival)
	}

	var updated *ride.Ride
	err := s.store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		current, err := q.LockRide(ctx, id)
		if err != nil {
			return err
		}
		if current.DriverID != actor {
			return apperrors.ErrNotRideDriver
		}

		next := current.Clone()
		if err := next.Apply(in, geo.Normalize(s.now())); err != nil {
			return err
		}
		if in.Departure != nil {
			next.DeparturePlace = departurePlace
		}
		if in.Arrival != nil {
			next.ArrivalPlace = arrivalPlace
		}
		if err := checkCar(ctx, q, next); err != nil {
			return err
		}
		if next.Capacity < current.Capacity {
			accepted, err := q.CountAccepted(ctx, id)
			if err != nil {
				return err
			}
			if next.Capacity < accepted {
				return apperrors.ErrCapacityBelowSeats
			}
		}
		updated = next
		return q.UpdateRide(ctx, next)
	})
	if err != nil {
		return nil, s.fail("update ride", err)
	}

	s.notifier.BroadcastToRide(id.String(), websocket.Message{Type: NoticeUpdated, Data: updated})
	s.logger.Info("ride updated", logger.RideID(id), logger.Int("capacity", updated.Capacity))
	return updated, nil
}

// CancelRide deletes a ride of actor together with its requests and tells
// every rider who had asked for a seat.
func (s *Service) CancelRide(ctx context.Context, actor, id uuid.UUID) error {
	var affected []*request.Request
	err := s.store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		r, err := q.LockRide(ctx, id)
		if err != nil {
			return err
		}
		if r.DriverID != actor {
			return apperrors.ErrNotRideDriver
		}
		if affected, err = q.ListRequests(ctx, id, nil); err != nil {
			return err
		}
		return q.DeleteRide(ctx, id)
	})
	if err != nil {
		return s.fail("cancel ride", err)
	}

	msg := websocket.Message{Type: NoticeCancelled, Data: map[string]string{"ride_id": id.String()}}
	for _, req := range affected {
		if req.Status == request.StatusRejected {
			continue
		}
		s.notifier.SendToUser(req.RiderID.String(), msg)
	}
	s.nr.RecordRideCancelled(id.String(), len(affected))
	s.logger.Info("ride cancelled", logger.RideID(id), logger.Int("requests", len(affected)))
	return nil
}

// checkCar verifies that a ride's car belongs to its driver and has room
// for the ride's capacity
func checkCar(ctx context.Context, q store.Queries, r *ride.Ride) error {
	if r.CarPlate == nil {
		return nil
	}
	car, err := q.GetCar(ctx, *r.CarPlate)
	if err != nil {
		return err
	}
	if car.OwnerID != r.DriverID {
		return apperrors.ErrNotCarOwner
	}
	if r.Capacity > car.PassengerPlaces {
		return apperrors.Validation("capacity", "capacity exceeds the car's passenger places")
	}
	return nil
}

// resolvePlaces fills the place ids of r. Lookups are best effort.
func (s *Service) resolvePlaces(ctx context.Context, r *ride.Ride) {
	if r.Departure != nil {
		r.DeparturePlace = s.placeID(ctx, *r.Departure)
	}
	r.ArrivalPlace = s.placeID(ctx, r.Arrival)
}

func (s *Service) placeID(ctx context.Context, p geo.Point) string {
	id, err := s.geocoder.Reverse(ctx, p)
	if err != nil {
		s.logger.Debug("place lookup skipped",
			logger.Float64("lat", p.Lat),
			logger.Float64("lon", p.Lon),
			logger.Err(err))
		return ""
	}
	return id
}

func (s *Service) fail(op string, err error) error {
	if !apperrors.IsAppError(err) {
		s.logger.Error("storage failure", logger.String("op", op), logger.Err(err))
	}
	return apperrors.Storage(err)
}
