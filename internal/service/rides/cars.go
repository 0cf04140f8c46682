package rides

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/geo"
	"github.com/carwave/carpool/internal/store"
	apperrors "github.com/carwave/carpool/pkg/errors"
	"github.com/carwave/carpool/pkg/logger"
)

// CreateCar registers a car for owner. Plates are unique.
func (s *Service) CreateCar(ctx context.Context, owner uuid.UUID, in ride.CarInput) (*ride.Car, error) {
	car, err := ride.NewCar(owner, in, geo.Normalize(s.now()))
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		if _, err := q.GetUser(ctx, owner); err != nil {
			return err
		}
		return q.CreateCar(ctx, car)
	})
	if err != nil {
		return nil, s.fail("create car", err)
	}

	s.logger.Info("car registered", logger.String("plate", car.Plate), logger.ID("owner_id", owner))
	return car, nil
}

// GetCar returns the car with plate
func (s *Service) GetCar(ctx context.Context, plate string) (*ride.Car, error) {
	car, err := s.store.GetCar(ctx, ride.NormalizePlate(plate))
	if err != nil {
		return nil, s.fail("get car", err)
	}
	return car, nil
}

// UpdateCar edits a car of actor. Passenger places cannot drop below the
// capacity of a ride still to come that uses the car.
func (s *Service) UpdateCar(ctx context.Context, actor uuid.UUID, plate string, in ride.CarUpdate) (*ride.Car, error) {
	now := geo.Normalize(s.now())
	var updated *ride.Car
	err := s.store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		car, err := ownedCar(ctx, q, actor, plate)
		if err != nil {
			return err
		}
		places := car.PassengerPlaces
		if err := car.Apply(in, now); err != nil {
			return err
		}
		if car.PassengerPlaces < places {
			if err := checkRidesFit(ctx, q, car, now); err != nil {
				return err
			}
		}
		updated = car
		return q.UpdateCar(ctx, car)
	})
	if err != nil {
		return nil, s.fail("update car", err)
	}
	return updated, nil
}

// DeleteCar removes a car of actor. Rides that used it keep running
// without a car reference.
func (s *Service) DeleteCar(ctx context.Context, actor uuid.UUID, plate string) error {
	err := s.store.WithTx(ctx, func(ctx context.Context, q store.Queries) error {
		car, err := ownedCar(ctx, q, actor, plate)
		if err != nil {
			return err
		}
		return q.DeleteCar(ctx, car.Plate)
	})
	if err != nil {
		return s.fail("delete car", err)
	}
	s.logger.Info("car removed", logger.String("plate", ride.NormalizePlate(plate)))
	return nil
}

func checkRidesFit(ctx context.Context, q store.Queries, car *ride.Car, now time.Time) error {
	rides, err := q.RidesByCar(ctx, car.Plate)
	if err != nil {
		return err
	}
	for _, r := range rides {
		if !r.Completed(now) && r.Capacity > car.PassengerPlaces {
			return apperrors.WrapAppError(apperrors.ErrPlacesBelowRide,
				fmt.Errorf("ride %s has capacity %d", r.ID, r.Capacity))
		}
	}
	return nil
}

func ownedCar(ctx context.Context, q store.Queries, actor uuid.UUID, plate string) (*ride.Car, error) {
	car, err := q.GetCar(ctx, ride.NormalizePlate(plate))
	if err != nil {
		return nil, err
	}
	if car.OwnerID != actor {
		return nil, apperrors.ErrNotCarOwner
	}
	return car, nil
}
