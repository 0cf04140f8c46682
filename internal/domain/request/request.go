package request

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/carwave/carpool/pkg/errors"
)

// Status represents passenger request status
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// IsValid validates the status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Action is a driver's decision on a pending request
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

// ParseAction accepts "accept" or "reject" in any case
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch a {
	case ActionAccept, ActionReject:
		return a, nil
	}
	return "", apperrors.Validation("action", "action must be accept or reject")
}

// Target returns the status an action moves a request to
func (a Action) Target() Status {
	if a == ActionAccept {
		return StatusAccepted
	}
	return StatusRejected
}

// Request is a rider's bid for a seat, identified by (RideID, RiderID)
type Request struct {
	RideID       uuid.UUID `json:"ride_id"`
	RiderID      uuid.UUID `json:"rider_id"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
}

// New creates a pending request stamped with now
func New(rideID, riderID uuid.UUID, now time.Time) *Request {
	return &Request{
		RideID:       rideID,
		RiderID:      riderID,
		Status:       StatusPending,
		CreatedAt:    now,
		LastModified: now,
	}
}

// Decide applies a to a pending request. Capacity is the caller's concern;
// this only guards the transition table.
func (r *Request) Decide(a Action, now time.Time) error {
	if a != ActionAccept && a != ActionReject {
		return apperrors.Validation("action", "action must be accept or reject")
	}
	if r.Status != StatusPending {
		return apperrors.ErrRequestDecided
	}
	r.Status = a.Target()
	r.LastModified = now
	return nil
}

// CanWithdraw reports whether the rider may still delete the request
func (r *Request) CanWithdraw() bool {
	return r.Status == StatusPending
}
