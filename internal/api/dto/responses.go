package dto

import (
	"github.com/carwave/carpool/internal/domain/review"
	"github.com/carwave/carpool/internal/domain/ride"
)

// SearchResponse is the result of a ride search
type SearchResponse struct {
	Rides      []*ride.Ride `json:"rides"`
	Count      int          `json:"count"`
	Unresolved []string     `json:"unresolved,omitempty"`
}

// ReviewResponse wraps a saved review
type ReviewResponse struct {
	Review  *review.Review `json:"review"`
	Created bool           `json:"created"`
}

// EligibilityResponse answers whether a review may be written
type EligibilityResponse struct {
	Allowed bool        `json:"allowed"`
	Role    review.Role `json:"role"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}
