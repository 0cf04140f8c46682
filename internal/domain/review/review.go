package review

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/carwave/carpool/pkg/errors"
)

// Role is the capacity in which the subject of a review took part
type Role string

const (
	RoleDriver    Role = "driver"
	RolePassenger Role = "passenger"
)

// ParseRole accepts "driver" or "passenger"
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case RoleDriver, RolePassenger:
		return r, nil
	}
	return "", apperrors.Validation("role", "role must be driver or passenger")
}

// AsDriver reports whether the role is the driver role
func (r Role) AsDriver() bool { return r == RoleDriver }

// RoleOf maps the stored as_driver flag back to a Role
func RoleOf(asDriver bool) Role {
	if asDriver {
		return RoleDriver
	}
	return RolePassenger
}

// Review is unique per (AuthorID, SubjectID, Role)
type Review struct {
	AuthorID     uuid.UUID `json:"author_id"`
	SubjectID    uuid.UUID `json:"subject_id"`
	Role         Role      `json:"role"`
	Rating       int       `json:"rating"`
	Body         string    `json:"body"`
	Tags         []string  `json:"tags"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
}

// UpsertInput holds the author-supplied part of a review
type UpsertInput struct {
	Rating int
	Body   string
	Tags   []string
}

// Rules bounds ratings and tag counts
type Rules struct {
	RatingMin int
	RatingMax int
	MaxTags   int
}

// DefaultRules is a 1-5 scale with up to 10 tags
var DefaultRules = Rules{RatingMin: 1, RatingMax: 5, MaxTags: 10}

// Normalize validates in and returns it with trimmed body and tags.
// Duplicate tags collapse to their first occurrence.
func (r Rules) Normalize(in UpsertInput) (UpsertInput, error) {
	if in.Rating < r.RatingMin || in.Rating > r.RatingMax {
		return in, apperrors.Validation("rating", "rating out of range")
	}
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return in, apperrors.Validation("body", "review text is required")
	}

	tags := make([]string, 0, len(in.Tags))
	seen := make(map[string]struct{}, len(in.Tags))
	for _, raw := range in.Tags {
		tag := strings.TrimSpace(raw)
		if tag == "" {
			return in, apperrors.Validation("tags", "tags must not be empty")
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	if len(tags) > r.MaxTags {
		return in, apperrors.Validation("tags", "too many tags")
	}

	return UpsertInput{Rating: in.Rating, Body: body, Tags: tags}, nil
}

// New builds a review from already normalized input
func New(author, subject uuid.UUID, role Role, in UpsertInput, now time.Time) (*Review, error) {
	if author == subject {
		return nil, apperrors.Validation("subject", "users cannot review themselves")
	}
	return &Review{
		AuthorID:     author,
		SubjectID:    subject,
		Role:         role,
		Rating:       in.Rating,
		Body:         in.Body,
		Tags:         in.Tags,
		CreatedAt:    now,
		LastModified: now,
	}, nil
}

// Replace overwrites rating, body and tags and bumps LastModified
func (rv *Review) Replace(in UpsertInput, now time.Time) {
	rv.Rating = in.Rating
	rv.Body = in.Body
	rv.Tags = in.Tags
	rv.LastModified = now
}

// Summary is the aggregated reputation of a user in one role.
// Average is nil when the user has no reviews in that role.
type Summary struct {
	UserID  uuid.UUID `json:"user_id"`
	Role    Role      `json:"role"`
	Average *float64  `json:"average"`
	Count   int       `json:"count"`
	TopTags []string  `json:"top_tags"`
}
