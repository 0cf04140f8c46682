package user

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carwave/carpool/internal/geo"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

// Sex is the declared sex of a user
type Sex string

const (
	SexMale    Sex = "M"
	SexFemale  Sex = "F"
	SexDiverse Sex = "X"
)

// IsValid validates the sex value
func (s Sex) IsValid() bool {
	switch s {
	case SexMale, SexFemale, SexDiverse:
		return true
	}
	return false
}

// ParseSex accepts M, F or X in any case
func ParseSex(raw string) (Sex, error) {
	s := Sex(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", apperrors.Validation("sex", "sex must be one of M, F, X")
	}
	return s, nil
}

const (
	maxUsernameLength = 64
	minAge            = 0
	maxAge            = 150
)

// User represents an account. Email, age, sex and home are optional.
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Email        *string    `json:"email,omitempty" db:"email"`
	Age          *int       `json:"age,omitempty" db:"age"`
	Sex          *Sex       `json:"sex,omitempty" db:"sex"`
	Home         *geo.Point `json:"home,omitempty" db:"-"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// CreateInput carries the fields accepted at registration
type CreateInput struct {
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Email        *string
	Age          *int
	Sex          *Sex
	Home         *geo.Point
}

// UpdateInput carries a profile edit; nil fields are left untouched
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Age       *int
	Sex       *Sex
	Home      *geo.Point
}

// New validates in and builds a user stamped with now
func New(in CreateInput, now time.Time) (*User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || len(username) > maxUsernameLength {
		return nil, apperrors.Validation("username", "username must be 1-64 characters")
	}
	u := &User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: in.PasswordHash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := u.Apply(UpdateInput{Email: in.Email, Age: in.Age, Sex: in.Sex, Home: in.Home}, now)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Apply validates and copies the set fields of in onto u
func (u *User) Apply(in UpdateInput, now time.Time) error {
	if in.Age != nil && (*in.Age < minAge || *in.Age > maxAge) {
		return apperrors.Validation("age", "age must be between 0 and 150")
	}
	if in.Sex != nil && !in.Sex.IsValid() {
		return apperrors.Validation("sex", "sex must be one of M, F, X")
	}
	if in.Email != nil && *in.Email != "" && !strings.Contains(*in.Email, "@") {
		return apperrors.Validation("email", "email address is malformed")
	}
	if in.Home != nil && !in.Home.Valid() {
		return apperrors.Validation("home", "coordinates out of range")
	}

	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Email != nil {
		u.Email = in.Email
	}
	if in.Age != nil {
		u.Age = in.Age
	}
	if in.Sex != nil {
		u.Sex = in.Sex
	}
	if in.Home != nil {
		u.Home = in.Home
	}
	u.UpdatedAt = now
	return nil
}
