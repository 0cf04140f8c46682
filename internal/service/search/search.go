// Package search finds rides matching a rider's spatial, temporal,
// demographic and reputation constraints.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carwave/carpool/internal/domain/review"
	"github.com/carwave/carpool/internal/domain/ride"
	"github.com/carwave/carpool/internal/domain/user"
	"github.com/carwave/carpool/internal/geo"
	"github.com/carwave/carpool/internal/geocode"
	"github.com/carwave/carpool/internal/observability"
	"github.com/carwave/carpool/internal/store"
	apperrors "github.com/carwave/carpool/pkg/errors"
	"github.com/carwave/carpool/pkg/logger"
	"github.com/carwave/carpool/pkg/monitoring"
)

// Reputation is the part of the reputation service search depends on
type Reputation interface {
	Summary(ctx context.Context, userID uuid.UUID, role review.Role) (review.Summary, error)
}

// Config holds search configuration
type Config struct {
	DefaultLimit        int
	MinLimit            int
	MaxLimit            int
	DefaultRadiusMeters float64
	DefaultTolerance    time.Duration
	CandidateCap        int
}

// DefaultConfig mirrors the configuration defaults
var DefaultConfig = Config{
	DefaultLimit:        5,
	MinLimit:            1,
	MaxLimit:            50,
	DefaultRadiusMeters: 5000,
	DefaultTolerance:    30 * time.Minute,
	CandidateCap:        500,
}

// Place is a search location given either as coordinates or as free text
// to be geocoded. Point wins when both are set.
type Place struct {
	Text         string
	Point        *geo.Point
	RadiusMeters *float64
}

func (p Place) isSet() bool { return p.Point != nil || p.Text != "" }

// Criteria are the optional constraints of a search. Unset fields impose
// no constraint.
type Criteria struct {
	From Place
	To   Place

	DepartAt        *time.Time
	DepartTolerance *time.Duration
	ArriveBy        *time.Time
	ArriveTolerance *time.Duration

	// Sex is matched against the driver's declared sex: M, F or X.
	Sex         string
	Age         geo.Bound[int]
	Consumption geo.Bound[float64]
	// Rating bounds the driver's average rating as a driver.
	Rating geo.Bound[float64]
	// Tags must all be among the driver's top tags.
	Tags []string

	ExcludePast bool
	Limit       int
	// SkipUnresolved drops a location filter whose place cannot be
	// geocoded instead of failing the search.
	SkipUnresolved bool
}

// Result is the outcome of a search
type Result struct {
	Rides []*ride.Ride
	// Unresolved names the location filters dropped under SkipUnresolved.
	Unresolved []string
}

// Service is the ride search engine
type Service struct {
	store      store.Queries
	geocoder   geocode.Geocoder
	reputation Reputation
	logger     *logger.Logger
	nr         *monitoring.NewRelicApp
	config     Config
	now        func() time.Time
}

// NewService creates a new search service
func NewService(st store.Queries, geocoder geocode.Geocoder, reputation Reputation, logger_ *logger.Logger, nr *monitoring.NewRelicApp, config Config) *Service {
	if geocoder == nil {
		geocoder = geocode.Disabled{}
	}
	if config.MaxLimit <= 0 {
		config.MinLimit, config.MaxLimit = DefaultConfig.MinLimit, DefaultConfig.MaxLimit
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = DefaultConfig.DefaultLimit
	}
	if config.DefaultRadiusMeters <= 0 {
		config.DefaultRadiusMeters = DefaultConfig.DefaultRadiusMeters
	}
	if config.CandidateCap <= 0 {
		config.CandidateCap = DefaultConfig.CandidateCap
	}
	return &Service{
		store:      st,
		geocoder:   geocoder,
		reputation: reputation,
		logger:     logger.Component(logger_, "search"),
		nr:         nr,
		config:     config,
		now:        time.Now,
	}
}

// Search returns up to the clamped limit of rides satisfying every supplied
// criterion, oldest posting first. actor may be nil for anonymous search;
// otherwise the actor's own rides are left out.
func (s *Service) Search(ctx context.Context, actor *uuid.UUID, c Criteria) (res *Result, err error) {
	start := time.Now()
	defer func() {
		observability.SearchesTotal.WithLabelValues(observability.Outcome(err)).Inc()
		observability.SearchLatency.Observe(time.Since(start).Seconds())
		if err == nil {
			observability.SearchResults.Observe(float64(len(res.Rides)))
			s.nr.RecordSearch(len(res.Rides), time.Since(start), len(res.Unresolved) > 0)
		}
	}()

	res = &Result{Rides: []*ride.Ride{}}
	filter, err := s.buildFilter(ctx, c, res)
	if err != nil {
		return nil, err
	}
	filter.ExcludeDriver = actor

	limit := s.clampLimit(c.Limit)
	tags := normalizeTags(c.Tags)
	if !c.Rating.Active() && len(tags) == 0 {
		filter.Limit = limit
		candidates, err := s.store.SearchRides(ctx, filter)
		if err != nil {
			s.logger.Error("ride search failed", logger.Err(err))
			return nil, apperrors.Storage(err)
		}
		if candidates != nil {
			res.Rides = candidates
		}
		return res, nil
	}

	// Reputation lives outside the ride query, so candidates are pulled
	// page by page until enough pass or the store runs dry.
	filter.Limit = s.config.CandidateCap
	memo := make(map[uuid.UUID]bool)
	for {
		page, err := s.store.SearchRides(ctx, filter)
		if err != nil {
			s.logger.Error("ride search failed", logger.Err(err))
			return nil, apperrors.Storage(err)
		}
		for _, r := range page {
			ok, seen := memo[r.DriverID]
			if !seen {
				ok, err = s.reputationMatches(ctx, r.DriverID, c.Rating, tags)
				if err != nil {
					return nil, err
				}
				memo[r.DriverID] = ok
			}
			if !ok {
				continue
			}
			res.Rides = append(res.Rides, r)
			if len(res.Rides) == limit {
				return res, nil
			}
		}
		if len(page) < filter.Limit {
			return res, nil
		}
		filter.After = store.CursorAt(page[len(page)-1])
	}
}

func (s *Service) buildFilter(ctx context.Context, c Criteria, res *Result) (store.RideFilter, error) {
	var f store.RideFilter

	if c.Sex != "" {
		sex, err := user.ParseSex(c.Sex)
		if err != nil {
			return f, err
		}
		f.DriverSex = &sex
	}

	var err error
	if f.Departure, err = s.circle(ctx, "from", c.From, c.SkipUnresolved, res); err != nil {
		return f, err
	}
	if f.Arrival, err = s.circle(ctx, "to", c.To, c.SkipUnresolved, res); err != nil {
		return f, err
	}

	f.DepartureWindow = s.window(c.DepartAt, c.DepartTolerance)
	f.ArrivalWindow = s.window(c.ArriveBy, c.ArriveTolerance)
	f.DriverAge = c.Age
	f.Consumption = c.Consumption

	if c.ExcludePast {
		now := geo.Normalize(s.now())
		f.ArrivingAfter = &now
	}
	return f, nil
}

// circle resolves a place into a search circle. An unset place yields nil.
func (s *Service) circle(ctx context.Context, name string, p Place, skipUnresolved bool, res *Result) (*store.Circle, error) {
	if !p.isSet() {
		return nil, nil
	}

	radius := s.config.DefaultRadiusMeters
	if p.RadiusMeters != nil && *p.RadiusMeters > 0 {
		radius = *p.RadiusMeters
	}

	if p.Point != nil {
		if !p.Point.Valid() {
			return nil, nil
		}
		return &store.Circle{Center: *p.Point, RadiusMeters: radius}, nil
	}

	center, err := s.geocoder.Resolve(ctx, p.Text)
	if err != nil {
		s.logger.Warn("search place unresolved",
			logger.String("filter", name),
			logger.String("place", p.Text),
			logger.Bool("skipped", skipUnresolved),
			logger.Err(err))
		if skipUnresolved {
			res.Unresolved = append(res.Unresolved, name)
			return nil, nil
		}
		if !apperrors.IsAppError(err) {
			err = apperrors.WrapAppError(apperrors.ErrGeocoding, err)
		}
		return nil, err
	}
	return &store.Circle{Center: center, RadiusMeters: radius}, nil
}

func (s *Service) window(at *time.Time, tolerance *time.Duration) *geo.Window {
	if at == nil || at.IsZero() {
		return nil
	}
	tol := s.config.DefaultTolerance
	if tolerance != nil && *tolerance >= 0 {
		tol = *tolerance
	}
	return &geo.Window{At: geo.Normalize(*at), Tolerance: tol}
}

func (s *Service) clampLimit(limit int) int {
	if limit == 0 {
		limit = s.config.DefaultLimit
	}
	if limit < s.config.MinLimit {
		return s.config.MinLimit
	}
	if limit > s.config.MaxLimit {
		return s.config.MaxLimit
	}
	return limit
}

func (s *Service) reputationMatches(ctx context.Context, driverID uuid.UUID, rating geo.Bound[float64], tags []string) (bool, error) {
	summary, err := s.reputation.Summary(ctx, driverID, review.RoleDriver)
	if err != nil {
		return false, err
	}
	if rating.Active() && !rating.ContainsPtr(summary.Average) {
		return false, nil
	}
	return containsAll(summary.TopTags, tags), nil
}

func containsAll(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

func normalizeTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
