// Package geocode resolves free-text places to coordinates and back.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"github.com/carwave/carpool/internal/geo"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

// ErrNoResults is the cause attached when a lookup matched nothing
var ErrNoResults = errors.New("no results")

// Geocoder is the lookup collaborator used by search and ride posting.
// Failures are returned as apperrors.ErrGeocoding derivatives.
type Geocoder interface {
	Resolve(ctx context.Context, place string) (geo.Point, error)
	Reverse(ctx context.Context, p geo.Point) (placeID string, err error)
}

// Config configures the Google client
type Config struct {
	APIKey   string
	Region   string
	Language string
	Timeout  time.Duration
	// BaseURL overrides the API endpoint; tests point it at a local server.
	BaseURL string
}

// GoogleGeocoder uses the Google Maps Geocoding API
type GoogleGeocoder struct {
	client   *maps.Client
	region   string
	language string
	timeout  time.Duration
}

// NewGoogle creates a GoogleGeocoder
func NewGoogle(cfg Config) (*GoogleGeocoder, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GoogleGeocoder{client: client, region: cfg.Region, language: cfg.Language, timeout: timeout}, nil
}

// Resolve returns the coordinates of the best match for place
func (g *GoogleGeocoder) Resolve(ctx context.Context, place string) (geo.Point, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return geo.Point{}, apperrors.WrapAppError(apperrors.ErrGeocoding, ErrNoResults)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  place,
		Region:   g.region,
		Language: g.language,
	})
	if err != nil {
		return geo.Point{}, apperrors.WrapAppError(apperrors.ErrGeocoding, fmt.Errorf("maps api error: %w", err))
	}
	if len(results) == 0 {
		return geo.Point{}, apperrors.WrapAppError(apperrors.ErrGeocoding, ErrNoResults)
	}

	loc := results[0].Geometry.Location
	return geo.Point{Lat: loc.Lat, Lon: loc.Lng}, nil
}

// Reverse returns the place id of the closest address to p
func (g *GoogleGeocoder) Reverse(ctx context.Context, p geo.Point) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: p.Lat, Lng: p.Lon},
		Language: g.language,
	})
	if err != nil {
		return "", apperrors.WrapAppError(apperrors.ErrGeocoding, fmt.Errorf("maps api error: %w", err))
	}
	if len(results) == 0 || results[0].PlaceID == "" {
		return "", apperrors.WrapAppError(apperrors.ErrGeocoding, ErrNoResults)
	}
	return results[0].PlaceID, nil
}

// Disabled fails every lookup. It stands in when no API key is configured.
type Disabled struct{}

var errNotConfigured = errors.New("geocoding is not configured")

func (Disabled) Resolve(context.Context, string) (geo.Point, error) {
	return geo.Point{}, apperrors.WrapAppError(apperrors.ErrGeocoding, errNotConfigured)
}

func (Disabled) Reverse(context.Context, geo.Point) (string, error) {
	return "", apperrors.WrapAppError(apperrors.ErrGeocoding, errNotConfigured)
}
