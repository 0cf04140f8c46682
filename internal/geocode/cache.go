package geocode

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carwave/carpool/internal/geo"
	"github.com/carwave/carpool/internal/observability"
	"github.com/carwave/carpool/pkg/cache"
	"github.com/carwave/carpool/pkg/logger"
)

const (
	forwardPrefix = "geocode:fwd:"
	reversePrefix = "geocode:rev:"
)

// CachedGeocoder keeps successful lookups in Redis. Failures are never
// cached and a Redis outage only costs the cache, not the lookup.
type CachedGeocoder struct {
	next   Geocoder
	client redis.Cmdable
	ttl    time.Duration
	log    *logger.Logger
}

// NewCached wraps next with a Redis cache
func NewCached(next Geocoder, client redis.Cmdable, ttl time.Duration, log *logger.Logger) *CachedGeocoder {
	return &CachedGeocoder{next: next, client: client, ttl: ttl, log: logger.Component(log, "geocode")}
}

func forwardKey(place string) string {
	return forwardPrefix + strings.ToLower(strings.Join(strings.Fields(place), " "))
}

// 5 decimals is about one meter
func reverseKey(p geo.Point) string {
	return fmt.Sprintf("%s%.5f,%.5f", reversePrefix, p.Lat, p.Lon)
}

// Resolve serves place from the cache or asks the wrapped geocoder
func (c *CachedGeocoder) Resolve(ctx context.Context, place string) (geo.Point, error) {
	key := forwardKey(place)

	var p geo.Point
	found, err := cache.GetJSON(ctx, c.client, key, &p)
	if err != nil {
		c.log.Warn("geocode cache read failed", logger.String("key", key), logger.Err(err))
	}
	if found {
		observability.GeocodeLookups.WithLabelValues("cache").Inc()
		return p, nil
	}

	observability.GeocodeLookups.WithLabelValues("provider").Inc()
	p, err = c.next.Resolve(ctx, place)
	if err != nil {
		return geo.Point{}, err
	}
	if err := cache.SetJSON(ctx, c.client, key, p, c.ttl); err != nil {
		c.log.Warn("geocode cache write failed", logger.String("key", key), logger.Err(err))
	}
	return p, nil
}

// Reverse serves the place id of p from the cache or the wrapped geocoder
func (c *CachedGeocoder) Reverse(ctx context.Context, p geo.Point) (string, error) {
	key := reverseKey(p)

	var placeID string
	found, err := cache.GetJSON(ctx, c.client, key, &placeID)
	if err != nil {
		c.log.Warn("geocode cache read failed", logger.String("key", key), logger.Err(err))
	}
	if found {
		observability.GeocodeLookups.WithLabelValues("cache").Inc()
		return placeID, nil
	}

	observability.GeocodeLookups.WithLabelValues("provider").Inc()
	placeID, err = c.next.Reverse(ctx, p)
	if err != nil {
		return "", err
	}
	if err := cache.SetJSON(ctx, c.client, key, placeID, c.ttl); err != nil {
		c.log.Warn("geocode cache write failed", logger.String("key", key), logger.Err(err))
	}
	return placeID, nil
}
