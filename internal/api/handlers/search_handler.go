package handlers

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carwave/carpool/internal/api/dto"
	"github.com/carwave/carpool/internal/geo"
	"github.com/carwave/carpool/internal/service/search"
)

// zone-less layouts are wall clock times in the configured zone
var wallClockLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// SearchRides handles GET /v1/drives/search. Malformed optional
// parameters are ignored rather than rejected.
func (h *Handlers) SearchRides(c *gin.Context) {
	criteria := search.Criteria{
		From:            h.queryPlace(c, "from"),
		To:              h.queryPlace(c, "to"),
		DepartAt:        h.queryTime(c, "depart_at"),
		DepartTolerance: queryTolerance(c, "tolerance_depart"),
		ArriveBy:        h.queryTime(c, "arrive_by"),
		ArriveTolerance: queryTolerance(c, "tolerance_arrive"),
		Sex:             strings.TrimSpace(c.Query("sex")),
		Age:             geo.BoundFrom(queryInt(c, "min_age"), queryInt(c, "max_age")),
		Consumption:     geo.BoundFrom(queryFloat(c, "min_consumption"), queryFloat(c, "max_consumption")),
		Rating:          geo.BoundFrom(queryFloat(c, "min_rating"), queryFloat(c, "max_rating")),
		Tags:            queryList(c, "tags"),
		ExcludePast:     queryBool(c, "exclude_past"),
		SkipUnresolved:  queryBool(c, "skip_unresolved"),
	}
	if limit := queryInt(c, "limit"); limit != nil {
		criteria.Limit = *limit
	}

	res, err := h.Search.Search(c.Request.Context(), actor(c), criteria)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SearchResponse{
		Rides:      res.Rides,
		Count:      len(res.Rides),
		Unresolved: res.Unresolved,
	})
}

func (h *Handlers) queryPlace(c *gin.Context, prefix string) search.Place {
	p := search.Place{
		Text:         strings.TrimSpace(c.Query(prefix)),
		RadiusMeters: queryFloat(c, "radius_"+prefix),
	}
	lat, lon := queryFloat(c, prefix+"_lat"), queryFloat(c, prefix+"_lon")
	if lat != nil && lon != nil {
		p.Point = &geo.Point{Lat: *lat, Lon: *lon}
	}
	return p
}

// queryTime accepts RFC 3339 or a zone-less wall clock time
func (h *Handlers) queryTime(c *gin.Context, name string) *time.Time {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = geo.Normalize(t)
		return &t
	}
	for _, layout := range wallClockLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = geo.FromWallClock(t, h.Location)
			return &t
		}
	}
	return nil
}

// queryTolerance accepts a Go duration ("45m") or whole minutes ("45")
func queryTolerance(c *gin.Context, name string) *time.Duration {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
		return &d
	}
	if m, err := strconv.Atoi(raw); err == nil && m >= 0 {
		d := time.Duration(m) * time.Minute
		return &d
	}
	return nil
}

func queryInt(c *gin.Context, name string) *int {
	v, err := strconv.Atoi(strings.TrimSpace(c.Query(name)))
	if err != nil {
		return nil
	}
	return &v
}

func queryFloat(c *gin.Context, name string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(c.Query(name)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}

// queryList reads comma separated and repeated values
func queryList(c *gin.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryArray(name) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}
