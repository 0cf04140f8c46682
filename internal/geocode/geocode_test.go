package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carwave/carpool/internal/geo"
	apperrors "github.com/carwave/carpool/pkg/errors"
)

func newMapsServer(t *testing.T, handler http.HandlerFunc) *GoogleGeocoder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g, err := NewGoogle(Config{APIKey: "test-key", Region: "de", Language: "de", BaseURL: srv.URL})
	require.NoError(t, err)
	return g
}

func TestGoogleResolve(t *testing.T) {
	var gotAddress string
	g := newMapsServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"OK","results":[{"place_id":"berlin-hbf","geometry":{"location":{"lat":52.5251,"lng":13.3694}}}]}`)
	})

	p, err := g.Resolve(context.Background(), " Berlin Hbf ")
	require.NoError(t, err)
	assert.Equal(t, "Berlin Hbf", gotAddress)
	assert.Equal(t, geo.Point{Lat: 52.5251, Lon: 13.3694}, p)
}

func TestGoogleResolve_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero results", `{"status":"ZERO_RESULTS","results":[]}`},
		{"denied", `{"status":"REQUEST_DENIED","error_message":"bad key","results":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newMapsServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, tt.body)
			})
			_, err := g.Resolve(context.Background(), "nowhere")
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrGeocoding))
		})
	}
}

func TestGoogleResolve_EmptyPlaceSkipsAPI(t *testing.T) {
	called := false
	g := newMapsServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := g.Resolve(context.Background(), "   ")
	assert.True(t, errors.Is(err, apperrors.ErrGeocoding))
	assert.ErrorIs(t, err, ErrNoResults)
	assert.False(t, called)
}

func TestGoogleReverse(t *testing.T) {
	var gotLatLng string
	g := newMapsServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotLatLng = r.URL.Query().Get("latlng")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"OK","results":[{"place_id":"place-42","geometry":{"location":{"lat":1,"lng":2}}}]}`)
	})

	id, err := g.Reverse(context.Background(), geo.Point{Lat: 52.5, Lon: 13.4})
	require.NoError(t, err)
	assert.Equal(t, "place-42", id)
	assert.Contains(t, gotLatLng, "52.5")
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Resolve(context.Background(), "Berlin")
	assert.True(t, errors.Is(err, apperrors.ErrGeocoding))
	_, err = Disabled{}.Reverse(context.Background(), geo.Point{})
	assert.True(t, errors.Is(err, apperrors.ErrGeocoding))
}
