package directions

import (
	"context"
	"encoding/json"
	"nemt-trip-service/internal/domain"
	"nemt-trip-service/internal/ports"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.DirectionsProvider = (*ORSDirectionsProvider)(nil)
	_ ports.DirectionsProvider = (*MockDirectionsProvider)(nil)
)

var testWaypoints = []domain.GpsLocation{
	{Latitude: 33.4484, Longitude: -112.0740},
	{Latitude: 33.4500, Longitude: -112.0700},
}

const geojsonBody = `{
	"type": "FeatureCollection",
	"features": [{
		"geometry": {"coordinates": [[-112.0740, 33.4484], [-112.0720, 33.4490], [-112.0700, 33.4500]]},
		"properties": {"summary": {"distance": 1234.6, "duration": 301.2}}
	}]
}`

func newTestProvider(t *testing.T, h http.HandlerFunc) *ORSDirectionsProvider {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p, err := NewORSDirectionsProvider("test-key", nil)
	require.NoError(t, err)
	p.baseURL = srv.URL
	p.backoff = time.Millisecond
	return p
}

func TestORSDirectionsProviderGetDirections(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/directions/driving-car/geojson", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))

		var req directionsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, [][]float64{{-112.0740, 33.4484}, {-112.0700, 33.4500}}, req.Coordinates)

		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(geojsonBody))
	})

	d, err := p.GetDirections(context.Background(), testWaypoints)
	require.NoError(t, err)

	assert.Equal(t, 1235, d.Distance.ValueInMeters)
	assert.Equal(t, 301, d.Duration.ValueInSeconds)
	assert.Equal(t, "5 mins", d.Duration.Text)

	points, err := d.Points()
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.InDelta(t, 33.4484, points[0][0], 1e-5)
	assert.InDelta(t, -112.0740, points[0][1], 1e-5)
}

func TestORSDirectionsProviderRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(geojsonBody))
	})

	_, err := p.GetDirections(context.Background(), testWaypoints)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestORSDirectionsProviderDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad coordinates", http.StatusBadRequest)
	})

	_, err := p.GetDirections(context.Background(), testWaypoints)
	require.Error(t, err)

	var he *httpStatusError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetDirectionsRejectsSingleWaypoint(t *testing.T) {
	p := NewMockDirectionsProvider(1000, 60)
	_, err := p.GetDirections(context.Background(), testWaypoints[:1])
	require.Error(t, err)
	assert.Zero(t, p.Calls())
}

func TestWaypointsKey(t *testing.T) {
	assert.Equal(t, "33.448400,-112.074000;33.450000,-112.070000", WaypointsKey(testWaypoints))
}
