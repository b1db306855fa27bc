package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"nemt-trip-service/internal/adapters/cache"
	"nemt-trip-service/internal/domain"
	"nemt-trip-service/internal/platform/obs"
	"net/http"
	"strings"
	"time"

	"github.com/twpayne/go-polyline"
)

// ORSDirectionsProvider implements DirectionsProvider using OpenRouteService.
//
// It coordinates:
//   - Waypoint validation and cache-key normalization
//   - Persistent directions caching
//   - External API calls with retry/backoff
//
// The provider is safe for concurrent use.
type ORSDirectionsProvider struct {
	session     *http.Client
	apiKey      string
	baseURL     string
	profile     string
	maxAttempts int
	backoff     time.Duration
	cache       *cache.SQLDirectionsCache
}

func NewORSDirectionsProvider(apiKey string, directionsCache *cache.SQLDirectionsCache) (*ORSDirectionsProvider, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}

	return &ORSDirectionsProvider{
		session:     &http.Client{Timeout: 10 * time.Second},
		apiKey:      apiKey,
		baseURL:     "https://api.openrouteservice.org",
		profile:     "driving-car",
		maxAttempts: 4,
		backoff:     200 * time.Millisecond,
		cache:       directionsCache,
	}, nil
}

// WaypointsKey is the cache key for an ordered waypoint list. Coordinates are
// rounded to six decimals (about 10 cm).
func WaypointsKey(waypoints []domain.GpsLocation) string {
	parts := make([]string, 0, len(waypoints))
	for _, w := range waypoints {
		parts = append(parts, fmt.Sprintf("%.6f,%.6f", w.Latitude, w.Longitude))
	}
	return strings.Join(parts, ";")
}

func validateWaypoints(waypoints []domain.GpsLocation) error {
	if len(waypoints) < 2 {
		return fmt.Errorf("need at least 2 waypoints, got %d: %w", len(waypoints), domain.ErrInvalid)
	}
	for i, w := range waypoints {
		if w.Latitude < -90 || w.Latitude > 90 || w.Longitude < -180 || w.Longitude > 180 {
			return fmt.Errorf("waypoint %d out of range: %v,%v: %w", i, w.Latitude, w.Longitude, domain.ErrInvalid)
		}
	}
	return nil
}

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

func (o *ORSDirectionsProvider) GetDirections(
	ctx context.Context,
	waypoints []domain.GpsLocation,
) (_ domain.DirectionsData, err error) {
	defer obs.Time(ctx, "ors.GetDirections")(&err)

	if err := validateWaypoints(waypoints); err != nil {
		return domain.DirectionsData{}, fmt.Errorf("get ORS directions: %w", err)
	}

	key := WaypointsKey(waypoints)

	// Check persistent directions cache before issuing external API calls.
	if o.cache != nil {
		hit, ok, err := o.cache.Get(ctx, key)
		if err != nil {
			return domain.DirectionsData{}, fmt.Errorf("ORS get directions cache: %w", err)
		}
		if ok {
			return hit, nil
		}
	}

	fetched, err := o.fetchDirections(ctx, waypoints)
	if err != nil {
		return domain.DirectionsData{}, fmt.Errorf("fetching directions: %w", err)
	}

	if o.cache != nil {
		if err := o.cache.Put(ctx, key, fetched); err != nil {
			obs.LogError(obs.FromContext(ctx), "directions cache write failed", err, slog.String("key", key))
		}
	}

	return fetched, nil
}

func (o *ORSDirectionsProvider) fetchDirections(ctx context.Context, waypoints []domain.GpsLocation) (domain.DirectionsData, error) {
	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", o.baseURL, o.profile)

	// ORS expects [lon, lat] pairs.
	coords := make([][]float64, 0, len(waypoints))
	for _, w := range waypoints {
		coords = append(coords, []float64{w.Longitude, w.Latitude})
	}

	payload, err := json.Marshal(directionsRequest{Coordinates: coords})
	if err != nil {
		return domain.DirectionsData{}, fmt.Errorf("marshal directions request: %w", err)
	}

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return domain.DirectionsData{}, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return domain.DirectionsData{}, fmt.Errorf("decode directions response: %w", err)
	}

	if len(dr.Features) == 0 {
		return domain.DirectionsData{}, errors.New("directions response has no route")
	}
	f := dr.Features[0]

	// Polyline encoding wants [lat, lon].
	path := make([][]float64, 0, len(f.Geometry.Coordinates))
	for i, c := range f.Geometry.Coordinates {
		if len(c) < 2 {
			return domain.DirectionsData{}, fmt.Errorf("invalid coordinate at index %d", i)
		}
		path = append(path, []float64{c[1], c[0]})
	}
	if len(path) == 0 {
		return domain.DirectionsData{}, errors.New("directions response has empty geometry")
	}

	return NewDirectionsData(path, f.Properties.Summary.Distance, f.Properties.Summary.Duration), nil
}

// NewDirectionsData encodes a [lat, lon] path and rounds ORS float metrics to
// whole meters and seconds.
func NewDirectionsData(path [][]float64, meters, seconds float64) domain.DirectionsData {
	return domain.DirectionsData{
		EncodedPolyline: string(polyline.EncodeCoords(path)),
		Distance:        domain.NewDistance(int(math.Round(meters))),
		Duration:        domain.NewDuration(int(math.Round(seconds))),
	}
}
