// Package geotools implements the geographic tool handlers exposed through
// the tool registry: place search, directions, geocoding, distance matrices,
// road snapping, speed limits, traffic analysis, elevation profiles, and the
// compound route safety assessment.
//
// Every upstream call runs through the resilience retry policy; transient
// upstream failures are retried with exponential backoff, terminal ones
// surface immediately. A per-endpoint circuit breaker sits outside the retry
// loop so that a persistently failing endpoint stops burning quota.
package geotools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/routewise/geomcp/internal/maps"
	"github.com/routewise/geomcp/internal/observe"
	"github.com/routewise/geomcp/internal/resilience"
	"github.com/routewise/geomcp/internal/tool"
)

// Upstream is the slice of the mapping backend the tools depend on.
// *maps.Client implements it; tests substitute fakes.
type Upstream interface {
	Directions(ctx context.Context, req maps.DirectionsRequest) ([]maps.Route, error)
	Geocode(ctx context.Context, req maps.GeocodeRequest) ([]maps.GeocodeResult, error)
	ReverseGeocode(ctx context.Context, req maps.ReverseGeocodeRequest) ([]maps.GeocodeResult, error)
	DistanceMatrix(ctx context.Context, req maps.DistanceMatrixRequest) (*maps.DistanceMatrix, error)
	NearbySearch(ctx context.Context, req maps.NearbySearchRequest) ([]maps.Place, error)
	PlaceDetails(ctx context.Context, placeID string) (*maps.PlaceDetails, error)
	SnapToRoads(ctx context.Context, req maps.SnapToRoadsRequest) ([]maps.SnappedPoint, error)
	SpeedLimits(ctx context.Context, req maps.SpeedLimitsRequest) ([]maps.SpeedLimit, error)
	ElevationAlongPath(ctx context.Context, req maps.ElevationRequest) ([]maps.ElevationPoint, error)
}

// Config holds the tunables shared by the tool handlers. Zero values are
// replaced with defaults by [New].
type Config struct {
	// DefaultRadiusM is the place-search radius when the client omits one.
	// Default: 5000.
	DefaultRadiusM int

	// MaxRadiusM caps the place-search radius. Default: 50000.
	MaxRadiusM int

	// MaxResults caps the number of places returned. Default: 20.
	MaxResults int

	// Retry is the policy wrapped around every upstream call. A nil
	// Retryable predicate defaults to retrying transient upstream failures.
	Retry resilience.Policy

	// Breaker tunes the per-endpoint circuit breakers guarding the upstream.
	// The zero value uses the resilience package defaults.
	Breaker resilience.CircuitBreakerConfig

	// Safety configures the route safety scorer.
	Safety SafetyConfig
}

// SafetyConfig holds the weights and thresholds of the route safety scorer.
type SafetyConfig struct {
	// TrafficWeight, RoadWeight and TimeWeight scale each factor's penalty.
	// Default: 1 each.
	TrafficWeight float64
	RoadWeight    float64
	TimeWeight    float64

	// NightStartHour and NightEndHour bound the elevated-risk window
	// (start inclusive, end exclusive; may wrap midnight). Nil defaults to
	// 22 and 6; an explicit zero is kept, so 0/0 is an empty window that
	// disables the time factor.
	NightStartHour *int
	NightEndHour   *int

	// MaxSamplePoints caps how many step start-locations are snapped for the
	// speed-limit check. Default: 50.
	MaxSamplePoints int

	// HighSpeedKPH is the posted limit above which the road factor is
	// high-risk. Default: 100.
	HighSpeedKPH float64
}

func (c Config) withDefaults() Config {
	if c.DefaultRadiusM <= 0 {
		c.DefaultRadiusM = 5000
	}
	if c.MaxRadiusM <= 0 {
		c.MaxRadiusM = 50000
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 20
	}
	if c.Retry.Retryable == nil {
		c.Retry.Retryable = maps.IsTransient
	}
	if c.Safety.TrafficWeight == 0 {
		c.Safety.TrafficWeight = 1
	}
	if c.Safety.RoadWeight == 0 {
		c.Safety.RoadWeight = 1
	}
	if c.Safety.TimeWeight == 0 {
		c.Safety.TimeWeight = 1
	}
	if c.Safety.NightStartHour == nil {
		c.Safety.NightStartHour = intPtr(22)
	}
	if c.Safety.NightEndHour == nil {
		c.Safety.NightEndHour = intPtr(6)
	}
	if c.Safety.MaxSamplePoints <= 0 {
		c.Safety.MaxSamplePoints = 50
	}
	if c.Safety.HighSpeedKPH <= 0 {
		c.Safety.HighSpeedKPH = 100
	}
	return c
}

// Service binds the tool handlers to an upstream client and shared config.
type Service struct {
	upstream Upstream
	cfg      Config
	metrics  *observe.Metrics

	// now is the clock used for default departure times. Tests override it.
	now func() time.Time

	breakerMu sync.Mutex
	breakers  map[string]*resilience.CircuitBreaker
}

// New creates a Service. upstream must be non-nil; a nil metrics falls back
// to [observe.DefaultMetrics].
func New(upstream Upstream, cfg Config, metrics *observe.Metrics) (*Service, error) {
	if upstream == nil {
		return nil, errors.New("geotools: upstream client must not be nil")
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Service{
		upstream: upstream,
		cfg:      cfg.withDefaults(),
		metrics:  metrics,
		now:      time.Now,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}, nil
}

// breaker returns the circuit breaker for endpoint, creating it on first use.
func (s *Service) breaker(endpoint string) *resilience.CircuitBreaker {
	s.breakerMu.Lock()
	defer s.breakerMu.Unlock()
	cb, ok := s.breakers[endpoint]
	if !ok {
		cfg := s.cfg.Breaker
		cfg.Name = endpoint
		cb = resilience.NewCircuitBreaker(cfg)
		s.breakers[endpoint] = cb
	}
	return cb
}

// RegisterAll registers every tool on reg.
func (s *Service) RegisterAll(reg *tool.Registry) error {
	descs := []tool.Descriptor{
		s.searchPlacesTool(),
		s.placeDetailsTool(),
		s.directionsTool(),
		s.geocodeTool(),
		s.reverseGeocodeTool(),
		s.distanceMatrixTool(),
		s.snapToRoadsTool(),
		s.speedLimitsTool(),
		s.trafficConditionsTool(),
		s.elevationGainTool(),
		s.routeSafetyTool(),
	}
	for _, d := range descs {
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("geotools: registering %s: %w", d.Name, err)
		}
	}
	return nil
}

// call wraps one upstream operation in the retry policy and the endpoint's
// circuit breaker, and records the outcome on the upstream-requests counter.
// Only transient failures count toward opening the breaker: a terminal answer
// (bad request, zero results) says nothing about the endpoint's health.
func call[T any](ctx context.Context, s *Service, endpoint string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	var callErr error
	cbErr := s.breaker(endpoint).Execute(func() error {
		attempt := 0
		result, callErr = resilience.Do(ctx, s.cfg.Retry, endpoint, func(ctx context.Context) (T, error) {
			attempt++
			if attempt > 1 {
				s.metrics.RecordRetryAttempt(ctx, endpoint)
			}
			start := time.Now()
			v, err := fn(ctx)
			s.metrics.UpstreamDuration.Record(ctx, time.Since(start).Seconds())
			s.metrics.RecordUpstreamRequest(ctx, endpoint, upstreamStatus(err))
			return v, err
		})
		if maps.IsTransient(callErr) {
			return callErr
		}
		return nil
	})
	if errors.Is(cbErr, resilience.ErrCircuitOpen) {
		var zero T
		return zero, &maps.APIError{
			Endpoint: endpoint,
			Status:   "CIRCUIT_OPEN",
			Message:  "endpoint suspended after repeated failures",
			Kind:     maps.KindTransient,
		}
	}
	return result, callErr
}

// upstreamStatus derives the metric status label for one attempt.
func upstreamStatus(err error) string {
	if err == nil {
		return "OK"
	}
	var apiErr *maps.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return "error"
}
