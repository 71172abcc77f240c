package geotools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/routewise/geomcp/internal/maps"
	"github.com/routewise/geomcp/internal/tool"
)

// Risk levels shared by the safety factors and the overall assessment.
const (
	riskLow      = "Low"
	riskModerate = "Moderate"
	riskHigh     = "High"
)

// Per-factor penalties subtracted from the perfect score.
const (
	penaltyLow      = 0
	penaltyModerate = 15
	penaltyHigh     = 30
)

// Delay-ratio thresholds for the traffic factor.
const (
	trafficModerateRatio = 0.10
	trafficHighRatio     = 0.30
)

// SafetyFactor is one contributing factor of a route safety assessment.
type SafetyFactor struct {
	Name   string `json:"name"`
	Level  string `json:"level"`
	Detail string `json:"detail,omitempty"`
}

// SafetyAssessment is the result of the compound route safety analysis.
// Factors that could not be computed carry no penalty and are listed in
// UnavailableFactors.
type SafetyAssessment struct {
	SafetyScore        float64        `json:"safety_score"`
	RiskLevel          string         `json:"risk_level"`
	Factors            []SafetyFactor `json:"factors"`
	RiskFactors        []string       `json:"risk_factors"`
	UnavailableFactors []string       `json:"unavailable_factors"`
	RouteSummary       string         `json:"route_summary,omitempty"`
	TrafficModelUsed   string         `json:"traffic_model_used"`
}

// safetyInputs are the raw observations the scorer combines. Road data is
// the only optional piece; the traffic factor comes from the primary route
// lookup, whose failure fails the whole tool.
type safetyInputs struct {
	delayRatio    float64
	maxSpeedKPH   float64
	roadAvailable bool
	departureHour int
}

func (s *Service) routeSafetyTool() tool.Descriptor {
	return tool.Descriptor{
		Name: "calculate_route_safety_factors",
		Description: "Calculate safety assessment for a route. Analyzes traffic congestion, " +
			"road types, and speed limits to identify risk factors.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"origin": {
					Type:        "string",
					Description: "Starting location",
				},
				"destination": {
					Type:        "string",
					Description: "Ending location",
				},
				"departure_time": {
					Type:        "string",
					Description: "RFC 3339 timestamp for departure (defaults to now)",
				},
				"traffic_model": {
					Type:        "string",
					Enum:        []any{"best_guess", "optimistic", "pessimistic"},
					Description: "Traffic prediction model (defaults to pessimistic for safety analysis)",
				},
			},
			Required: []string{"origin", "destination"},
		},
		Handler: s.handleRouteSafety,
	}
}

func (s *Service) handleRouteSafety(ctx context.Context, args map[string]any) (any, error) {
	origin, err := stringArg(args, "origin")
	if err != nil {
		return nil, err
	}
	destination, err := stringArg(args, "destination")
	if err != nil {
		return nil, err
	}
	trafficModel := optStringArg(args, "traffic_model", "pessimistic")
	departure, err := s.departureTimeArg(args)
	if err != nil {
		return nil, err
	}

	// Step 1: traffic-aware route. This is the primary lookup — its failure
	// fails the tool.
	routes, err := call(ctx, s, "directions", func(ctx context.Context) ([]maps.Route, error) {
		return s.upstream.Directions(ctx, maps.DirectionsRequest{
			Origin:        origin,
			Destination:   destination,
			Mode:          "driving",
			DepartureTime: departure.Unix(),
			TrafficModel:  trafficModel,
		})
	})
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, &maps.APIError{Endpoint: "directions", Status: "ZERO_RESULTS", Kind: maps.KindTerminal}
	}
	route := routes[0]
	leg := route.Legs[0]

	in := safetyInputs{
		delayRatio:    delayRatio(leg),
		departureHour: departure.Hour(),
	}

	// Step 2: speed limits along the route. Degrades to an unavailable
	// factor on any failure — the Roads API may not be enabled for the key.
	in.maxSpeedKPH, in.roadAvailable = s.maxRouteSpeed(ctx, leg)

	assessment := s.assess(in)
	assessment.RouteSummary = route.Summary
	assessment.TrafficModelUsed = trafficModel
	return assessment, nil
}

// delayRatio is the extra travel time under traffic relative to free flow.
func delayRatio(leg maps.Leg) float64 {
	if leg.Duration.Value <= 0 || leg.DurationInTraffic == nil {
		return 0
	}
	return float64(leg.DurationInTraffic.Value-leg.Duration.Value) / float64(leg.Duration.Value)
}

// maxRouteSpeed samples step start-locations, snaps them to roads, and
// returns the highest posted limit. The second return is false when no speed
// data could be obtained.
func (s *Service) maxRouteSpeed(ctx context.Context, leg maps.Leg) (float64, bool) {
	if len(leg.Steps) == 0 {
		return 0, false
	}
	points := make([]maps.LatLng, 0, s.cfg.Safety.MaxSamplePoints)
	for _, st := range leg.Steps {
		if len(points) == s.cfg.Safety.MaxSamplePoints {
			break
		}
		points = append(points, st.StartLocation)
	}

	snapped, err := call(ctx, s, "snap_to_roads", func(ctx context.Context) ([]maps.SnappedPoint, error) {
		return s.upstream.SnapToRoads(ctx, maps.SnapToRoadsRequest{Path: points, Interpolate: true})
	})
	if err != nil || len(snapped) == 0 {
		slog.Warn("speed limit check degraded", "stage", "snap_to_roads", "error", err)
		return 0, false
	}

	ids := make([]string, 0, s.cfg.Safety.MaxSamplePoints)
	seen := make(map[string]bool)
	for _, p := range snapped {
		if len(ids) == s.cfg.Safety.MaxSamplePoints {
			break
		}
		if p.PlaceID == "" || seen[p.PlaceID] {
			continue
		}
		seen[p.PlaceID] = true
		ids = append(ids, p.PlaceID)
	}

	limits, err := call(ctx, s, "speed_limits", func(ctx context.Context) ([]maps.SpeedLimit, error) {
		return s.upstream.SpeedLimits(ctx, maps.SpeedLimitsRequest{PlaceIDs: ids, Units: "KPH"})
	})
	if err != nil || len(limits) == 0 {
		slog.Warn("speed limit check degraded", "stage", "speed_limits", "error", err)
		return 0, false
	}

	maxSpeed := 0.0
	for _, l := range limits {
		if l.SpeedLimit > maxSpeed {
			maxSpeed = l.SpeedLimit
		}
	}
	return maxSpeed, maxSpeed > 0
}

// assess combines the factor observations into the final score. Each factor
// contributes a weighted penalty; the score starts at 100 and is clamped to
// [0, 100]. Scores of 80 and above are low risk, 50 and above moderate,
// anything below high.
func (s *Service) assess(in safetyInputs) SafetyAssessment {
	cfg := s.cfg.Safety

	traffic := SafetyFactor{
		Name:   "traffic",
		Level:  trafficLevel(in.delayRatio),
		Detail: fmt.Sprintf("delay ratio %.2f", in.delayRatio),
	}

	road := SafetyFactor{Name: "road"}
	if in.roadAvailable {
		road.Level = riskLow
		if in.maxSpeedKPH > cfg.HighSpeedKPH {
			road.Level = riskHigh
		}
		road.Detail = fmt.Sprintf("max speed limit %.0f km/h", in.maxSpeedKPH)
	}

	timeOfDay := SafetyFactor{
		Name:   "time_of_day",
		Level:  riskLow,
		Detail: fmt.Sprintf("departure at %02d:00", in.departureHour),
	}
	if inNightWindow(in.departureHour, *cfg.NightStartHour, *cfg.NightEndHour) {
		timeOfDay.Level = riskHigh
		timeOfDay.Detail = fmt.Sprintf("night driving, departure at %02d:00", in.departureHour)
	}

	total := cfg.TrafficWeight*penalty(traffic.Level) +
		cfg.RoadWeight*penalty(road.Level) +
		cfg.TimeWeight*penalty(timeOfDay.Level)

	score := 100 - total
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	out := SafetyAssessment{
		SafetyScore: score,
		RiskLevel:   overallRisk(score),
		Factors:     []SafetyFactor{traffic, road, timeOfDay},
		RiskFactors: []string{},
	}
	for _, f := range out.Factors {
		if f.Level == "" {
			out.UnavailableFactors = append(out.UnavailableFactors, f.Name)
			continue
		}
		if f.Level != riskLow {
			out.RiskFactors = append(out.RiskFactors, fmt.Sprintf("%s: %s", f.Name, f.Detail))
		}
	}
	return out
}

func trafficLevel(delayRatio float64) string {
	switch {
	case delayRatio < trafficModerateRatio:
		return riskLow
	case delayRatio < trafficHighRatio:
		return riskModerate
	default:
		return riskHigh
	}
}

// penalty maps a factor level to its score penalty. Unavailable factors
// (empty level) contribute nothing.
func penalty(level string) float64 {
	switch level {
	case riskModerate:
		return penaltyModerate
	case riskHigh:
		return penaltyHigh
	default:
		return penaltyLow
	}
}

func overallRisk(score float64) string {
	switch {
	case score >= 80:
		return riskLow
	case score >= 50:
		return riskModerate
	default:
		return riskHigh
	}
}

// inNightWindow reports whether hour falls in [start, end), treating a
// start after the end as a window that wraps midnight.
func inNightWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
