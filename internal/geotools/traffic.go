package geotools

import (
	"context"
	"math"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/routewise/geomcp/internal/maps"
	"github.com/routewise/geomcp/internal/tool"
)

// Congestion bands by delay ratio (extra time over the free-flow duration).
const (
	moderateDelayRatio = 0.10
	heavyDelayRatio    = 0.30
)

func (s *Service) trafficConditionsTool() tool.Descriptor {
	return tool.Descriptor{
		Name: "get_traffic_conditions",
		Description: "Analyze real-time traffic conditions between origin and destination. " +
			"Returns duration in traffic, delay estimates, and congestion level.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"origin": {
					Type:        "string",
					Description: "Starting location (address or 'lat,lng')",
				},
				"destination": {
					Type:        "string",
					Description: "Ending location (address or 'lat,lng')",
				},
				"departure_time": {
					Type:        "string",
					Description: "RFC 3339 timestamp for departure (defaults to now)",
				},
				"traffic_model": {
					Type:        "string",
					Enum:        []any{"best_guess", "optimistic", "pessimistic"},
					Description: "Traffic prediction model (default: best_guess)",
				},
			},
			Required: []string{"origin", "destination"},
		},
		Handler: s.handleTrafficConditions,
	}
}

func (s *Service) handleTrafficConditions(ctx context.Context, args map[string]any) (any, error) {
	origin, err := stringArg(args, "origin")
	if err != nil {
		return nil, err
	}
	destination, err := stringArg(args, "destination")
	if err != nil {
		return nil, err
	}
	trafficModel := optStringArg(args, "traffic_model", "best_guess")
	departure, err := s.departureTimeArg(args)
	if err != nil {
		return nil, err
	}

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

	normalSec := leg.Duration.Value
	normalText := leg.Duration.Text
	trafficSec := normalSec
	trafficText := normalText
	if leg.DurationInTraffic != nil {
		trafficSec = leg.DurationInTraffic.Value
		trafficText = leg.DurationInTraffic.Text
	}

	delaySec := trafficSec - normalSec
	if delaySec < 0 {
		delaySec = 0
	}

	return map[string]any{
		"route_summary":      route.Summary,
		"normal_duration":    normalText,
		"traffic_duration":   trafficText,
		"delay_minutes":      math.Round(float64(delaySec)/60*10) / 10,
		"congestion_level":   congestionLevel(normalSec, trafficSec),
		"distance":           leg.Distance.Text,
		"start_address":      leg.StartAddress,
		"end_address":        leg.EndAddress,
		"traffic_model_used": trafficModel,
	}, nil
}

// congestionLevel bands the delay ratio: under 10% extra time is Low, under
// 30% Moderate, anything above Heavy.
func congestionLevel(normalSec, trafficSec int) string {
	if normalSec <= 0 {
		return "Low"
	}
	ratio := float64(trafficSec-normalSec) / float64(normalSec)
	switch {
	case ratio < moderateDelayRatio:
		return "Low"
	case ratio < heavyDelayRatio:
		return "Moderate"
	default:
		return "Heavy"
	}
}
