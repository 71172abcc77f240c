package geotools

import (
	"context"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/routewise/geomcp/internal/maps"
	"github.com/routewise/geomcp/internal/tool"
)

func (s *Service) directionsTool() tool.Descriptor {
	return tool.Descriptor{
		Name: "get_directions",
		Description: "Get route directions between origin and destination with real-time " +
			"traffic data. Returns routes with distance, duration, steps, and traffic information.",
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
				"mode": {
					Type:        "string",
					Enum:        []any{"driving", "walking", "bicycling", "transit"},
					Description: "Travel mode (default: driving)",
				},
				"departure_time": {
					Type:        "string",
					Description: "RFC 3339 timestamp for departure (for traffic estimation)",
				},
				"alternatives": {
					Type:        "boolean",
					Description: "Return alternative routes (default: true)",
				},
				"avoid": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string", Enum: []any{"tolls", "highways", "ferries", "indoor"}},
					Description: "Features to avoid",
				},
				"traffic_model": {
					Type:        "string",
					Enum:        []any{"best_guess", "optimistic", "pessimistic"},
					Description: "Traffic prediction model (default: best_guess)",
				},
			},
			Required: []string{"origin", "destination"},
		},
		Handler: s.handleDirections,
	}
}

func (s *Service) handleDirections(ctx context.Context, args map[string]any) (any, error) {
	origin, err := stringArg(args, "origin")
	if err != nil {
		return nil, err
	}
	destination, err := stringArg(args, "destination")
	if err != nil {
		return nil, err
	}
	mode := optStringArg(args, "mode", "driving")
	avoid, err := stringSliceArg(args, "avoid")
	if err != nil {
		return nil, err
	}

	req := maps.DirectionsRequest{
		Origin:       origin,
		Destination:  destination,
		Mode:         mode,
		Alternatives: optBoolArg(args, "alternatives", true),
		Avoid:        avoid,
	}
	// Traffic estimation only applies to driving.
	if mode == "driving" {
		departure, err := s.departureTimeArg(args)
		if err != nil {
			return nil, err
		}
		req.DepartureTime = departure.Unix()
		req.TrafficModel = optStringArg(args, "traffic_model", "best_guess")
	}

	routes, err := call(ctx, s, "directions", func(ctx context.Context) ([]maps.Route, error) {
		return s.upstream.Directions(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, len(routes))
	for i, r := range routes {
		out[i] = formatRoute(r)
	}
	return map[string]any{"routes": out, "count": len(out)}, nil
}

// formatRoute flattens one route alternative to its first leg, the shape
// requests without waypoints produce.
func formatRoute(r maps.Route) map[string]any {
	out := map[string]any{
		"summary":  r.Summary,
		"warnings": r.Warnings,
	}
	if len(r.Legs) == 0 {
		return out
	}
	leg := r.Legs[0]
	out["distance"] = leg.Distance.Text
	out["distance_meters"] = leg.Distance.Value
	out["duration"] = leg.Duration.Text
	out["duration_seconds"] = leg.Duration.Value
	out["start_address"] = leg.StartAddress
	out["end_address"] = leg.EndAddress
	out["start_location"] = leg.StartLocation
	out["end_location"] = leg.EndLocation
	if leg.DurationInTraffic != nil {
		out["duration_in_traffic"] = leg.DurationInTraffic.Text
	}

	steps := make([]map[string]any, len(leg.Steps))
	for i, st := range leg.Steps {
		steps[i] = map[string]any{
			"instruction": stripInstructionMarkup(st.HTMLInstructions),
			"distance":    st.Distance.Text,
			"duration":    st.Duration.Text,
		}
	}
	out["steps"] = steps
	return out
}

// stripInstructionMarkup removes the bold tags the directions endpoint embeds
// in step instructions and breaks before inline div blocks.
func stripInstructionMarkup(s string) string {
	s = strings.ReplaceAll(s, "<b>", "")
	s = strings.ReplaceAll(s, "</b>", "")
	return strings.ReplaceAll(s, "<div", "\n<div")
}
