package geotools

import (
	"context"
	"math"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/routewise/geomcp/internal/maps"
	"github.com/routewise/geomcp/internal/tool"
)

// maxElevationSamples is the upstream elevation endpoint's sample cap.
const maxElevationSamples = 512

func (s *Service) elevationGainTool() tool.Descriptor {
	return tool.Descriptor{
		Name: "get_route_elevation_gain",
		Description: "Calculate elevation gain and retrieve elevation profile for a route. " +
			"Useful for cycling, hiking, or fuel efficiency analysis.",
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
					Enum:        []any{"driving", "walking", "bicycling"},
					Description: "Travel mode (default: bicycling — elevation matters most there)",
				},
				"samples": {
					Type:        "integer",
					Minimum:     floatPtr(2),
					Description: "Number of elevation samples along the route (default: 50, max: 512)",
				},
			},
			Required: []string{"origin", "destination"},
		},
		Handler: s.handleElevationGain,
	}
}

func (s *Service) handleElevationGain(ctx context.Context, args map[string]any) (any, error) {
	origin, err := stringArg(args, "origin")
	if err != nil {
		return nil, err
	}
	destination, err := stringArg(args, "destination")
	if err != nil {
		return nil, err
	}
	samples := optIntArg(args, "samples", 50)
	if samples > maxElevationSamples {
		samples = maxElevationSamples
	}

	routes, err := call(ctx, s, "directions", func(ctx context.Context) ([]maps.Route, error) {
		return s.upstream.Directions(ctx, maps.DirectionsRequest{
			Origin:      origin,
			Destination: destination,
			Mode:        optStringArg(args, "mode", "bicycling"),
		})
	})
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, &maps.APIError{Endpoint: "directions", Status: "ZERO_RESULTS", Kind: maps.KindTerminal}
	}
	route := routes[0]

	points, err := call(ctx, s, "elevation", func(ctx context.Context) ([]maps.ElevationPoint, error) {
		return s.upstream.ElevationAlongPath(ctx, maps.ElevationRequest{
			EncodedPolyline: route.OverviewPolyline.Points,
			Samples:         samples,
		})
	})
	if err != nil {
		return nil, err
	}

	var (
		totalGain, totalLoss float64
		maxElev              = math.Inf(-1)
		minElev              = math.Inf(1)
	)
	profile := make([]map[string]any, len(points))
	for i, p := range points {
		maxElev = math.Max(maxElev, p.Elevation)
		minElev = math.Min(minElev, p.Elevation)

		pct := 0
		if len(points) > 1 {
			pct = i * 100 / (len(points) - 1)
		}
		profile[i] = map[string]any{
			"distance_percentage": pct,
			"elevation_meters":    round1(p.Elevation),
		}

		if i > 0 {
			diff := p.Elevation - points[i-1].Elevation
			if diff > 0 {
				totalGain += diff
			} else {
				totalLoss -= diff
			}
		}
	}

	out := map[string]any{
		"route_summary":     route.Summary,
		"total_distance":    route.Legs[0].Distance.Text,
		"elevation_profile": profile,
	}
	if len(points) > 0 {
		out["elevation_stats"] = map[string]any{
			"total_gain_meters": round1(totalGain),
			"total_loss_meters": round1(totalLoss),
			"max_elevation_meters": round1(maxElev),
			"min_elevation_meters": round1(minElev),
		}
	}
	return out, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
