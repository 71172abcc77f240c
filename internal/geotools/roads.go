package geotools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/routewise/geomcp/internal/maps"
	"github.com/routewise/geomcp/internal/tool"
)

func (s *Service) snapToRoadsTool() tool.Descriptor {
	return tool.Descriptor{
		Name: "snap_to_roads",
		Description: "Snap GPS coordinates to the nearest road. Useful for cleaning noisy " +
			"GPS data from vehicle tracking systems.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type: "array",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"lat": {Type: "number"},
							"lng": {Type: "number"},
						},
						Required: []string{"lat", "lng"},
					},
					MinItems:    intPtr(2),
					MaxItems:    intPtr(100),
					Description: "Array of GPS coordinates to snap to roads",
				},
				"interpolate": {
					Type:        "boolean",
					Description: "Fill gaps between GPS points (default: true)",
				},
			},
			Required: []string{"path"},
		},
		Handler: s.handleSnapToRoads,
	}
}

func (s *Service) handleSnapToRoads(ctx context.Context, args map[string]any) (any, error) {
	path, err := latLngSliceArg(args, "path")
	if err != nil {
		return nil, err
	}

	points, err := call(ctx, s, "snap_to_roads", func(ctx context.Context) ([]maps.SnappedPoint, error) {
		return s.upstream.SnapToRoads(ctx, maps.SnapToRoadsRequest{
			Path:        path,
			Interpolate: optBoolArg(args, "interpolate", true),
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, len(points))
	for i, p := range points {
		out[i] = map[string]any{
			"location": map[string]float64{
				"lat": p.Location.Latitude,
				"lng": p.Location.Longitude,
			},
			"original_index": p.OriginalIndex,
			"place_id":       p.PlaceID,
		}
	}
	return map[string]any{"snapped_points": out, "count": len(out)}, nil
}

func (s *Service) speedLimitsTool() tool.Descriptor {
	return tool.Descriptor{
		Name: "get_speed_limits",
		Description: "Get speed limit data for road segments. Requires place IDs from " +
			"snap_to_roads. Critical for fleet safety and compliance monitoring.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"place_ids": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					MinItems:    intPtr(1),
					MaxItems:    intPtr(100),
					Description: "Place IDs from snap_to_roads results",
				},
				"units": {
					Type:        "string",
					Enum:        []any{"KPH", "MPH"},
					Description: "Speed limit units (default: KPH)",
				},
			},
			Required: []string{"place_ids"},
		},
		Handler: s.handleSpeedLimits,
	}
}

func (s *Service) handleSpeedLimits(ctx context.Context, args map[string]any) (any, error) {
	placeIDs, err := stringSliceArg(args, "place_ids")
	if err != nil {
		return nil, err
	}

	limits, err := call(ctx, s, "speed_limits", func(ctx context.Context) ([]maps.SpeedLimit, error) {
		return s.upstream.SpeedLimits(ctx, maps.SpeedLimitsRequest{
			PlaceIDs: placeIDs,
			Units:    optStringArg(args, "units", "KPH"),
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, len(limits))
	for i, l := range limits {
		out[i] = map[string]any{
			"place_id":    l.PlaceID,
			"speed_limit": l.SpeedLimit,
			"units":       l.Units,
		}
	}
	return map[string]any{"speed_limits": out, "count": len(out)}, nil
}
