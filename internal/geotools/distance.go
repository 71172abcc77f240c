package geotools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/routewise/geomcp/internal/maps"
	"github.com/routewise/geomcp/internal/tool"
)

func (s *Service) distanceMatrixTool() tool.Descriptor {
	return tool.Descriptor{
		Name: "calculate_distance_matrix",
		Description: "Calculate travel distances and times between multiple origins and " +
			"destinations. Useful for route optimization and fleet management.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"origins": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					MinItems:    intPtr(1),
					Description: "List of origin locations (addresses or 'lat,lng')",
				},
				"destinations": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					MinItems:    intPtr(1),
					Description: "List of destination locations (addresses or 'lat,lng')",
				},
				"mode": {
					Type:        "string",
					Enum:        []any{"driving", "walking", "bicycling", "transit"},
					Description: "Travel mode (default: driving)",
				},
				"avoid": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string", Enum: []any{"tolls", "highways", "ferries", "indoor"}},
					Description: "Features to avoid",
				},
				"units": {
					Type:        "string",
					Enum:        []any{"metric", "imperial"},
					Description: "Unit system for distances (default: metric)",
				},
			},
			Required: []string{"origins", "destinations"},
		},
		Handler: s.handleDistanceMatrix,
	}
}

func (s *Service) handleDistanceMatrix(ctx context.Context, args map[string]any) (any, error) {
	origins, err := stringSliceArg(args, "origins")
	if err != nil {
		return nil, err
	}
	destinations, err := stringSliceArg(args, "destinations")
	if err != nil {
		return nil, err
	}
	avoid, err := stringSliceArg(args, "avoid")
	if err != nil {
		return nil, err
	}

	matrix, err := call(ctx, s, "distance_matrix", func(ctx context.Context) (*maps.DistanceMatrix, error) {
		return s.upstream.DistanceMatrix(ctx, maps.DistanceMatrixRequest{
			Origins:      origins,
			Destinations: destinations,
			Mode:         optStringArg(args, "mode", "driving"),
			Avoid:        avoid,
			Units:        optStringArg(args, "units", "metric"),
		})
	})
	if err != nil {
		return nil, err
	}

	// Per-element failures stay in the matrix; only whole-request failures
	// produce an error envelope.
	rows := make([][]map[string]any, len(matrix.Rows))
	for i, row := range matrix.Rows {
		cells := make([]map[string]any, len(row.Elements))
		for j, el := range row.Elements {
			cell := map[string]any{
				"origin":      addressAt(matrix.OriginAddresses, i),
				"destination": addressAt(matrix.DestinationAddresses, j),
				"status":      el.Status,
			}
			if el.Status == "OK" {
				cell["distance"] = el.Distance.Text
				cell["distance_meters"] = el.Distance.Value
				cell["duration"] = el.Duration.Text
				cell["duration_seconds"] = el.Duration.Value
			} else {
				cell["error"] = fmt.Sprintf("could not calculate route: %s", el.Status)
			}
			cells[j] = cell
		}
		rows[i] = cells
	}
	return map[string]any{
		"matrix":       rows,
		"origins":      len(origins),
		"destinations": len(destinations),
	}, nil
}

func addressAt(addrs []string, i int) string {
	if i < len(addrs) {
		return addrs[i]
	}
	return ""
}
