package geotools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/routewise/geomcp/internal/maps"
	"github.com/routewise/geomcp/internal/tool"
)

func (s *Service) geocodeTool() tool.Descriptor {
	return tool.Descriptor{
		Name:        "geocode_address",
		Description: "Convert a street address to geographic coordinates (latitude/longitude).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"address": {
					Type:        "string",
					Description: "Street address to geocode",
				},
				"components": {
					Type:        "object",
					Description: "Component filters (e.g., {'country': 'US'})",
				},
				"region": {
					Type:        "string",
					Description: "Region bias (ISO 3166-1 country code)",
				},
			},
			Required: []string{"address"},
		},
		Handler: s.handleGeocode,
	}
}

func (s *Service) handleGeocode(ctx context.Context, args map[string]any) (any, error) {
	address, err := stringArg(args, "address")
	if err != nil {
		return nil, err
	}
	components, err := stringMapArg(args, "components")
	if err != nil {
		return nil, err
	}

	results, err := call(ctx, s, "geocode", func(ctx context.Context) ([]maps.GeocodeResult, error) {
		return s.upstream.Geocode(ctx, maps.GeocodeRequest{
			Address:    address,
			Components: components,
			Region:     optStringArg(args, "region", ""),
		})
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, &maps.APIError{Endpoint: "geocode", Status: "ZERO_RESULTS", Kind: maps.KindTerminal}
	}

	first := results[0]
	return map[string]any{
		"formatted_address":  first.FormattedAddress,
		"location":           first.Geometry.Location,
		"place_id":           first.PlaceID,
		"types":              first.Types,
		"address_components": first.AddressComponents,
	}, nil
}

func (s *Service) reverseGeocodeTool() tool.Descriptor {
	return tool.Descriptor{
		Name:        "reverse_geocode",
		Description: "Convert geographic coordinates (latitude/longitude) to a street address.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"lat": {
					Type:        "number",
					Minimum:     floatPtr(-90),
					Maximum:     floatPtr(90),
					Description: "Latitude",
				},
				"lng": {
					Type:        "number",
					Minimum:     floatPtr(-180),
					Maximum:     floatPtr(180),
					Description: "Longitude",
				},
				"result_type": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Filter by result types (e.g., ['street_address', 'route'])",
				},
			},
			Required: []string{"lat", "lng"},
		},
		Handler: s.handleReverseGeocode,
	}
}

func (s *Service) handleReverseGeocode(ctx context.Context, args map[string]any) (any, error) {
	lat, err := floatArg(args, "lat")
	if err != nil {
		return nil, err
	}
	lng, err := floatArg(args, "lng")
	if err != nil {
		return nil, err
	}
	resultTypes, err := stringSliceArg(args, "result_type")
	if err != nil {
		return nil, err
	}

	results, err := call(ctx, s, "geocode", func(ctx context.Context) ([]maps.GeocodeResult, error) {
		return s.upstream.ReverseGeocode(ctx, maps.ReverseGeocodeRequest{
			Location:    maps.LatLng{Lat: lat, Lng: lng},
			ResultTypes: resultTypes,
		})
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, &maps.APIError{Endpoint: "geocode", Status: "ZERO_RESULTS", Kind: maps.KindTerminal}
	}

	first := results[0]
	return map[string]any{
		"formatted_address":  first.FormattedAddress,
		"place_id":           first.PlaceID,
		"types":              first.Types,
		"address_components": first.AddressComponents,
	}, nil
}
