package geotools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/routewise/geomcp/internal/maps"
	"github.com/routewise/geomcp/internal/tool"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// parseLatLng parses a "lat,lng" string.
func parseLatLng(s string) (maps.LatLng, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return maps.LatLng{}, fmt.Errorf("%w: location must be \"lat,lng\"", tool.ErrInvalidArguments)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return maps.LatLng{}, fmt.Errorf("%w: invalid latitude %q", tool.ErrInvalidArguments, parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return maps.LatLng{}, fmt.Errorf("%w: invalid longitude %q", tool.ErrInvalidArguments, parts[1])
	}
	return maps.LatLng{Lat: lat, Lng: lng}, nil
}

func (s *Service) searchPlacesTool() tool.Descriptor {
	return tool.Descriptor{
		Name: "search_places",
		Description: "Search for nearby places based on location and keywords. " +
			"Returns place names, addresses, ratings, and other details.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"location": {
					Type:        "string",
					Description: "Location as 'lat,lng' (e.g., '37.7749,-122.4194')",
				},
				"keyword": {
					Type:        "string",
					Description: "Keyword to search for (e.g., 'gas station', 'restaurant')",
				},
				"radius": {
					Type:        "integer",
					Minimum:     floatPtr(1),
					Description: "Search radius in meters (default: 5000, max: 50000)",
				},
				"type": {
					Type:        "string",
					Description: "Place type (e.g., 'restaurant', 'gas_station', 'parking')",
				},
			},
			Required: []string{"location", "keyword"},
		},
		Handler: s.handleSearchPlaces,
	}
}

func (s *Service) handleSearchPlaces(ctx context.Context, args map[string]any) (any, error) {
	locStr, err := stringArg(args, "location")
	if err != nil {
		return nil, err
	}
	location, err := parseLatLng(locStr)
	if err != nil {
		return nil, err
	}
	keyword, err := stringArg(args, "keyword")
	if err != nil {
		return nil, err
	}
	radius := optIntArg(args, "radius", s.cfg.DefaultRadiusM)
	if radius > s.cfg.MaxRadiusM {
		radius = s.cfg.MaxRadiusM
	}

	places, err := call(ctx, s, "nearby_search", func(ctx context.Context) ([]maps.Place, error) {
		return s.upstream.NearbySearch(ctx, maps.NearbySearchRequest{
			Location: location,
			RadiusM:  radius,
			Keyword:  keyword,
			Type:     optStringArg(args, "type", ""),
		})
	})
	if err != nil {
		return nil, err
	}

	if len(places) > s.cfg.MaxResults {
		places = places[:s.cfg.MaxResults]
	}
	out := make([]map[string]any, len(places))
	for i, p := range places {
		out[i] = map[string]any{
			"name":     p.Name,
			"address":  p.Vicinity,
			"location": p.Geometry.Location,
			"rating":   p.Rating,
			"types":    p.Types,
			"place_id": p.PlaceID,
		}
		if p.OpeningHours != nil {
			out[i]["open_now"] = p.OpeningHours.OpenNow
		}
	}
	return map[string]any{"places": out, "count": len(out)}, nil
}

func (s *Service) placeDetailsTool() tool.Descriptor {
	return tool.Descriptor{
		Name: "get_place_details",
		Description: "Get detailed information about a place: address, phone number, " +
			"website, rating, and opening hours.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"place_id": {
					Type:        "string",
					Description: "Place ID from search_places results",
				},
			},
			Required: []string{"place_id"},
		},
		Handler: s.handlePlaceDetails,
	}
}

func (s *Service) handlePlaceDetails(ctx context.Context, args map[string]any) (any, error) {
	placeID, err := stringArg(args, "place_id")
	if err != nil {
		return nil, err
	}

	details, err := call(ctx, s, "place_details", func(ctx context.Context) (*maps.PlaceDetails, error) {
		return s.upstream.PlaceDetails(ctx, placeID)
	})
	if err != nil {
		return nil, err
	}

	out := map[string]any{
		"name":         details.Name,
		"address":      details.FormattedAddress,
		"phone_number": details.PhoneNumber,
		"website":      details.Website,
		"rating":       details.Rating,
		"ratings":      details.Ratings,
		"location":     details.Geometry.Location,
		"types":        details.Types,
		"place_id":     details.PlaceID,
	}
	if details.OpeningHours != nil {
		out["open_now"] = details.OpeningHours.OpenNow
		out["opening_hours"] = details.OpeningHours.WeekdayText
	}
	return out, nil
}
