package geotools

import (
	"fmt"
	"time"

	"github.com/routewise/geomcp/internal/maps"
	"github.com/routewise/geomcp/internal/tool"
)

// Argument extraction helpers. Args have passed schema validation before a
// handler runs, so the type assertions here only fail on handler/schema
// drift; failures are reported as invalid-arguments rather than panicking.

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", tool.ErrInvalidArguments, key)
	}
	return v, nil
}

func optStringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

func optBoolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

// optIntArg reads a JSON number (float64 after decoding) as an int.
func optIntArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func floatArg(args map[string]any, key string) (float64, error) {
	switch v := args[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a number", tool.ErrInvalidArguments, key)
	}
}

func stringSliceArg(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an array of strings", tool.ErrInvalidArguments, key)
	}
	out := make([]string, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] must be a string", tool.ErrInvalidArguments, key, i)
		}
		out[i] = s
	}
	return out, nil
}

func stringMapArg(args map[string]any, key string) (map[string]string, error) {
	raw, ok := args[key]
	if !ok {
		return nil, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an object", tool.ErrInvalidArguments, key)
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s must be a string", tool.ErrInvalidArguments, key, k)
		}
		out[k] = s
	}
	return out, nil
}

// latLngSliceArg decodes an array of {lat, lng} objects.
func latLngSliceArg(args map[string]any, key string) ([]maps.LatLng, error) {
	raw, ok := args[key].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an array of coordinates", tool.ErrInvalidArguments, key)
	}
	out := make([]maps.LatLng, len(raw))
	for i, it := range raw {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] must be an object", tool.ErrInvalidArguments, key, i)
		}
		lat, err := floatArg(obj, "lat")
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d].lat must be a number", tool.ErrInvalidArguments, key, i)
		}
		lng, err := floatArg(obj, "lng")
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d].lng must be a number", tool.ErrInvalidArguments, key, i)
		}
		out[i] = maps.LatLng{Lat: lat, Lng: lng}
	}
	return out, nil
}

// departureTimeArg parses an optional RFC 3339 departure_time argument,
// defaulting to the service clock.
func (s *Service) departureTimeArg(args map[string]any) (time.Time, error) {
	raw, ok := args["departure_time"].(string)
	if !ok {
		return s.now(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: departure_time must be an RFC 3339 timestamp: %v",
			tool.ErrInvalidArguments, err)
	}
	return t, nil
}
