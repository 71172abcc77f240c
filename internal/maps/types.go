package maps

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TextValue is the upstream's paired human-readable / machine-readable
// representation of a distance or duration.
type TextValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

// ─── Directions ────────────────────────────────────────────────────────────────

// DirectionsRequest describes one directions lookup.
type DirectionsRequest struct {
	// Origin and Destination are addresses or "lat,lng" strings.
	Origin      string
	Destination string

	// Mode is the travel mode: driving, walking, bicycling, or transit.
	// Empty means driving.
	Mode string

	// DepartureTime is a Unix timestamp in seconds. When set (driving mode),
	// the response legs carry DurationInTraffic.
	DepartureTime int64

	// TrafficModel selects the traffic prediction model: best_guess,
	// optimistic, or pessimistic. Only meaningful with DepartureTime.
	TrafficModel string

	// Alternatives requests more than one route.
	Alternatives bool

	// Avoid lists route features to avoid (tolls, highways, ferries, indoor).
	Avoid []string
}

// Route is one route alternative from the directions endpoint.
type Route struct {
	Summary          string   `json:"summary"`
	Warnings         []string `json:"warnings"`
	OverviewPolyline struct {
		Points string `json:"points"`
	} `json:"overview_polyline"`
	Legs []Leg `json:"legs"`
}

// Leg is one leg of a route. Requests without waypoints produce exactly one.
type Leg struct {
	Distance          TextValue  `json:"distance"`
	Duration          TextValue  `json:"duration"`
	DurationInTraffic *TextValue `json:"duration_in_traffic,omitempty"`
	StartAddress      string     `json:"start_address"`
	EndAddress        string     `json:"end_address"`
	StartLocation     LatLng     `json:"start_location"`
	EndLocation       LatLng     `json:"end_location"`
	Steps             []Step     `json:"steps"`
}

// Step is one navigation step within a leg.
type Step struct {
	HTMLInstructions string    `json:"html_instructions"`
	Distance         TextValue `json:"distance"`
	Duration         TextValue `json:"duration"`
	StartLocation    LatLng    `json:"start_location"`
}

// ─── Geocoding ─────────────────────────────────────────────────────────────────

// GeocodeRequest describes a forward geocoding lookup.
type GeocodeRequest struct {
	Address string

	// Components restricts results by component, e.g. {"country": "US"}.
	Components map[string]string

	// Region biases results towards a ccTLD region code.
	Region string
}

// ReverseGeocodeRequest describes a coordinates-to-address lookup.
type ReverseGeocodeRequest struct {
	Location LatLng

	// ResultTypes filters results to the given address types.
	ResultTypes []string
}

// GeocodeResult is one geocoding match.
type GeocodeResult struct {
	FormattedAddress string `json:"formatted_address"`
	Geometry         struct {
		Location LatLng `json:"location"`
	} `json:"geometry"`
	PlaceID           string             `json:"place_id"`
	Types             []string           `json:"types"`
	AddressComponents []AddressComponent `json:"address_components"`
}

// AddressComponent is one structured piece of a geocoded address.
type AddressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// ─── Distance matrix ───────────────────────────────────────────────────────────

// DistanceMatrixRequest describes a multi-origin/destination distance lookup.
type DistanceMatrixRequest struct {
	Origins      []string
	Destinations []string
	Mode         string
	Avoid        []string
	Units        string // metric or imperial
}

// DistanceMatrix is the decoded distance matrix response.
type DistanceMatrix struct {
	OriginAddresses      []string            `json:"origin_addresses"`
	DestinationAddresses []string            `json:"destination_addresses"`
	Rows                 []DistanceMatrixRow `json:"rows"`
}

// DistanceMatrixRow holds the elements for one origin.
type DistanceMatrixRow struct {
	Elements []DistanceMatrixElement `json:"elements"`
}

// DistanceMatrixElement is one origin→destination cell. Status is "OK" when
// Distance and Duration are populated; other values (e.g. "NOT_FOUND",
// "ZERO_RESULTS") mean the pair could not be routed.
type DistanceMatrixElement struct {
	Status   string    `json:"status"`
	Distance TextValue `json:"distance"`
	Duration TextValue `json:"duration"`
}

// ─── Places ────────────────────────────────────────────────────────────────────

// NearbySearchRequest describes a nearby places search.
type NearbySearchRequest struct {
	Location LatLng
	RadiusM  int
	Keyword  string
	Type     string
}

// Place is one result from nearby search.
type Place struct {
	Name     string  `json:"name"`
	Vicinity string  `json:"vicinity"`
	Rating   float64 `json:"rating"`
	Ratings  int     `json:"user_ratings_total"`
	PlaceID  string  `json:"place_id"`
	Geometry struct {
		Location LatLng `json:"location"`
	} `json:"geometry"`
	Types        []string `json:"types"`
	OpeningHours *struct {
		OpenNow bool `json:"open_now"`
	} `json:"opening_hours,omitempty"`
}

// PlaceDetails is the full detail record for one place.
type PlaceDetails struct {
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address"`
	PhoneNumber      string  `json:"formatted_phone_number"`
	Website          string  `json:"website"`
	Rating           float64 `json:"rating"`
	Ratings          int     `json:"user_ratings_total"`
	PlaceID          string  `json:"place_id"`
	Geometry         struct {
		Location LatLng `json:"location"`
	} `json:"geometry"`
	Types        []string `json:"types"`
	OpeningHours *struct {
		OpenNow     bool     `json:"open_now"`
		WeekdayText []string `json:"weekday_text"`
	} `json:"opening_hours,omitempty"`
}

// ─── Roads ─────────────────────────────────────────────────────────────────────

// SnapToRoadsRequest describes a GPS-path snapping request.
type SnapToRoadsRequest struct {
	Path        []LatLng
	Interpolate bool
}

// SnappedPoint is one road-snapped coordinate. OriginalIndex is nil for
// points inserted by interpolation.
type SnappedPoint struct {
	Location struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	OriginalIndex *int   `json:"originalIndex,omitempty"`
	PlaceID       string `json:"placeId"`
}

// SpeedLimitsRequest describes a speed-limit lookup for road segments.
type SpeedLimitsRequest struct {
	PlaceIDs []string
	Units    string // KPH or MPH
}

// SpeedLimit is the posted limit for one road segment.
type SpeedLimit struct {
	PlaceID    string  `json:"placeId"`
	SpeedLimit float64 `json:"speedLimit"`
	Units      string  `json:"units"`
}

// ─── Elevation ─────────────────────────────────────────────────────────────────

// ElevationRequest samples elevations along an encoded polyline.
type ElevationRequest struct {
	// EncodedPolyline is the route's overview polyline, as returned by the
	// directions endpoint.
	EncodedPolyline string

	// Samples is the number of equidistant sample points (1–512).
	Samples int
}

// ElevationPoint is one sampled elevation.
type ElevationPoint struct {
	Elevation float64 `json:"elevation"`
	Location  LatLng  `json:"location"`
}
