// Package maps provides a typed client for the Google Maps web services:
// directions, geocoding, distance matrix, places, roads, and elevation.
//
// Every method returns either a decoded result or a classified failure
// (*[APIError]); the classification drives the retry layer. The client holds
// no per-request state and a single instance is shared by all tool handlers —
// the underlying [http.Client] connection pool is safe for concurrent use.
package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL      = "https://maps.googleapis.com"
	defaultRoadsBaseURL = "https://roads.googleapis.com"
	defaultTimeout      = 30 * time.Second
)

// Option is a functional option for configuring the [Client].
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Useful for injecting a
// transport with custom pooling or for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the core web-services base URL. Used in tests to
// point the client at an httptest server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRoadsBaseURL overrides the Roads API base URL.
func WithRoadsBaseURL(u string) Option {
	return func(c *Client) { c.roadsBaseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-attempt request timeout. Ignored when a custom
// HTTP client is supplied via [WithHTTPClient].
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client calls the Google Maps web services. Create instances with [NewClient].
type Client struct {
	key          string
	baseURL      string
	roadsBaseURL string
	timeout      time.Duration
	httpClient   *http.Client
}

// NewClient creates a Client authenticating with the given API key.
// key must be non-empty.
func NewClient(key string, opts ...Option) (*Client, error) {
	if key == "" {
		return nil, errors.New("maps: API key must not be empty")
	}
	c := &Client{
		key:          key,
		baseURL:      defaultBaseURL,
		roadsBaseURL: defaultRoadsBaseURL,
		timeout:      defaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// ─── Core endpoints ────────────────────────────────────────────────────────────

// Directions returns route alternatives between origin and destination.
// A ZERO_RESULTS answer surfaces as a terminal *[APIError].
func (c *Client) Directions(ctx context.Context, req DirectionsRequest) ([]Route, error) {
	q := url.Values{}
	q.Set("origin", req.Origin)
	q.Set("destination", req.Destination)
	mode := req.Mode
	if mode == "" {
		mode = "driving"
	}
	q.Set("mode", mode)
	if req.DepartureTime > 0 {
		q.Set("departure_time", strconv.FormatInt(req.DepartureTime, 10))
	}
	if req.TrafficModel != "" {
		q.Set("traffic_model", req.TrafficModel)
	}
	if req.Alternatives {
		q.Set("alternatives", "true")
	}
	if len(req.Avoid) > 0 {
		q.Set("avoid", strings.Join(req.Avoid, "|"))
	}

	var resp struct {
		statusEnvelope
		Routes []Route `json:"routes"`
	}
	if err := c.getJSON(ctx, c.baseURL, "/maps/api/directions/json", "directions", q, &resp); err != nil {
		return nil, err
	}
	if err := resp.check("directions"); err != nil {
		return nil, err
	}
	return resp.Routes, nil
}

// Geocode resolves a street address to coordinates.
func (c *Client) Geocode(ctx context.Context, req GeocodeRequest) ([]GeocodeResult, error) {
	q := url.Values{}
	q.Set("address", req.Address)
	if len(req.Components) > 0 {
		parts := make([]string, 0, len(req.Components))
		for k, v := range req.Components {
			parts = append(parts, k+":"+v)
		}
		q.Set("components", strings.Join(parts, "|"))
	}
	if req.Region != "" {
		q.Set("region", req.Region)
	}
	return c.geocode(ctx, q)
}

// ReverseGeocode resolves coordinates to addresses.
func (c *Client) ReverseGeocode(ctx context.Context, req ReverseGeocodeRequest) ([]GeocodeResult, error) {
	q := url.Values{}
	q.Set("latlng", formatLatLng(req.Location))
	if len(req.ResultTypes) > 0 {
		q.Set("result_type", strings.Join(req.ResultTypes, "|"))
	}
	return c.geocode(ctx, q)
}

func (c *Client) geocode(ctx context.Context, q url.Values) ([]GeocodeResult, error) {
	var resp struct {
		statusEnvelope
		Results []GeocodeResult `json:"results"`
	}
	if err := c.getJSON(ctx, c.baseURL, "/maps/api/geocode/json", "geocode", q, &resp); err != nil {
		return nil, err
	}
	if err := resp.check("geocode"); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// DistanceMatrix computes travel distance and time for every origin →
// destination pair. Per-element failures are reported in the element status,
// not as an error.
func (c *Client) DistanceMatrix(ctx context.Context, req DistanceMatrixRequest) (*DistanceMatrix, error) {
	q := url.Values{}
	q.Set("origins", strings.Join(req.Origins, "|"))
	q.Set("destinations", strings.Join(req.Destinations, "|"))
	if req.Mode != "" {
		q.Set("mode", req.Mode)
	}
	if len(req.Avoid) > 0 {
		q.Set("avoid", strings.Join(req.Avoid, "|"))
	}
	if req.Units != "" {
		q.Set("units", req.Units)
	}

	var resp struct {
		statusEnvelope
		DistanceMatrix
	}
	if err := c.getJSON(ctx, c.baseURL, "/maps/api/distancematrix/json", "distance_matrix", q, &resp); err != nil {
		return nil, err
	}
	if err := resp.check("distance_matrix"); err != nil {
		return nil, err
	}
	return &resp.DistanceMatrix, nil
}

// NearbySearch finds places around a location matching a keyword.
func (c *Client) NearbySearch(ctx context.Context, req NearbySearchRequest) ([]Place, error) {
	q := url.Values{}
	q.Set("location", formatLatLng(req.Location))
	q.Set("radius", strconv.Itoa(req.RadiusM))
	if req.Keyword != "" {
		q.Set("keyword", req.Keyword)
	}
	if req.Type != "" {
		q.Set("type", req.Type)
	}

	var resp struct {
		statusEnvelope
		Results []Place `json:"results"`
	}
	if err := c.getJSON(ctx, c.baseURL, "/maps/api/place/nearbysearch/json", "nearby_search", q, &resp); err != nil {
		return nil, err
	}
	if err := resp.check("nearby_search"); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// PlaceDetails fetches the full detail record for a place ID.
func (c *Client) PlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error) {
	q := url.Values{}
	q.Set("place_id", placeID)

	var resp struct {
		statusEnvelope
		Result PlaceDetails `json:"result"`
	}
	if err := c.getJSON(ctx, c.baseURL, "/maps/api/place/details/json", "place_details", q, &resp); err != nil {
		return nil, err
	}
	if err := resp.check("place_details"); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// ElevationAlongPath samples elevations at equidistant points along an
// encoded polyline.
func (c *Client) ElevationAlongPath(ctx context.Context, req ElevationRequest) ([]ElevationPoint, error) {
	q := url.Values{}
	q.Set("path", "enc:"+req.EncodedPolyline)
	q.Set("samples", strconv.Itoa(req.Samples))

	var resp struct {
		statusEnvelope
		Results []ElevationPoint `json:"results"`
	}
	if err := c.getJSON(ctx, c.baseURL, "/maps/api/elevation/json", "elevation", q, &resp); err != nil {
		return nil, err
	}
	if err := resp.check("elevation"); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// ─── Roads endpoints ───────────────────────────────────────────────────────────
// The Roads API speaks a different dialect: success responses have no status
// field and failures arrive as a JSON error object with a gRPC-style status.

// SnapToRoads snaps a GPS path to the road network.
func (c *Client) SnapToRoads(ctx context.Context, req SnapToRoadsRequest) ([]SnappedPoint, error) {
	points := make([]string, len(req.Path))
	for i, p := range req.Path {
		points[i] = formatLatLng(p)
	}
	q := url.Values{}
	q.Set("path", strings.Join(points, "|"))
	if req.Interpolate {
		q.Set("interpolate", "true")
	}

	var resp struct {
		SnappedPoints []SnappedPoint `json:"snappedPoints"`
	}
	if err := c.getJSON(ctx, c.roadsBaseURL, "/v1/snapToRoads", "snap_to_roads", q, &resp); err != nil {
		return nil, err
	}
	return resp.SnappedPoints, nil
}

// SpeedLimits returns posted speed limits for road segments identified by
// place IDs from [Client.SnapToRoads].
func (c *Client) SpeedLimits(ctx context.Context, req SpeedLimitsRequest) ([]SpeedLimit, error) {
	q := url.Values{}
	for _, id := range req.PlaceIDs {
		q.Add("placeId", id)
	}
	if req.Units != "" {
		q.Set("units", req.Units)
	}

	var resp struct {
		SpeedLimits []SpeedLimit `json:"speedLimits"`
	}
	if err := c.getJSON(ctx, c.roadsBaseURL, "/v1/speedLimits", "speed_limits", q, &resp); err != nil {
		return nil, err
	}
	return resp.SpeedLimits, nil
}

// ─── Shared plumbing ───────────────────────────────────────────────────────────

// statusEnvelope is the status header common to the core web services.
type statusEnvelope struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// check converts a non-OK status into a classified *APIError.
func (s *statusEnvelope) check(endpoint string) error {
	if s.Status == "OK" {
		return nil
	}
	return &APIError{
		Endpoint: endpoint,
		Status:   s.Status,
		HTTPCode: http.StatusOK,
		Message:  s.ErrorMessage,
		Kind:     classifyStatus(s.Status),
	}
}

// roadsErrorBody is the Roads API failure envelope.
type roadsErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// getJSON performs one GET against base+path with the API key appended,
// decoding the response into out. Transport-level failures and non-2xx
// responses come back as classified *APIError values; context cancellation
// is passed through untouched.
func (c *Client) getJSON(ctx context.Context, base, path, endpoint string, q url.Values, out any) error {
	q.Set("key", c.key)
	reqURL := base + path + "?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &APIError{Endpoint: endpoint, Status: "INVALID_REQUEST", Message: err.Error(), Kind: KindTerminal}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{Endpoint: endpoint, Status: "TRANSPORT_ERROR", Message: err.Error(), Kind: KindTransient}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &APIError{Endpoint: endpoint, Status: "TRANSPORT_ERROR", Message: err.Error(), Kind: KindTransient}
	}

	if httpResp.StatusCode != http.StatusOK {
		apiErr := &APIError{
			Endpoint: endpoint,
			Status:   fmt.Sprintf("HTTP_%d", httpResp.StatusCode),
			HTTPCode: httpResp.StatusCode,
			Kind:     classifyHTTP(httpResp.StatusCode),
		}
		// The Roads API wraps failures in a structured error body; prefer its
		// status string when present.
		var rb roadsErrorBody
		if jsonErr := json.Unmarshal(body, &rb); jsonErr == nil && rb.Error.Status != "" {
			apiErr.Status = rb.Error.Status
			apiErr.Message = rb.Error.Message
			apiErr.Kind = classifyStatus(rb.Error.Status)
			// HTTP-level overload still wins: a 429/5xx is retryable whatever
			// the body claims.
			if classifyHTTP(httpResp.StatusCode) == KindTransient {
				apiErr.Kind = KindTransient
			}
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Endpoint: endpoint, Status: "DECODE_ERROR", Message: err.Error(), Kind: KindTerminal}
	}
	return nil
}

// formatLatLng renders a coordinate pair in the "lat,lng" form the web
// services expect.
func formatLatLng(p LatLng) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}
