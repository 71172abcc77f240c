// Package config provides the configuration schema, loader, and file watcher
// for the geomcp server.
package config

// LogLevel controls log verbosity for the geomcp server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Transport selects how the server exposes its tools.
type Transport string

const (
	// TransportSSE serves the HTTP SSE bridge.
	TransportSSE Transport = "sse"

	// TransportStdio speaks the Model Context Protocol over stdin/stdout.
	TransportStdio Transport = "stdio"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportSSE || t == TransportStdio
}

// Config is the root configuration structure for geomcp.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Maps    MapsConfig    `yaml:"maps"`
	Tools   ToolsConfig   `yaml:"tools"`
	Retry   RetryConfig   `yaml:"retry"`
	Safety  SafetyConfig  `yaml:"safety"`
	Session SessionConfig `yaml:"session"`
}

// ServerConfig holds network and logging settings for the geomcp server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// Transport selects the serving mode. Default: sse.
	Transport Transport `yaml:"transport"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// MapsConfig holds credentials and endpoints for the Google Maps upstream.
type MapsConfig struct {
	// APIKey authenticates every upstream request. The GOOGLE_MAPS_API_KEY
	// environment variable overrides this field when set.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the Maps API endpoint. Used in tests.
	BaseURL string `yaml:"base_url"`

	// RoadsBaseURL overrides the Roads API endpoint. Used in tests.
	RoadsBaseURL string `yaml:"roads_base_url"`

	// TimeoutSeconds is the per-request HTTP timeout. Default: 30.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// ToolsConfig holds shared tool behaviour knobs.
type ToolsConfig struct {
	// DefaultRadiusM is the place-search radius when the caller gives none.
	// Default: 5000.
	DefaultRadiusM int `yaml:"default_radius_m"`

	// MaxRadiusM caps the place-search radius. Default: 50000.
	MaxRadiusM int `yaml:"max_radius_m"`

	// MaxResults caps the number of places returned per search. Default: 20.
	MaxResults int `yaml:"max_results"`
}

// RetryConfig tunes the retry policy for transient upstream failures.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, first call included.
	// Default: 3.
	MaxAttempts int `yaml:"max_attempts"`

	// MinWaitSeconds is the first backoff delay. Default: 1.
	MinWaitSeconds float64 `yaml:"min_wait_seconds"`

	// MaxWaitSeconds caps the backoff delay. Default: 10.
	MaxWaitSeconds float64 `yaml:"max_wait_seconds"`

	// Jitter spreads each delay downward by up to this fraction, in [0, 1].
	// Default: 0.
	Jitter float64 `yaml:"jitter"`
}

// SafetyConfig tunes the route safety scorer.
type SafetyConfig struct {
	// TrafficWeight, RoadWeight, and TimeWeight scale each factor's penalty.
	// Default: 1 each.
	TrafficWeight float64 `yaml:"traffic_weight"`
	RoadWeight    float64 `yaml:"road_weight"`
	TimeWeight    float64 `yaml:"time_weight"`

	// NightStartHour and NightEndHour bound the elevated-risk night window.
	// A start after the end wraps midnight. Defaults: 22 and 6.
	NightStartHour *int `yaml:"night_start_hour"`
	NightEndHour   *int `yaml:"night_end_hour"`

	// HighSpeedKPH is the speed limit above which the road factor is high
	// risk. Default: 100.
	HighSpeedKPH float64 `yaml:"high_speed_kph"`

	// MaxSamplePoints caps how many route points are checked for speed
	// limits. Default: 50.
	MaxSamplePoints int `yaml:"max_sample_points"`
}

// SessionConfig tunes the SSE transport sessions.
type SessionConfig struct {
	// IdleTimeoutSeconds closes sessions with no activity. Default: 300.
	IdleTimeoutSeconds int `yaml:"idle_timeout_seconds"`

	// QueueSize is the per-session request and result buffer. Default: 32.
	QueueSize int `yaml:"queue_size"`
}
