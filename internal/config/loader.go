package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// apiKeyEnv overrides maps.api_key when set, so the credential can stay out
// of the config file.
const apiKeyEnv = "GOOGLE_MAPS_API_KEY"

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies the environment
// override and defaults, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if key := os.Getenv(apiKeyEnv); key != "" {
		cfg.Maps.APIKey = key
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = TransportSSE
	}
	if cfg.Maps.TimeoutSeconds == 0 {
		cfg.Maps.TimeoutSeconds = 30
	}
	if cfg.Tools.DefaultRadiusM == 0 {
		cfg.Tools.DefaultRadiusM = 5000
	}
	if cfg.Tools.MaxRadiusM == 0 {
		cfg.Tools.MaxRadiusM = 50000
	}
	if cfg.Tools.MaxResults == 0 {
		cfg.Tools.MaxResults = 20
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.MinWaitSeconds == 0 {
		cfg.Retry.MinWaitSeconds = 1
	}
	if cfg.Retry.MaxWaitSeconds == 0 {
		cfg.Retry.MaxWaitSeconds = 10
	}
	if cfg.Safety.TrafficWeight == 0 {
		cfg.Safety.TrafficWeight = 1
	}
	if cfg.Safety.RoadWeight == 0 {
		cfg.Safety.RoadWeight = 1
	}
	if cfg.Safety.TimeWeight == 0 {
		cfg.Safety.TimeWeight = 1
	}
	if cfg.Safety.NightStartHour == nil {
		cfg.Safety.NightStartHour = intPtr(22)
	}
	if cfg.Safety.NightEndHour == nil {
		cfg.Safety.NightEndHour = intPtr(6)
	}
	if cfg.Safety.HighSpeedKPH == 0 {
		cfg.Safety.HighSpeedKPH = 100
	}
	if cfg.Safety.MaxSamplePoints == 0 {
		cfg.Safety.MaxSamplePoints = 50
	}
	if cfg.Session.IdleTimeoutSeconds == 0 {
		cfg.Session.IdleTimeoutSeconds = 300
	}
	if cfg.Session.QueueSize == 0 {
		cfg.Session.QueueSize = 32
	}
}

func intPtr(v int) *int { return &v }

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Server.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("server.transport %q is invalid; valid values: sse, stdio", cfg.Server.Transport))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	if cfg.Maps.APIKey == "" {
		errs = append(errs, fmt.Errorf("maps.api_key is required (or set %s)", apiKeyEnv))
	}
	if cfg.Maps.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("maps.timeout_seconds %d must not be negative", cfg.Maps.TimeoutSeconds))
	}

	if cfg.Tools.DefaultRadiusM < 0 {
		errs = append(errs, fmt.Errorf("tools.default_radius_m %d must not be negative", cfg.Tools.DefaultRadiusM))
	}
	if cfg.Tools.MaxRadiusM < cfg.Tools.DefaultRadiusM {
		errs = append(errs, fmt.Errorf("tools.max_radius_m %d is below tools.default_radius_m %d", cfg.Tools.MaxRadiusM, cfg.Tools.DefaultRadiusM))
	}
	if cfg.Tools.MaxResults < 1 {
		errs = append(errs, fmt.Errorf("tools.max_results %d must be at least 1", cfg.Tools.MaxResults))
	}

	if cfg.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts %d must be at least 1", cfg.Retry.MaxAttempts))
	}
	if cfg.Retry.MinWaitSeconds < 0 {
		errs = append(errs, fmt.Errorf("retry.min_wait_seconds %.2f must not be negative", cfg.Retry.MinWaitSeconds))
	}
	if cfg.Retry.MaxWaitSeconds < cfg.Retry.MinWaitSeconds {
		errs = append(errs, fmt.Errorf("retry.max_wait_seconds %.2f is below retry.min_wait_seconds %.2f", cfg.Retry.MaxWaitSeconds, cfg.Retry.MinWaitSeconds))
	}
	if cfg.Retry.Jitter < 0 || cfg.Retry.Jitter > 1 {
		errs = append(errs, fmt.Errorf("retry.jitter %.2f is out of range [0, 1]", cfg.Retry.Jitter))
	}

	if cfg.Safety.TrafficWeight < 0 || cfg.Safety.RoadWeight < 0 || cfg.Safety.TimeWeight < 0 {
		errs = append(errs, errors.New("safety weights must not be negative"))
	}
	if h := cfg.Safety.NightStartHour; h != nil && (*h < 0 || *h > 23) {
		errs = append(errs, fmt.Errorf("safety.night_start_hour %d is out of range [0, 23]", *h))
	}
	if h := cfg.Safety.NightEndHour; h != nil && (*h < 0 || *h > 23) {
		errs = append(errs, fmt.Errorf("safety.night_end_hour %d is out of range [0, 23]", *h))
	}
	if cfg.Safety.HighSpeedKPH <= 0 {
		errs = append(errs, fmt.Errorf("safety.high_speed_kph %.1f must be positive", cfg.Safety.HighSpeedKPH))
	}
	if cfg.Safety.MaxSamplePoints < 1 {
		errs = append(errs, fmt.Errorf("safety.max_sample_points %d must be at least 1", cfg.Safety.MaxSamplePoints))
	}

	if cfg.Session.IdleTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("session.idle_timeout_seconds %d must be at least 1", cfg.Session.IdleTimeoutSeconds))
	}
	if cfg.Session.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("session.queue_size %d must be at least 1", cfg.Session.QueueSize))
	}

	return errors.Join(errs...)
}
