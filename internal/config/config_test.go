package config_test

import (
	"strings"
	"testing"

	"github.com/routewise/geomcp/internal/config"
)

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
maps:
  api_key: test-key
tools:
  default_radius_m: 1000
  max_radius_m: 20000
  max_results: 10
retry:
  max_attempts: 5
  min_wait_seconds: 0.5
  max_wait_seconds: 8
safety:
  night_start_hour: 21
  night_end_hour: 5
  high_speed_kph: 110
session:
  idle_timeout_seconds: 600
  queue_size: 64
`

func TestLoadFromReader_ValidConfig(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Maps.APIKey != "test-key" {
		t.Errorf("api_key = %q, want test-key", cfg.Maps.APIKey)
	}
	if cfg.Tools.DefaultRadiusM != 1000 || cfg.Tools.MaxRadiusM != 20000 || cfg.Tools.MaxResults != 10 {
		t.Errorf("tools = %+v", cfg.Tools)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.MinWaitSeconds != 0.5 || cfg.Retry.MaxWaitSeconds != 8 {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if *cfg.Safety.NightStartHour != 21 || *cfg.Safety.NightEndHour != 5 {
		t.Errorf("night window = %d-%d, want 21-5", *cfg.Safety.NightStartHour, *cfg.Safety.NightEndHour)
	}
	if cfg.Session.IdleTimeoutSeconds != 600 || cfg.Session.QueueSize != 64 {
		t.Errorf("session = %+v", cfg.Session)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader("maps:\n  api_key: k\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Server.Transport != config.TransportSSE {
		t.Errorf("transport = %q, want sse", cfg.Server.Transport)
	}
	if cfg.Maps.TimeoutSeconds != 30 {
		t.Errorf("timeout_seconds = %d, want 30", cfg.Maps.TimeoutSeconds)
	}
	if cfg.Tools.DefaultRadiusM != 5000 || cfg.Tools.MaxRadiusM != 50000 || cfg.Tools.MaxResults != 20 {
		t.Errorf("tools = %+v", cfg.Tools)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.MinWaitSeconds != 1 || cfg.Retry.MaxWaitSeconds != 10 {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if cfg.Retry.Jitter != 0 {
		t.Errorf("jitter = %v, want 0", cfg.Retry.Jitter)
	}
	if *cfg.Safety.NightStartHour != 22 || *cfg.Safety.NightEndHour != 6 {
		t.Errorf("night window = %d-%d, want 22-6", *cfg.Safety.NightStartHour, *cfg.Safety.NightEndHour)
	}
	if cfg.Safety.HighSpeedKPH != 100 || cfg.Safety.MaxSamplePoints != 50 {
		t.Errorf("safety = %+v", cfg.Safety)
	}
	if cfg.Session.IdleTimeoutSeconds != 300 || cfg.Session.QueueSize != 32 {
		t.Errorf("session = %+v", cfg.Session)
	}
}

func TestLoadFromReader_ZeroNightHoursSurvive(t *testing.T) {
	yaml := `
maps:
  api_key: k
safety:
  night_start_hour: 0
  night_end_hour: 0
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *cfg.Safety.NightStartHour != 0 || *cfg.Safety.NightEndHour != 0 {
		t.Errorf("night window = %d-%d, want explicit 0-0", *cfg.Safety.NightStartHour, *cfg.Safety.NightEndHour)
	}
}

func TestLoadFromReader_EnvOverridesAPIKey(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", "env-key")

	cfg, err := config.LoadFromReader(strings.NewReader("maps:\n  api_key: file-key\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Maps.APIKey != "env-key" {
		t.Errorf("api_key = %q, want env-key", cfg.Maps.APIKey)
	}
}

func TestLoadFromReader_EnvSuppliesMissingAPIKey(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", "env-key")

	cfg, err := config.LoadFromReader(strings.NewReader("server:\n  log_level: info\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Maps.APIKey != "env-key" {
		t.Errorf("api_key = %q, want env-key", cfg.Maps.APIKey)
	}
}

func TestLoadFromReader_MissingAPIKeyFails(t *testing.T) {
	t.Setenv("GOOGLE_MAPS_API_KEY", "")

	_, err := config.LoadFromReader(strings.NewReader("server:\n  log_level: info\n"))
	if err == nil {
		t.Fatal("expected error for missing api key, got nil")
	}
	if !strings.Contains(err.Error(), "maps.api_key") {
		t.Errorf("error = %v, want mention of maps.api_key", err)
	}
}

func TestLoadFromReader_UnknownFieldFails(t *testing.T) {
	yaml := `
maps:
  api_key: k
  api_secret: oops
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	yaml := `
server:
  log_level: bananas
  transport: carrier-pigeon
maps:
  api_key: k
retry:
  max_attempts: 2
  min_wait_seconds: 5
  max_wait_seconds: 1
  jitter: 1.5
session:
  idle_timeout_seconds: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation errors, got nil")
	}
	for _, want := range []string{
		"server.log_level",
		"server.transport",
		"retry.max_wait_seconds",
		"retry.jitter",
		"session.idle_timeout_seconds",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidate_InvalidRanges(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "max radius below default",
			yaml: "maps:\n  api_key: k\ntools:\n  default_radius_m: 9000\n  max_radius_m: 100\n",
			want: "tools.max_radius_m",
		},
		{
			name: "night hour out of range",
			yaml: "maps:\n  api_key: k\nsafety:\n  night_start_hour: 25\n",
			want: "safety.night_start_hour",
		},
		{
			name: "negative weight",
			yaml: "maps:\n  api_key: k\nsafety:\n  road_weight: -1\n",
			want: "safety weights",
		},
		{
			name: "tls missing key file",
			yaml: "maps:\n  api_key: k\nserver:\n  tls:\n    cert_file: cert.pem\n",
			want: "server.tls",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestLoadFromReader_StdioTransport(t *testing.T) {
	yaml := `
server:
  transport: stdio
maps:
  api_key: k
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Transport != config.TransportStdio {
		t.Errorf("transport = %q, want stdio", cfg.Server.Transport)
	}
}
