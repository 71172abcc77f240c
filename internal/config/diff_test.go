package config_test

import (
	"strings"
	"testing"

	"github.com/routewise/geomcp/internal/config"
)

func loadYAML(t *testing.T, yaml string) *config.Config {
	t.Helper()
	t.Setenv("GOOGLE_MAPS_API_KEY", "")
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	old := loadYAML(t, validYAML)
	new := loadYAML(t, validYAML)

	d := config.Diff(old, new)
	if d.Changed() {
		t.Errorf("diff = %+v, want no changes", d)
	}
}

func TestDiff_LogLevelChange(t *testing.T) {
	old := loadYAML(t, validYAML)
	new := loadYAML(t, strings.Replace(validYAML, "log_level: debug", "log_level: warn", 1))

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("LogLevelChanged = false, want true")
	}
	if d.NewLogLevel != config.LogWarn {
		t.Errorf("NewLogLevel = %q, want warn", d.NewLogLevel)
	}
	if d.RestartRequired {
		t.Error("log level change must not require a restart")
	}
}

func TestDiff_SafetyChange(t *testing.T) {
	old := loadYAML(t, validYAML)
	new := loadYAML(t, strings.Replace(validYAML, "high_speed_kph: 110", "high_speed_kph: 90", 1))

	d := config.Diff(old, new)
	if !d.SafetyChanged {
		t.Error("SafetyChanged = false, want true")
	}
	if d.LogLevelChanged || d.RestartRequired {
		t.Errorf("diff = %+v, want only SafetyChanged", d)
	}
}

func TestDiff_RetryAndToolsChange(t *testing.T) {
	old := loadYAML(t, validYAML)
	updated := strings.Replace(validYAML, "max_attempts: 5", "max_attempts: 4", 1)
	updated = strings.Replace(updated, "max_results: 10", "max_results: 15", 1)
	new := loadYAML(t, updated)

	d := config.Diff(old, new)
	if !d.RetryChanged || !d.ToolsChanged {
		t.Errorf("diff = %+v, want RetryChanged and ToolsChanged", d)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(string) string
	}{
		{
			name:   "listen addr",
			mutate: func(s string) string { return strings.Replace(s, `":9090"`, `":9999"`, 1) },
		},
		{
			name:   "api key",
			mutate: func(s string) string { return strings.Replace(s, "api_key: test-key", "api_key: other", 1) },
		},
		{
			name:   "session queue",
			mutate: func(s string) string { return strings.Replace(s, "queue_size: 64", "queue_size: 8", 1) },
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			old := loadYAML(t, validYAML)
			new := loadYAML(t, tc.mutate(validYAML))

			d := config.Diff(old, new)
			if !d.RestartRequired {
				t.Errorf("diff = %+v, want RestartRequired", d)
			}
		})
	}
}
