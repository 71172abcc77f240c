package config

// ConfigDiff describes what changed between two configs. Only the log level
// is applied live; the remaining flags let the server log that a restart is
// needed to pick the change up.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SafetyChanged bool
	RetryChanged  bool
	ToolsChanged  bool

	// RestartRequired is set for changes to the server, upstream, or
	// session sections, which are fixed at startup.
	RestartRequired bool
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.SafetyChanged || d.RetryChanged || d.ToolsChanged || d.RestartRequired
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !safetyEqual(old.Safety, new.Safety) {
		d.SafetyChanged = true
	}
	if old.Retry != new.Retry {
		d.RetryChanged = true
	}
	if old.Tools != new.Tools {
		d.ToolsChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Server.Transport != new.Server.Transport ||
		!tlsEqual(old.Server.TLS, new.Server.TLS) ||
		old.Maps != new.Maps ||
		old.Session != new.Session {
		d.RestartRequired = true
	}

	return d
}

// safetyEqual compares safety configs through their hour pointers.
func safetyEqual(a, b SafetyConfig) bool {
	return a.TrafficWeight == b.TrafficWeight &&
		a.RoadWeight == b.RoadWeight &&
		a.TimeWeight == b.TimeWeight &&
		intPtrEqual(a.NightStartHour, b.NightStartHour) &&
		intPtrEqual(a.NightEndHour, b.NightEndHour) &&
		a.HighSpeedKPH == b.HighSpeedKPH &&
		a.MaxSamplePoints == b.MaxSamplePoints
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
