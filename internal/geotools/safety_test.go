package geotools

import (
	"context"
	"slices"
	"testing"

	"github.com/routewise/geomcp/internal/maps"
)

func safetyService(t *testing.T, up Upstream) *Service {
	t.Helper()
	return newTestService(t, up, Config{})
}

func TestAssess_PerfectConditions(t *testing.T) {
	t.Parallel()
	s := safetyService(t, newFakeUpstream(t))

	got := s.assess(safetyInputs{
		delayRatio:    0,
		maxSpeedKPH:   50,
		roadAvailable: true,
		departureHour: 14,
	})
	if got.SafetyScore != 100 {
		t.Errorf("score = %v, want 100", got.SafetyScore)
	}
	if got.RiskLevel != riskLow {
		t.Errorf("risk = %q, want Low", got.RiskLevel)
	}
	if len(got.RiskFactors) != 0 {
		t.Errorf("risk factors = %v, want none", got.RiskFactors)
	}
	if len(got.UnavailableFactors) != 0 {
		t.Errorf("unavailable = %v, want none", got.UnavailableFactors)
	}
}

func TestAssess_AllFactorsElevated(t *testing.T) {
	t.Parallel()
	s := safetyService(t, newFakeUpstream(t))

	// 5700s in traffic vs 4200s free flow is a 0.357 delay ratio; 112 km/h
	// exceeds the high-speed threshold; 23:00 is inside the night window.
	got := s.assess(safetyInputs{
		delayRatio:    (5700.0 - 4200.0) / 4200.0,
		maxSpeedKPH:   112,
		roadAvailable: true,
		departureHour: 23,
	})
	if got.SafetyScore != 10 {
		t.Errorf("score = %v, want 10", got.SafetyScore)
	}
	if got.RiskLevel != riskHigh {
		t.Errorf("risk = %q, want High", got.RiskLevel)
	}
	if len(got.RiskFactors) != 3 {
		t.Errorf("risk factors = %v, want 3 entries", got.RiskFactors)
	}
}

func TestAssess_MonotonicInDelayRatio(t *testing.T) {
	t.Parallel()
	s := safetyService(t, newFakeUpstream(t))

	prev := 101.0
	for _, ratio := range []float64{0, 0.05, 0.09, 0.10, 0.2, 0.29, 0.30, 0.5, 1.0} {
		got := s.assess(safetyInputs{
			delayRatio:    ratio,
			maxSpeedKPH:   50,
			roadAvailable: true,
			departureHour: 12,
		})
		if got.SafetyScore > prev {
			t.Errorf("score increased to %v at ratio %v", got.SafetyScore, ratio)
		}
		prev = got.SafetyScore
	}
}

func TestAssess_UnavailableRoadFactor(t *testing.T) {
	t.Parallel()
	s := safetyService(t, newFakeUpstream(t))

	got := s.assess(safetyInputs{
		delayRatio:    0.2, // Moderate: 15
		roadAvailable: false,
		departureHour: 12,
	})
	if !slices.Contains(got.UnavailableFactors, "road") {
		t.Fatalf("unavailable = %v, want to contain road", got.UnavailableFactors)
	}
	// The unavailable factor contributes no penalty.
	if got.SafetyScore != 85 {
		t.Errorf("score = %v, want 85", got.SafetyScore)
	}
	if got.RiskLevel != riskLow {
		t.Errorf("risk = %q, want Low", got.RiskLevel)
	}
}

func TestTrafficLevel_Boundaries(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, riskLow},
		{0.0999, riskLow},
		{0.10, riskModerate},
		{0.2999, riskModerate},
		{0.30, riskHigh},
		{2.0, riskHigh},
	}
	for _, tt := range tests {
		if got := trafficLevel(tt.ratio); got != tt.want {
			t.Errorf("trafficLevel(%v) = %q, want %q", tt.ratio, got, tt.want)
		}
	}
}

func TestInNightWindow(t *testing.T) {
	t.Parallel()
	tests := []struct {
		hour, start, end int
		want             bool
	}{
		{23, 22, 6, true},
		{22, 22, 6, true},
		{2, 22, 6, true},
		{5, 22, 6, true},
		{6, 22, 6, false},
		{12, 22, 6, false},
		{21, 22, 6, false},
		// Non-wrapping window.
		{3, 0, 6, true},
		{6, 0, 6, false},
		// Empty window disables the night factor entirely.
		{0, 0, 0, false},
		{23, 0, 0, false},
	}
	for _, tt := range tests {
		if got := inNightWindow(tt.hour, tt.start, tt.end); got != tt.want {
			t.Errorf("inNightWindow(%d, %d, %d) = %v, want %v", tt.hour, tt.start, tt.end, got, tt.want)
		}
	}
}

func TestConfig_ExplicitZeroNightWindowKept(t *testing.T) {
	t.Parallel()
	cfg := Config{Safety: SafetyConfig{
		NightStartHour: intPtr(0),
		NightEndHour:   intPtr(0),
	}}.withDefaults()
	if *cfg.Safety.NightStartHour != 0 || *cfg.Safety.NightEndHour != 0 {
		t.Errorf("night window = %d-%d, want explicit 0-0 preserved",
			*cfg.Safety.NightStartHour, *cfg.Safety.NightEndHour)
	}

	cfg = Config{}.withDefaults()
	if *cfg.Safety.NightStartHour != 22 || *cfg.Safety.NightEndHour != 6 {
		t.Errorf("night window = %d-%d, want 22-6 default for unset hours",
			*cfg.Safety.NightStartHour, *cfg.Safety.NightEndHour)
	}
}

func TestRouteSafety_EndToEnd(t *testing.T) {
	t.Parallel()
	up := newFakeUpstream(t)
	up.directionsFn = func(req maps.DirectionsRequest) ([]maps.Route, error) {
		if req.TrafficModel != "pessimistic" {
			t.Errorf("traffic_model = %q, want pessimistic default", req.TrafficModel)
		}
		return []maps.Route{trafficRoute(4200, 5700)}, nil
	}
	up.snapFn = func(req maps.SnapToRoadsRequest) ([]maps.SnappedPoint, error) {
		points := make([]maps.SnappedPoint, len(req.Path))
		for i := range points {
			points[i].PlaceID = "seg"
		}
		points[0].PlaceID = "seg0"
		return points, nil
	}
	up.speedLimitsFn = func(req maps.SpeedLimitsRequest) ([]maps.SpeedLimit, error) {
		return []maps.SpeedLimit{
			{PlaceID: "seg0", SpeedLimit: 80, Units: "KPH"},
			{PlaceID: "seg", SpeedLimit: 112, Units: "KPH"},
		}, nil
	}
	s := safetyService(t, up)

	data, err := s.handleRouteSafety(context.Background(), map[string]any{
		"origin":         "A",
		"destination":    "B",
		"departure_time": "2026-08-20T23:00:00Z",
	})
	if err != nil {
		t.Fatalf("handleRouteSafety: %v", err)
	}
	got := data.(SafetyAssessment)
	if got.SafetyScore != 10 || got.RiskLevel != riskHigh {
		t.Errorf("score/risk = %v/%q, want 10/High", got.SafetyScore, got.RiskLevel)
	}
	if got.RouteSummary != "I-280 S" || got.TrafficModelUsed != "pessimistic" {
		t.Errorf("summary/model = %q/%q", got.RouteSummary, got.TrafficModelUsed)
	}
}

func TestRouteSafety_DegradesWhenRoadsFail(t *testing.T) {
	t.Parallel()
	up := newFakeUpstream(t)
	up.directionsFn = func(maps.DirectionsRequest) ([]maps.Route, error) {
		return []maps.Route{trafficRoute(3600, 3600)}, nil
	}
	up.snapFn = func(maps.SnapToRoadsRequest) ([]maps.SnappedPoint, error) {
		return nil, &maps.APIError{Endpoint: "snap_to_roads", Status: "PERMISSION_DENIED", Kind: maps.KindTerminal}
	}
	s := safetyService(t, up)

	data, err := s.handleRouteSafety(context.Background(), map[string]any{
		"origin":         "A",
		"destination":    "B",
		"departure_time": "2026-08-20T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("road failure must not fail the tool: %v", err)
	}
	got := data.(SafetyAssessment)
	if !slices.Contains(got.UnavailableFactors, "road") {
		t.Errorf("unavailable = %v, want road", got.UnavailableFactors)
	}
	if got.SafetyScore != 100 {
		t.Errorf("score = %v, want 100 with remaining factors clean", got.SafetyScore)
	}
}

func TestRouteSafety_PrimaryLookupFailureFailsTool(t *testing.T) {
	t.Parallel()
	up := newFakeUpstream(t)
	up.directionsFn = func(maps.DirectionsRequest) ([]maps.Route, error) {
		return nil, &maps.APIError{Endpoint: "directions", Status: "REQUEST_DENIED", Kind: maps.KindTerminal}
	}
	s := safetyService(t, up)

	_, err := s.handleRouteSafety(context.Background(), map[string]any{
		"origin": "A", "destination": "B",
	})
	if !maps.IsTerminal(err) {
		t.Fatalf("err = %v, want terminal upstream error", err)
	}
	if up.calls["snap_to_roads"] != 0 || up.calls["speed_limits"] != 0 {
		t.Error("secondary lookups ran after primary failure")
	}
}
