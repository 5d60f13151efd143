package netcode

import (
	"errors"
	"testing"
)

func TestServerConfig_ValidateRejectsNonPositiveTickRate(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.TickRate = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidTickRate) {
		t.Fatalf("Validate() = %v, want ErrInvalidTickRate", err)
	}
}

func TestServerConfig_ValidateRejectsNonPositiveHistorySize(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.SnapshotHistorySize = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidHistorySize) {
		t.Fatalf("Validate() = %v, want ErrInvalidHistorySize", err)
	}
}

func TestServerConfig_ValidateRejectsNegativeMaxRewind(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.MaxRewindMs = -1
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidMaxRewind) {
		t.Fatalf("Validate() = %v, want ErrInvalidMaxRewind", err)
	}
}

func TestServerConfig_ValidateAcceptsDefaults(t *testing.T) {
	if err := DefaultServerConfig().Validate(); err != nil {
		t.Fatalf("Validate() on defaults = %v, want nil", err)
	}
}

func TestServerConfig_TickIntervalMs(t *testing.T) {
	cfg := ServerConfig{TickRate: 50}
	if got := cfg.TickIntervalMs(); got != 20 {
		t.Fatalf("TickIntervalMs() at 50Hz = %v, want 20", got)
	}
}

func TestAdaptiveInterpolation_Multiplier(t *testing.T) {
	cases := []struct {
		setting AdaptiveInterpolation
		want    float64
	}{
		{AdaptiveOff, 0},
		{AdaptiveVeryLow, 0.45},
		{AdaptiveLow, 0.8},
		{AdaptiveModerate, 1.05},
		{AdaptiveHigh, 1.25},
		{AdaptiveVeryHigh, 1.5},
	}
	for _, c := range cases {
		if got := c.setting.Multiplier(); got != c.want {
			t.Errorf("%v.Multiplier() = %v, want %v", c.setting, got, c.want)
		}
	}
}
