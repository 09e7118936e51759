package alert

import (
	"testing"
	"time"

	"github.com/lookout-bot/lookout/internal/cv"
)

func TestRuleKeyPrefersID(t *testing.T) {
	r := Rule{
		ID:        "  watch-local  ",
		Character: "Aria Stone",
		Label:     "local",
		Region:    cv.NormalizedRegion{Left: 0.1, Top: 0.2, Right: 0.3, Bottom: 0.4},
	}
	if got := r.Key(); got != "watch-local" {
		t.Errorf("Expected trimmed ID as key, got %q", got)
	}
}

func TestRuleKeyCompositeFallback(t *testing.T) {
	r := Rule{
		Character: "Aria Stone",
		Label:     "local",
		Region:    cv.NormalizedRegion{Left: 0.1, Top: 0.2, Right: 0.3, Bottom: 0.4},
	}
	want := "Aria Stone|local|0.1000|0.2000|0.3000|0.4000"
	if got := r.Key(); got != want {
		t.Errorf("Expected composite key %q, got %q", want, got)
	}

	// Whitespace-only IDs fall back to the composite too.
	r.ID = "   "
	if got := r.Key(); got != want {
		t.Errorf("Expected blank ID to use composite key, got %q", got)
	}
}

func TestRuleKeyChangesWithRegion(t *testing.T) {
	a := Rule{Character: "Aria", Label: "x", Region: cv.NormalizedRegion{Left: 0.1, Top: 0.1, Right: 0.5, Bottom: 0.5}}
	b := a
	b.Region.Right = 0.6
	if a.Key() == b.Key() {
		t.Error("Expected different keys for different regions")
	}
}

func TestRuleCharacterKey(t *testing.T) {
	r := Rule{Character: "  Aria Stone  "}
	if got := r.CharacterKey(); got != "aria stone" {
		t.Errorf("Expected normalized character key, got %q", got)
	}
}

func TestRuleClampedThreshold(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-5, 1},
		{0, 1},
		{1, 1},
		{55, 55},
		{100, 100},
		{250, 100},
	}
	for _, tt := range tests {
		r := Rule{ThresholdPercent: tt.in}
		if got := r.ClampedThreshold(); got != tt.want {
			t.Errorf("Threshold %d: expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

func TestConfigClampsIntervals(t *testing.T) {
	c := Config{PollInterval: 10 * time.Millisecond, Cooldown: -time.Second}
	if got := c.clampedPollInterval(); got != 100*time.Millisecond {
		t.Errorf("Expected poll interval clamped to 100ms, got %v", got)
	}
	if got := c.clampedCooldown(); got != 0 {
		t.Errorf("Expected negative cooldown clamped to zero, got %v", got)
	}

	c = Config{PollInterval: time.Minute, Cooldown: 5 * time.Minute}
	if got := c.clampedPollInterval(); got != 10*time.Second {
		t.Errorf("Expected poll interval clamped to 10s, got %v", got)
	}
	if got := c.clampedCooldown(); got != 60*time.Second {
		t.Errorf("Expected cooldown clamped to 60s, got %v", got)
	}

	c = Config{PollInterval: 750 * time.Millisecond, Cooldown: 3 * time.Second}
	if got := c.clampedPollInterval(); got != 750*time.Millisecond {
		t.Errorf("Expected in-range poll interval untouched, got %v", got)
	}
	if got := c.clampedCooldown(); got != 3*time.Second {
		t.Errorf("Expected in-range cooldown untouched, got %v", got)
	}
}
