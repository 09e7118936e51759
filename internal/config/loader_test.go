package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lookout-bot/lookout/internal/alert"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadSettings(t *testing.T) {
	path := writeFile(t, t.TempDir(), "settings.ini", `
[RegionAlerts]
enabled = true
poll_interval_ms = 750
cooldown_ms = 3000
reject_low_contrast = true

[Targets]
title_pattern = EVE - {character}

[Notifications]
webhook_url = https://example.test/hook
`)

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("Failed to load settings: %v", err)
	}

	if !s.Alerts.Enabled {
		t.Error("Expected alerts enabled")
	}
	if s.Alerts.PollIntervalMs != 750 {
		t.Errorf("Expected poll interval 750, got %d", s.Alerts.PollIntervalMs)
	}
	if s.Alerts.CooldownMs != 3000 {
		t.Errorf("Expected cooldown 3000, got %d", s.Alerts.CooldownMs)
	}
	if !s.Alerts.RejectLowContrast {
		t.Error("Expected reject_low_contrast true")
	}
	if s.Notifications.WebhookURL != "https://example.test/hook" {
		t.Errorf("Unexpected webhook URL %q", s.Notifications.WebhookURL)
	}

	// Keys absent from the file keep their defaults.
	if s.Targets.ScanIntervalMs != 2000 {
		t.Errorf("Expected default scan interval, got %d", s.Targets.ScanIntervalMs)
	}
	if !s.History.Enabled || s.History.DBPath != "lookout.db" {
		t.Error("Expected default history settings")
	}
	if s.Logging.Level != "info" {
		t.Errorf("Expected default log level, got %q", s.Logging.Level)
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	if _, err := LoadSettings(filepath.Join(t.TempDir(), "nope.ini")); err == nil {
		t.Error("Expected an error for a missing settings file")
	}
}

func TestSaveSettingsRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.ini")

	s := NewDefaultSettings()
	s.Alerts.Enabled = true
	s.Alerts.PollIntervalMs = 1234
	s.Targets.TitlePattern = "EVE - {character} [Sim]"
	s.Notifications.WebhookURL = "https://example.test/hook"

	if err := SaveSettings(s, path); err != nil {
		t.Fatalf("Failed to save settings: %v", err)
	}
	loaded, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("Failed to reload settings: %v", err)
	}

	if *loaded != *s {
		t.Errorf("Roundtrip mismatch:\nsaved  %+v\nloaded %+v", *s, *loaded)
	}
}

func TestLoadRules(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rules.yaml", `
rules:
  - id: watch-local
    character: Aria Stone
    label: Local spike
    region: {left: 0.1, top: 0.2, right: 0.3, bottom: 0.4}
    threshold_percent: 35
    enabled: false
  - character: Bex Carter
    label: Hangar
    region:
      left: 0.5
      top: 0.0
      right: 1.5
      bottom: 1.0
`)

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("Failed to load rules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(rules))
	}

	first := rules[0]
	if first.ID != "watch-local" || first.Character != "Aria Stone" {
		t.Errorf("Unexpected first rule identity: %+v", first)
	}
	if first.ThresholdPercent != 35 || first.Enabled {
		t.Errorf("Expected explicit threshold and disabled flag, got %+v", first)
	}
	if first.Region.Left != 0.1 || first.Region.Bottom != 0.4 {
		t.Errorf("Unexpected region %+v", first.Region)
	}

	second := rules[1]
	if second.ThresholdPercent != defaultThresholdPercent {
		t.Errorf("Expected default threshold, got %d", second.ThresholdPercent)
	}
	if !second.Enabled {
		t.Error("Expected omitted enabled to default to true")
	}
	// Out-of-range coordinates pass through raw; the mapper clamps.
	if second.Region.Right != 1.5 {
		t.Errorf("Expected raw region coordinates, got %+v", second.Region)
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	rules, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Expected a missing rules file to be empty, got error: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("Expected no rules, got %d", len(rules))
	}
}

func TestLoadRulesMalformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rules.yaml", "rules: [:::")
	if _, err := LoadRules(path); err == nil {
		t.Error("Expected an error for malformed YAML")
	}
}

func TestEngineConfigMapping(t *testing.T) {
	s := NewDefaultSettings()
	s.Alerts.Enabled = true
	s.Alerts.PollIntervalMs = 250
	s.Alerts.CooldownMs = -100
	s.Alerts.RejectLowContrast = true

	rules := []alert.Rule{{ID: "r1"}}
	cfg := s.EngineConfig(rules)

	if !cfg.Enabled || !cfg.RejectLowContrast {
		t.Error("Expected flags carried into engine config")
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("Expected 250ms poll interval, got %v", cfg.PollInterval)
	}
	// Raw passthrough: the engine owns clamping.
	if cfg.Cooldown != -100*time.Millisecond {
		t.Errorf("Expected raw cooldown, got %v", cfg.Cooldown)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].ID != "r1" {
		t.Errorf("Expected rules carried through, got %+v", cfg.Rules)
	}
}

func TestScanIntervalFloor(t *testing.T) {
	s := NewDefaultSettings()
	s.Targets.ScanIntervalMs = 100
	if got := s.ScanInterval(); got != time.Second {
		t.Errorf("Expected scan interval floored to 1s, got %v", got)
	}
	s.Targets.ScanIntervalMs = 3000
	if got := s.ScanInterval(); got != 3*time.Second {
		t.Errorf("Expected 3s scan interval, got %v", got)
	}
}
