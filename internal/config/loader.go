package config

import (
	"fmt"
	"os"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/lookout-bot/lookout/internal/alert"
	"github.com/lookout-bot/lookout/internal/cv"
)

// defaultThresholdPercent applies when a rule omits its threshold.
const defaultThresholdPercent = 20

// LoadSettings loads daemon configuration from an INI file. Missing
// keys keep their defaults; a missing or unreadable file is an error
// so callers can decide between defaults and the last good config.
func LoadSettings(path string) (*Settings, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings file: %w", err)
	}

	s := NewDefaultSettings()

	alerts := cfg.Section("RegionAlerts")
	s.Alerts.Enabled = alerts.Key("enabled").MustBool(s.Alerts.Enabled)
	s.Alerts.PollIntervalMs = alerts.Key("poll_interval_ms").MustInt(s.Alerts.PollIntervalMs)
	s.Alerts.CooldownMs = alerts.Key("cooldown_ms").MustInt(s.Alerts.CooldownMs)
	s.Alerts.RejectLowContrast = alerts.Key("reject_low_contrast").MustBool(s.Alerts.RejectLowContrast)
	s.Alerts.Debug = alerts.Key("debug").MustBool(s.Alerts.Debug)
	s.Alerts.DebugDir = alerts.Key("debug_dir").MustString(s.Alerts.DebugDir)

	targets := cfg.Section("Targets")
	s.Targets.TitlePattern = targets.Key("title_pattern").MustString(s.Targets.TitlePattern)
	s.Targets.ScanIntervalMs = targets.Key("scan_interval_ms").MustInt(s.Targets.ScanIntervalMs)

	history := cfg.Section("History")
	s.History.Enabled = history.Key("enabled").MustBool(s.History.Enabled)
	s.History.DBPath = history.Key("db_path").MustString(s.History.DBPath)
	s.History.RetentionDays = history.Key("retention_days").MustInt(s.History.RetentionDays)

	notifications := cfg.Section("Notifications")
	s.Notifications.WebhookURL = notifications.Key("webhook_url").MustString(s.Notifications.WebhookURL)
	s.Notifications.TimeoutMs = notifications.Key("timeout_ms").MustInt(s.Notifications.TimeoutMs)

	logging := cfg.Section("Logging")
	s.Logging.Level = logging.Key("level").MustString(s.Logging.Level)
	s.Logging.Dir = logging.Key("dir").MustString(s.Logging.Dir)

	return s, nil
}

// SaveSettings writes settings to an INI file, one section per
// concern. Useful for generating a starting configuration.
func SaveSettings(s *Settings, path string) error {
	cfg := ini.Empty()

	alerts := cfg.Section("RegionAlerts")
	alerts.Key("enabled").SetValue(fmt.Sprintf("%t", s.Alerts.Enabled))
	alerts.Key("poll_interval_ms").SetValue(fmt.Sprintf("%d", s.Alerts.PollIntervalMs))
	alerts.Key("cooldown_ms").SetValue(fmt.Sprintf("%d", s.Alerts.CooldownMs))
	alerts.Key("reject_low_contrast").SetValue(fmt.Sprintf("%t", s.Alerts.RejectLowContrast))
	alerts.Key("debug").SetValue(fmt.Sprintf("%t", s.Alerts.Debug))
	alerts.Key("debug_dir").SetValue(s.Alerts.DebugDir)

	targets := cfg.Section("Targets")
	targets.Key("title_pattern").SetValue(s.Targets.TitlePattern)
	targets.Key("scan_interval_ms").SetValue(fmt.Sprintf("%d", s.Targets.ScanIntervalMs))

	history := cfg.Section("History")
	history.Key("enabled").SetValue(fmt.Sprintf("%t", s.History.Enabled))
	history.Key("db_path").SetValue(s.History.DBPath)
	history.Key("retention_days").SetValue(fmt.Sprintf("%d", s.History.RetentionDays))

	notifications := cfg.Section("Notifications")
	notifications.Key("webhook_url").SetValue(s.Notifications.WebhookURL)
	notifications.Key("timeout_ms").SetValue(fmt.Sprintf("%d", s.Notifications.TimeoutMs))

	logging := cfg.Section("Logging")
	logging.Key("level").SetValue(s.Logging.Level)
	logging.Key("dir").SetValue(s.Logging.Dir)

	return cfg.SaveTo(path)
}

type regionYAML struct {
	Left   float64 `yaml:"left"`
	Top    float64 `yaml:"top"`
	Right  float64 `yaml:"right"`
	Bottom float64 `yaml:"bottom"`
}

type ruleYAML struct {
	ID               string     `yaml:"id"`
	Character        string     `yaml:"character"`
	Label            string     `yaml:"label"`
	Region           regionYAML `yaml:"region"`
	ThresholdPercent *int       `yaml:"threshold_percent"`
	Enabled          *bool      `yaml:"enabled"`
}

type rulesYAML struct {
	Rules []ruleYAML `yaml:"rules"`
}

// LoadRules loads the watch rules from a YAML file. A missing file is
// an empty rule set, not an error, so a fresh install starts clean.
// Region coordinates and thresholds pass through raw.
func LoadRules(path string) ([]alert.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []alert.Rule{}, nil
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc rulesYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	rules := make([]alert.Rule, 0, len(doc.Rules))
	for _, r := range doc.Rules {
		rule := alert.Rule{
			ID:        r.ID,
			Character: r.Character,
			Label:     r.Label,
			Region: cv.NormalizedRegion{
				Left:   r.Region.Left,
				Top:    r.Region.Top,
				Right:  r.Region.Right,
				Bottom: r.Region.Bottom,
			},
			ThresholdPercent: defaultThresholdPercent,
			Enabled:          true,
		}
		if r.ThresholdPercent != nil {
			rule.ThresholdPercent = *r.ThresholdPercent
		}
		if r.Enabled != nil {
			rule.Enabled = *r.Enabled
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
