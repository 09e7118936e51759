package config

import (
	"time"

	"github.com/lookout-bot/lookout/internal/alert"
)

// Settings is the daemon configuration loaded from settings.ini. The
// rule list lives in a separate YAML file so it can be edited and
// reloaded independently.
type Settings struct {
	Alerts        AlertSettings
	Targets       TargetSettings
	History       HistorySettings
	Notifications NotificationSettings
	Logging       LoggingSettings
}

// AlertSettings configures the region alert engine. Interval values
// are carried raw; the engine clamps them into its supported ranges.
type AlertSettings struct {
	Enabled           bool
	PollIntervalMs    int
	CooldownMs        int
	RejectLowContrast bool
	Debug             bool
	DebugDir          string
}

// TargetSettings configures the window scanner. The title pattern maps
// a character name to its expected window title; "{character}" is
// replaced with the character name.
type TargetSettings struct {
	TitlePattern   string
	ScanIntervalMs int
}

// HistorySettings configures the SQLite alert history.
type HistorySettings struct {
	Enabled       bool
	DBPath        string
	RetentionDays int
}

// NotificationSettings configures the outbound alert webhook. An empty
// URL disables notifications.
type NotificationSettings struct {
	WebhookURL string
	TimeoutMs  int
}

// LoggingSettings configures log level and the log directory.
type LoggingSettings struct {
	Level string
	Dir   string
}

// NewDefaultSettings creates settings with default values
func NewDefaultSettings() *Settings {
	return &Settings{
		Alerts: AlertSettings{
			Enabled:        false,
			PollIntervalMs: 1000,
			CooldownMs:     5000,
			DebugDir:       "debug",
		},
		Targets: TargetSettings{
			TitlePattern:   "EVE - {character}",
			ScanIntervalMs: 2000,
		},
		History: HistorySettings{
			Enabled:       true,
			DBPath:        "lookout.db",
			RetentionDays: 30,
		},
		Notifications: NotificationSettings{
			TimeoutMs: 5000,
		},
		Logging: LoggingSettings{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// EngineConfig maps the settings plus a rule list onto the engine's
// configuration. Values pass through raw.
func (s *Settings) EngineConfig(rules []alert.Rule) alert.Config {
	return alert.Config{
		Enabled:           s.Alerts.Enabled,
		PollInterval:      time.Duration(s.Alerts.PollIntervalMs) * time.Millisecond,
		Cooldown:          time.Duration(s.Alerts.CooldownMs) * time.Millisecond,
		Rules:             rules,
		RejectLowContrast: s.Alerts.RejectLowContrast,
		Debug:             s.Alerts.Debug,
		DebugDir:          s.Alerts.DebugDir,
	}
}

// ScanInterval returns the window scan interval as a duration, never
// below one second.
func (s *Settings) ScanInterval() time.Duration {
	ms := s.Targets.ScanIntervalMs
	if ms < 1000 {
		ms = 1000
	}
	return time.Duration(ms) * time.Millisecond
}

// WebhookTimeout returns the notification timeout as a duration,
// never below one second.
func (s *Settings) WebhookTimeout() time.Duration {
	ms := s.Notifications.TimeoutMs
	if ms < 1000 {
		ms = 1000
	}
	return time.Duration(ms) * time.Millisecond
}
