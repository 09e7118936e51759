package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lookout-bot/lookout/internal/alert"
	"github.com/lookout-bot/lookout/internal/capture"
	"github.com/lookout-bot/lookout/internal/config"
	"github.com/lookout-bot/lookout/internal/events"
	"github.com/lookout-bot/lookout/internal/history"
	"github.com/lookout-bot/lookout/internal/logging"
	"github.com/lookout-bot/lookout/internal/monitor"
	"github.com/lookout-bot/lookout/internal/notify"
	"github.com/lookout-bot/lookout/internal/window"
)

func main() {
	// Parse command line flags
	settingsPath := flag.String("settings", "settings.ini", "Path to settings file")
	rulesPath := flag.String("rules", "rules.yaml", "Path to alert rules file")
	logLevel := flag.String("log-level", "", "Log level override (trace, debug, info, warn, error)")
	flag.Parse()

	// Load settings; a missing file just runs on defaults
	settings, err := config.LoadSettings(*settingsPath)
	settingsMissing := false
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Failed to load settings: %v\n", err)
			os.Exit(1)
		}
		settings = config.NewDefaultSettings()
		settingsMissing = true
	}

	level := settings.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}
	if err := logging.Setup(level, settings.Logging.Dir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Close()

	mainLog := logging.Module("main")
	if settingsMissing {
		mainLog.Warn().Str("path", *settingsPath).Msg("Settings file not found, running on defaults")
	}

	// A malformed rules file at startup is fatal; once running, reloads
	// keep the previous rules instead.
	rules, err := config.LoadRules(*rulesPath)
	if err != nil {
		mainLog.Fatal().Err(err).Str("path", *rulesPath).Msg("Failed to load alert rules")
	}
	mainLog.Info().Int("rules", len(rules)).Msg("Loaded alert rules")

	// Event bus and event log
	bus := events.NewEventBus(100)

	eventLogger, err := logging.NewEventLogger(bus, settings.Logging.Dir)
	if err != nil {
		mainLog.Warn().Err(err).Msg("Event log unavailable")
	}

	// Alert history database
	var db *history.DB
	if settings.History.Enabled {
		db, err = history.Open(settings.History.DBPath)
		if err != nil {
			mainLog.Warn().Err(err).Msg("Alert history unavailable")
			db = nil
		} else if err := db.RunMigrations(); err != nil {
			mainLog.Warn().Err(err).Msg("Alert history migrations failed")
			db.Close()
			db = nil
		}
	}
	if db != nil && settings.History.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -settings.History.RetentionDays)
		if purged, err := db.PurgeOlderThan(cutoff); err != nil {
			mainLog.Warn().Err(err).Msg("Failed to purge expired alert history")
		} else if purged > 0 {
			mainLog.Info().Int64("purged", purged).Msg("Purged expired alert history")
		}
	}

	notifier := notify.NewNotifier(settings.Notifications.WebhookURL, settings.WebhookTimeout(), logging.Module("notify"))

	// Fan alert events out to history and the webhook. Both run on bus
	// handler goroutines, off the engine's poll loop.
	if db != nil {
		bus.Subscribe(events.EventTypeAlertTriggered, func(event events.Event) {
			rec := &history.AlertRecord{
				AlertID:     dataString(event.Data, "alert_id"),
				Character:   dataString(event.Data, "character"),
				RuleKey:     dataString(event.Data, "rule_key"),
				Label:       dataString(event.Data, "label"),
				Score:       dataFloat(event.Data, "score"),
				PipelineKey: dataString(event.Data, "pipeline_key"),
				TriggeredAt: event.Timestamp,
			}
			if err := db.RecordAlert(rec); err != nil {
				mainLog.Warn().Err(err).Str("alert_id", rec.AlertID).Msg("Failed to record alert")
			}
		})
	}
	bus.Subscribe(events.EventTypeAlertTriggered, func(event events.Event) {
		ev := alertEventFromData(event)
		if err := notifier.Notify(context.Background(), ev); err != nil {
			mainLog.Warn().Err(err).Str("alert_id", ev.ID).Msg("Webhook delivery failed")
		}
	})

	// Capture provider, engine, watchdog
	provider, mirrorProvider := capture.NewPlatformProvider(logging.Module("capture"))
	engine := alert.NewEngine(provider, mirrorProvider, logging.Module("alert"))

	pollInterval := time.Duration(settings.Alerts.PollIntervalMs) * time.Millisecond
	watchdog := monitor.NewWatchdog(pollInterval, logging.Module("monitor")).
		WithStallCallback(func(since time.Duration) {
			bus.Publish(events.NewErrorEvent("watchdog", "alert_engine",
				fmt.Errorf("no engine tick for %s", since.Round(time.Millisecond)), nil))
		})

	engine.WithTrigger(func(ev alert.Event) {
		bus.Publish(events.NewAlertTriggeredEvent(ev.ID, ev.Character, ev.RuleKey, ev.Label, ev.Score, ev.PipelineKey, ev.At))
	}).WithTickObserver(watchdog.RecordTick)

	engine.Reload(settings.EngineConfig(rules))

	// Window scanner keeps the engine's character-to-window mapping fresh
	scanner := window.NewScanner(settings.Targets.TitlePattern, settings.ScanInterval(), bus,
		engine.SetCharacterWindows, logging.Module("window"))
	scanner.SetCharacters(ruleCharacters(rules))

	// Config watcher hot-reloads settings and rules on file changes
	reload := func(path string) {
		newSettings, err := config.LoadSettings(*settingsPath)
		if err != nil {
			mainLog.Warn().Err(err).Msg("Keeping previous settings")
			newSettings = settings
		}
		newRules, err := config.LoadRules(*rulesPath)
		if err != nil {
			mainLog.Warn().Err(err).Msg("Keeping previous alert rules")
			newRules = rules
		}
		settings = newSettings
		rules = newRules

		engine.Reload(settings.EngineConfig(rules))
		scanner.SetPattern(settings.Targets.TitlePattern)
		scanner.SetCharacters(ruleCharacters(rules))
		watchdog.SetPollInterval(time.Duration(settings.Alerts.PollIntervalMs) * time.Millisecond)

		bus.Publish(events.NewConfigReloadedEvent(path, len(rules)))
		mainLog.Info().Str("path", path).Int("rules", len(rules)).Msg("Configuration reloaded")
	}
	watcher, err := config.NewWatcher([]string{*settingsPath, *rulesPath}, 0, reload)
	if err != nil {
		mainLog.Warn().Err(err).Msg("Config hot reload unavailable")
	}

	// Start everything
	if err := engine.Start(); err != nil {
		mainLog.Fatal().Err(err).Msg("Failed to start alert engine")
	}
	watchdog.Start()
	scanner.Start()
	if watcher != nil {
		watcher.Start()
	}

	bus.Publish(events.NewEngineStartedEvent(len(rules), pollInterval))
	mainLog.Info().
		Int("rules", len(rules)).
		Str("settings", *settingsPath).
		Bool("history", db != nil).
		Bool("webhook", notifier.Enabled()).
		Msg("Lookout running")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	mainLog.Info().Str("signal", sig.String()).Msg("Shutting down")

	// Stop producers before the bus so queued events still drain
	if watcher != nil {
		watcher.Stop()
	}
	scanner.Stop()
	engine.Stop()
	watchdog.Stop()
	bus.Publish(events.NewEngineStoppedEvent())
	bus.Stop()

	if eventLogger != nil {
		eventLogger.Close()
	}
	if db != nil {
		db.Close()
	}
}

// ruleCharacters returns the characters named by enabled rules,
// first-seen order, deduplicated case-insensitively.
func ruleCharacters(rules []alert.Rule) []string {
	seen := make(map[string]struct{})
	var characters []string
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		name := strings.TrimSpace(r.Character)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		characters = append(characters, name)
	}
	return characters
}

func alertEventFromData(event events.Event) alert.Event {
	return alert.Event{
		ID:          dataString(event.Data, "alert_id"),
		Character:   dataString(event.Data, "character"),
		RuleKey:     dataString(event.Data, "rule_key"),
		Label:       dataString(event.Data, "label"),
		Score:       dataFloat(event.Data, "score"),
		PipelineKey: dataString(event.Data, "pipeline_key"),
		At:          event.Timestamp,
	}
}

func dataString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func dataFloat(data map[string]interface{}, key string) float64 {
	if v, ok := data[key].(float64); ok {
		return v
	}
	return 0
}
