package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/lookout-bot/lookout/internal/events"
)

// EventLogger subscribes to the event bus and records every event to a
// per-session log file, so a session can be reconstructed after the
// fact without raising the console log level.
type EventLogger struct {
	log      zerolog.Logger
	eventBus events.EventBus
	subIDs   []events.SubscriptionID
	logFile  *os.File
}

// NewEventLogger creates a new event logger
func NewEventLogger(eventBus events.EventBus, logDir string) (*EventLogger, error) {
	// Create log directory if it doesn't exist
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Create log file with timestamp
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("events_%s.log", timestamp))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	el := &EventLogger{
		log:      zerolog.New(logFile).With().Timestamp().Logger(),
		eventBus: eventBus,
		logFile:  logFile,
	}

	el.subscribeToEvents()

	return el, nil
}

// subscribeToEvents subscribes to all event types
func (el *EventLogger) subscribeToEvents() {
	eventTypes := []events.EventType{
		events.EventTypeAlertTriggered,
		events.EventTypeEngineStarted,
		events.EventTypeEngineStopped,
		events.EventTypeConfigReloaded,
		events.EventTypeTargetFound,
		events.EventTypeTargetLost,
		events.EventTypeError,
	}

	for _, eventType := range eventTypes {
		el.subIDs = append(el.subIDs, el.eventBus.Subscribe(eventType, el.handleEvent))
	}
}

// handleEvent handles incoming events and logs them
func (el *EventLogger) handleEvent(event events.Event) {
	entry := el.log.Info().
		Str("event_type", string(event.Type)).
		Str("source", event.Source).
		Time("at", event.Timestamp)

	for k, v := range event.Data {
		entry = entry.Interface(k, v)
	}

	entry.Msg("Event")
}

// Close unsubscribes from the bus and closes the log file
func (el *EventLogger) Close() error {
	for _, id := range el.subIDs {
		el.eventBus.Unsubscribe(id)
	}
	el.subIDs = nil
	if el.logFile != nil {
		err := el.logFile.Close()
		el.logFile = nil
		return err
	}
	return nil
}
