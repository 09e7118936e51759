package events

import "time"

// EventType represents different types of events in the system
type EventType string

const (
	// Alert events
	EventTypeAlertTriggered EventType = "alert.triggered"

	// Engine lifecycle events
	EventTypeEngineStarted EventType = "engine.started"
	EventTypeEngineStopped EventType = "engine.stopped"

	// Configuration events
	EventTypeConfigReloaded EventType = "config.reloaded"

	// Target window events
	EventTypeTargetFound EventType = "target.found"
	EventTypeTargetLost  EventType = "target.lost"

	// Error events
	EventTypeError EventType = "error"
)

// Event represents a system event with metadata
type Event struct {
	Type      EventType              // Type of event
	Source    string                 // Component that emitted event (e.g., "alert_engine", "window_scanner")
	Timestamp time.Time              // When the event occurred
	Data      map[string]interface{} // Event-specific data
}

// EventHandler is a function that processes an event
type EventHandler func(Event)

// SubscriptionID uniquely identifies a subscription
type SubscriptionID int64

// EventBus defines the interface for event pub/sub
type EventBus interface {
	// Subscribe registers a handler for a specific event type
	Subscribe(eventType EventType, handler EventHandler) SubscriptionID

	// Unsubscribe removes a subscription by ID
	Unsubscribe(id SubscriptionID)

	// Publish sends an event to all subscribers (blocking)
	Publish(event Event)

	// PublishAsync sends an event asynchronously (non-blocking)
	PublishAsync(event Event)

	// Stop stops the event bus and drains remaining events
	Stop()
}

// Helper functions to create common events

// NewAlertTriggeredEvent creates an alert triggered event
func NewAlertTriggeredEvent(id, character, ruleKey, label string, score float64, pipelineKey string, at time.Time) Event {
	return Event{
		Type:      EventTypeAlertTriggered,
		Source:    "alert_engine",
		Timestamp: at,
		Data: map[string]interface{}{
			"alert_id":     id,
			"character":    character,
			"rule_key":     ruleKey,
			"label":        label,
			"score":        score,
			"pipeline_key": pipelineKey,
		},
	}
}

// NewEngineStartedEvent creates an engine started event
func NewEngineStartedEvent(ruleCount int, pollInterval time.Duration) Event {
	return Event{
		Type:      EventTypeEngineStarted,
		Source:    "alert_engine",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"rule_count":    ruleCount,
			"poll_interval": pollInterval.String(),
		},
	}
}

// NewEngineStoppedEvent creates an engine stopped event
func NewEngineStoppedEvent() Event {
	return Event{
		Type:      EventTypeEngineStopped,
		Source:    "alert_engine",
		Timestamp: time.Now(),
	}
}

// NewConfigReloadedEvent creates a config reloaded event
func NewConfigReloadedEvent(path string, ruleCount int) Event {
	return Event{
		Type:      EventTypeConfigReloaded,
		Source:    "config",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"path":       path,
			"rule_count": ruleCount,
		},
	}
}

// NewTargetFoundEvent creates a target found event
func NewTargetFoundEvent(character, windowTitle string, handle uintptr) Event {
	return Event{
		Type:      EventTypeTargetFound,
		Source:    "window_scanner",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"character":    character,
			"window_title": windowTitle,
			"handle":       handle,
		},
	}
}

// NewTargetLostEvent creates a target lost event
func NewTargetLostEvent(character string) Event {
	return Event{
		Type:      EventTypeTargetLost,
		Source:    "window_scanner",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"character": character,
		},
	}
}

// NewErrorEvent creates an error event
func NewErrorEvent(source, component string, err error, metadata map[string]interface{}) Event {
	data := map[string]interface{}{
		"source":    source,
		"component": component,
		"error":     err.Error(),
	}

	// Merge metadata
	for k, v := range metadata {
		data[k] = v
	}

	return Event{
		Type:      EventTypeError,
		Source:    source,
		Timestamp: time.Now(),
		Data:      data,
	}
}
