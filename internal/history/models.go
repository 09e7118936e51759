package history

import "time"

// AlertRecord is one persisted alert trigger.
type AlertRecord struct {
	ID          int64
	AlertID     string
	Character   string
	RuleKey     string
	Label       string
	Score       float64
	PipelineKey string
	TriggeredAt time.Time
}
