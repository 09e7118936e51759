package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/lookout-bot/lookout/internal/cv"
)

const (
	// requiredStreak is how many consecutive above-threshold ticks a
	// rule needs before it may trigger. Two ticks filters single-frame
	// capture noise.
	requiredStreak = 2

	// failureResetThreshold is how many consecutive capture failures
	// a rule absorbs before its state is reset to uninitialized.
	failureResetThreshold = 3

	minPollInterval = 100 * time.Millisecond
	maxPollInterval = 10 * time.Second
	maxCooldown     = 60 * time.Second
)

// Rule is one configured region watch: a character's window, a
// normalized region of it, and a change threshold. Rules are read-only
// snapshots reloaded wholesale from configuration; the engine never
// mutates one.
type Rule struct {
	// ID is the stable rule identity. May be empty for rules created
	// before IDs existed; Key derives a composite identity for those.
	ID               string
	Character        string
	Label            string
	Region           cv.NormalizedRegion
	ThresholdPercent int
	Enabled          bool
}

// Key returns the rule's effective state key: the trimmed ID when one
// is set, otherwise a composite of character, label, and the region
// edges at fixed precision. The composite survives rule reordering but
// changes when the region itself is redefined, which is exactly when
// old baselines stop being meaningful.
func (r Rule) Key() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return fmt.Sprintf("%s|%s|%.4f|%.4f|%.4f|%.4f",
		r.Character, r.Label,
		r.Region.Left, r.Region.Top, r.Region.Right, r.Region.Bottom)
}

// CharacterKey returns the normalized character identity used for
// window lookups and mirror surface ownership.
func (r Rule) CharacterKey() string {
	return strings.ToLower(strings.TrimSpace(r.Character))
}

// ClampedThreshold returns the trigger threshold forced into [1,100].
func (r Rule) ClampedThreshold() int {
	if r.ThresholdPercent < 1 {
		return 1
	}
	if r.ThresholdPercent > 100 {
		return 100
	}
	return r.ThresholdPercent
}

// Config is the engine's view of configuration, read wholesale on every
// reload. Raw values are accepted as loaded; the engine clamps them at
// evaluation time.
type Config struct {
	Enabled      bool
	PollInterval time.Duration
	Cooldown     time.Duration
	Rules        []Rule

	// RejectLowContrast gates the stricter dark-frame validation on
	// direct captures.
	RejectLowContrast bool

	// Debug enables the capture debug log and trigger comparison
	// snapshots under DebugDir.
	Debug    bool
	DebugDir string
}

func (c Config) clampedPollInterval() time.Duration {
	if c.PollInterval < minPollInterval {
		return minPollInterval
	}
	if c.PollInterval > maxPollInterval {
		return maxPollInterval
	}
	return c.PollInterval
}

func (c Config) clampedCooldown() time.Duration {
	if c.Cooldown < 0 {
		return 0
	}
	if c.Cooldown > maxCooldown {
		return maxCooldown
	}
	return c.Cooldown
}

// Event is one raised alert.
type Event struct {
	ID          string
	Character   string
	RuleKey     string
	Label       string
	Score       float64
	PipelineKey string
	At          time.Time
}

// TriggerFunc receives alert events synchronously from inside a poll
// tick. Implementations must return quickly and must not call back
// into the engine.
type TriggerFunc func(Event)
