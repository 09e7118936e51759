package alert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lookout-bot/lookout/internal/capture"
	"github.com/lookout-bot/lookout/internal/cv"
)

// Stats counts engine activity since startup. Counters only grow;
// LastTickDuration is overwritten each tick.
type Stats struct {
	Ticks            uint64
	Evaluations      uint64
	Triggers         uint64
	CaptureFailures  uint64
	Resets           uint64
	LastTickDuration time.Duration
}

// Engine polls the configured regions and raises alert events when a
// region keeps changing past its threshold. One mutex guards all state;
// a tick holds it for the whole pass so reloads and window updates
// land between passes, never inside one.
type Engine struct {
	mu sync.Mutex

	provider capture.Provider
	mirrors  *capture.MirrorPool
	chain    *capture.Chain

	cfg      Config
	windows  map[string]capture.WindowHandle
	previews map[string]capture.PreviewSurface
	states   *stateStore

	onTrigger TriggerFunc
	onTick    func()
	debug     *debugRecorder

	// now is the engine clock, replaceable in tests.
	now func() time.Time

	stats Stats
	log   zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewEngine creates an engine over the given capture provider. A nil
// mirrorProvider disables the mirror strategy; captures then begin at
// the preview strategy. The engine starts disabled until Reload hands
// it an enabled Config.
func NewEngine(provider capture.Provider, mirrorProvider capture.MirrorProvider, logger zerolog.Logger) *Engine {
	e := &Engine{
		provider: provider,
		windows:  make(map[string]capture.WindowHandle),
		previews: make(map[string]capture.PreviewSurface),
		states:   newStateStore(),
		now:      time.Now,
		log:      logger,
	}
	if mirrorProvider != nil {
		e.mirrors = capture.NewMirrorPool(mirrorProvider, logger)
	}
	e.chain = capture.NewChain(provider, e.mirrors, false, logger)
	return e
}

// WithTrigger sets the callback invoked synchronously for every alert
// event. Must be set before Start.
func (e *Engine) WithTrigger(fn TriggerFunc) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTrigger = fn
	return e
}

// WithTickObserver sets a callback invoked after every completed tick,
// including ticks skipped because alerting is disabled. Must be set
// before Start.
func (e *Engine) WithTickObserver(fn func()) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = fn
	return e
}

// Reload replaces the engine configuration wholesale. Rule state for
// keys no longer configured is dropped; disabling the engine clears
// all state and releases every mirror surface.
func (e *Engine) Reload(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = cfg
	e.chain = capture.NewChain(e.provider, e.mirrors, cfg.RejectLowContrast, e.log)
	e.reloadDebug(cfg)

	if !cfg.Enabled {
		e.states.clearAll()
		if e.mirrors != nil {
			e.mirrors.ReleaseAll()
		}
		e.log.Info().Msg("Region alerts disabled, state cleared")
		return
	}

	activeKeys := make(map[string]struct{}, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		activeKeys[rule.Key()] = struct{}{}
	}
	e.states.prune(activeKeys)
	if e.mirrors != nil {
		e.mirrors.Prune(e.enabledCharacters())
	}

	e.log.Info().
		Int("rules", len(cfg.Rules)).
		Dur("poll_interval", cfg.clampedPollInterval()).
		Dur("cooldown", cfg.clampedCooldown()).
		Msg("Region alerts configuration reloaded")
}

// SetCharacterWindows replaces the character-to-window mapping. Lookups
// are exact first, then case-insensitive on trimmed names.
func (e *Engine) SetCharacterWindows(windows map[string]capture.WindowHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.windows = make(map[string]capture.WindowHandle, len(windows))
	for name, h := range windows {
		e.windows[name] = h
	}
}

// SetCharacterPreviews replaces the character-to-preview mapping used
// by the preview capture strategy.
func (e *Engine) SetCharacterPreviews(previews map[string]capture.PreviewSurface) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.previews = make(map[string]capture.PreviewSurface, len(previews))
	for name, p := range previews {
		e.previews[name] = p
	}
}

// Start launches the poll loop. Returns an error if already running.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New("alert engine already running")
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.running = true
	e.wg.Add(1)
	go e.run()
	e.log.Info().Msg("Alert engine started")
	return nil
}

// Stop halts the poll loop and releases every mirror surface. Safe to
// call when not running.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()

	e.mu.Lock()
	if e.mirrors != nil {
		e.mirrors.ReleaseAll()
	}
	if e.debug != nil {
		e.debug.close()
		e.debug = nil
	}
	e.mu.Unlock()
	e.log.Info().Msg("Alert engine stopped")
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) run() {
	defer e.wg.Done()

	for {
		e.mu.Lock()
		interval := e.cfg.clampedPollInterval()
		e.mu.Unlock()

		timer := time.NewTimer(interval)
		select {
		case <-e.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			e.Tick()
		}
	}
}

// Tick runs one full evaluation pass over every enabled rule. The
// poll loop calls it on each interval; tests call it directly.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.onTick != nil {
		defer e.onTick()
	}

	if !e.cfg.Enabled {
		return
	}

	start := e.now()
	e.stats.Ticks++

	if e.mirrors != nil {
		e.mirrors.Prune(e.enabledCharacters())
	}

	for _, rule := range e.cfg.Rules {
		if !rule.Enabled || rule.CharacterKey() == "" {
			continue
		}
		e.stats.Evaluations++
		e.evaluateRule(rule)
	}

	e.stats.LastTickDuration = e.now().Sub(start)
}

// enabledCharacters returns the normalized character keys that have at
// least one enabled rule. Mirror surfaces for any other character get
// pruned.
func (e *Engine) enabledCharacters() map[string]struct{} {
	active := make(map[string]struct{})
	for _, rule := range e.cfg.Rules {
		if !rule.Enabled {
			continue
		}
		if ck := rule.CharacterKey(); ck != "" {
			active[ck] = struct{}{}
		}
	}
	return active
}

func (e *Engine) evaluateRule(rule Rule) {
	key := rule.Key()
	state := e.states.get(key)

	handle, ok := e.resolveWindow(rule.Character)
	if !ok {
		e.noteFailure(rule, key, capture.ErrTargetUnavailable)
		return
	}

	req := capture.Request{
		Character: rule.CharacterKey(),
		Handle:    handle,
		Region:    rule.Region,
	}
	if preview, ok := e.resolvePreview(rule.Character); ok {
		req.Preview = &preview
	}

	result, err := e.chain.Acquire(req)
	if err != nil {
		e.noteFailure(rule, key, err)
		return
	}
	state.failures = 0

	if state.pipelineKey != "" && state.pipelineKey != result.PipelineKey {
		// The frame now comes from a different capture path or
		// geometry; the old baseline is not comparable.
		e.debugLogf("rule %s pipeline changed %s -> %s, rebaselining",
			key, state.pipelineKey, result.PipelineKey)
		state.baseline = nil
		state.streak = 0
	}
	state.pipelineKey = result.PipelineKey

	current := cv.Preprocess(result.Image)
	if current.Empty() {
		e.noteFailure(rule, key, capture.ErrCaptureFailed)
		return
	}

	if state.baseline.Empty() || state.baseline.W != current.W || state.baseline.H != current.H {
		if !state.baseline.Empty() {
			e.debugLogf("rule %s %v: %dx%d -> %dx%d, rebaselining", key,
				capture.ErrFrameIncompatible,
				state.baseline.W, state.baseline.H, current.W, current.H)
		}
		state.baseline = current
		state.streak = 0
		return
	}

	score := cv.ChangedPercent(state.baseline, current)
	now := e.now()
	cooling := now.Before(state.cooldownUntil)

	if score < float64(rule.ClampedThreshold()) {
		state.streak = 0
		state.baseline = current
		return
	}

	state.streak++
	if cooling {
		// Still cooling down from the last trigger; absorb the
		// ongoing change so it cannot re-fire the moment the
		// cooldown expires.
		state.streak = 0
		state.baseline = current
		return
	}
	if state.streak < requiredStreak {
		// Rising. Keep the old baseline so the next tick compares
		// against the same reference.
		return
	}

	event := Event{
		ID:          uuid.NewString(),
		Character:   rule.Character,
		RuleKey:     key,
		Label:       rule.Label,
		Score:       score,
		PipelineKey: result.PipelineKey,
		At:          now,
	}
	e.stats.Triggers++
	e.log.Info().
		Str("character", rule.Character).
		Str("label", rule.Label).
		Str("rule_key", key).
		Float64("score", score).
		Str("pipeline", result.PipelineKey).
		Msg("Region alert triggered")
	if e.debug != nil {
		e.debug.recordTrigger(state.baseline, current, key, event)
	}
	if e.onTrigger != nil {
		e.onTrigger(event)
	}

	state.cooldownUntil = now.Add(e.cfg.clampedCooldown())
	state.streak = 0
	state.baseline = current
}

func (e *Engine) noteFailure(rule Rule, key string, err error) {
	e.stats.CaptureFailures++
	wasReset := e.states.noteFailure(key)
	if wasReset {
		e.stats.Resets++
		e.log.Info().
			Str("character", rule.Character).
			Str("rule_key", key).
			Msg("Rule state reset after repeated capture failures")
	}
	e.log.Debug().
		Err(err).
		Str("character", rule.Character).
		Str("rule_key", key).
		Msg("Region capture failed")
	e.debugLogf("rule %s capture failed: %v", key, err)
}

// resolveWindow finds the window handle for a character name, exact
// match first, then case-insensitive on trimmed names.
func (e *Engine) resolveWindow(character string) (capture.WindowHandle, bool) {
	name := strings.TrimSpace(character)
	if h, ok := e.windows[name]; ok && h != 0 {
		return h, true
	}
	lower := strings.ToLower(name)
	for candidate, h := range e.windows {
		if h != 0 && strings.ToLower(strings.TrimSpace(candidate)) == lower {
			return h, true
		}
	}
	return 0, false
}

func (e *Engine) resolvePreview(character string) (capture.PreviewSurface, bool) {
	name := strings.TrimSpace(character)
	if p, ok := e.previews[name]; ok && p.Handle != 0 {
		return p, true
	}
	lower := strings.ToLower(name)
	for candidate, p := range e.previews {
		if p.Handle != 0 && strings.ToLower(strings.TrimSpace(candidate)) == lower {
			return p, true
		}
	}
	return capture.PreviewSurface{}, false
}
