package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// stallMultiplier is how many poll intervals may pass without a tick
// before the engine counts as stalled.
const stallMultiplier = 3

// StallCallback is called when the engine poll loop stops ticking
type StallCallback func(sinceLastTick time.Duration)

// Watchdog verifies the alert engine keeps ticking. A wedged capture
// call or a deadlocked poll loop stops tick reports; the watchdog
// notices and raises a warning. Detection only, it never restarts
// anything.
type Watchdog struct {
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	lastTick      time.Time
	pollInterval  time.Duration
	checkInterval time.Duration
	onStall       StallCallback
	warned        bool
	mu            sync.RWMutex
	log           zerolog.Logger
}

// NewWatchdog creates a watchdog for an engine polling at the given
// interval
func NewWatchdog(pollInterval time.Duration, logger zerolog.Logger) *Watchdog {
	ctx, cancel := context.WithCancel(context.Background())

	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &Watchdog{
		ctx:           ctx,
		cancel:        cancel,
		lastTick:      time.Now(),
		pollInterval:  pollInterval,
		checkInterval: time.Second,
		log:           logger,
	}
}

// WithStallCallback sets the callback for stall events
func (w *Watchdog) WithStallCallback(callback StallCallback) *Watchdog {
	w.onStall = callback
	return w
}

// WithCheckInterval sets how often the watchdog looks for a stall
func (w *Watchdog) WithCheckInterval(interval time.Duration) *Watchdog {
	if interval > 0 {
		w.checkInterval = interval
	}
	return w
}

// SetPollInterval updates the expected tick cadence after a reload
func (w *Watchdog) SetPollInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pollInterval = interval
}

// Start begins stall monitoring
func (w *Watchdog) Start() {
	w.wg.Add(1)
	go w.monitorStall()
}

// Stop stops stall monitoring
func (w *Watchdog) Stop() {
	w.cancel()
	w.wg.Wait()
}

// RecordTick records one completed engine pass
func (w *Watchdog) RecordTick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastTick = time.Now()
	w.warned = false
}

// Private
func (w *Watchdog) monitorStall() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.checkStalled()
		}
	}
}

func (w *Watchdog) checkStalled() {
	w.mu.Lock()
	sinceLast := time.Since(w.lastTick)
	threshold := w.pollInterval * stallMultiplier
	stalled := sinceLast > threshold && !w.warned
	if stalled {
		// Warn once per stall; RecordTick re-arms the latch.
		w.warned = true
	}
	w.mu.Unlock()

	if !stalled {
		return
	}

	w.log.Warn().
		Dur("since_last_tick", sinceLast).
		Dur("threshold", threshold).
		Msg("Alert engine appears stalled")

	if w.onStall != nil {
		w.onStall(sinceLast)
	}
}
