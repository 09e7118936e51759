package monitor

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestWatchdog(pollInterval time.Duration) (*Watchdog, chan time.Duration) {
	stalls := make(chan time.Duration, 8)
	wd := NewWatchdog(pollInterval, zerolog.Nop()).
		WithCheckInterval(25 * time.Millisecond).
		WithStallCallback(func(since time.Duration) {
			stalls <- since
		})
	return wd, stalls
}

func TestWatchdogDetectsStall(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping timer-driven watchdog test in short mode")
	}

	wd, stalls := newTestWatchdog(50 * time.Millisecond)

	wd.Start()
	defer wd.Stop()

	select {
	case since := <-stalls:
		if since < 150*time.Millisecond {
			t.Errorf("Stall reported too early: %v", since)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected stall callback, got none")
	}
}

func TestWatchdogQuietWhileTicking(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping timer-driven watchdog test in short mode")
	}

	wd, stalls := newTestWatchdog(50 * time.Millisecond)

	wd.Start()
	defer wd.Stop()

	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		wd.RecordTick()
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case since := <-stalls:
		t.Fatalf("Unexpected stall callback while ticking: %v", since)
	default:
	}
}

func TestWatchdogWarnsOncePerStall(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping timer-driven watchdog test in short mode")
	}

	wd, stalls := newTestWatchdog(50 * time.Millisecond)

	wd.Start()
	defer wd.Stop()

	select {
	case <-stalls:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected first stall callback, got none")
	}

	// The latch suppresses repeats until a tick lands.
	select {
	case <-stalls:
		t.Fatal("Expected stall warning to fire once per stall")
	case <-time.After(200 * time.Millisecond):
	}

	wd.RecordTick()

	select {
	case <-stalls:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected second stall callback after recovery, got none")
	}
}

func TestWatchdogSetPollIntervalRaisesThreshold(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping timer-driven watchdog test in short mode")
	}

	wd, stalls := newTestWatchdog(50 * time.Millisecond)
	wd.SetPollInterval(10 * time.Second)

	wd.Start()
	defer wd.Stop()

	select {
	case since := <-stalls:
		t.Fatalf("Unexpected stall callback under widened threshold: %v", since)
	case <-time.After(300 * time.Millisecond):
	}
}
