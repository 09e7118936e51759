package window

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lookout-bot/lookout/internal/capture"
	"github.com/lookout-bot/lookout/internal/events"
)

func newTestScanner(windows []Info, onUpdate UpdateFunc, bus events.EventBus) *Scanner {
	s := NewScanner("EVE - {character}", time.Second, bus, onUpdate, zerolog.Nop())
	s.listWindows = func() ([]Info, error) { return windows, nil }
	return s
}

func TestScannerMatchesPattern(t *testing.T) {
	windows := []Info{
		{Handle: 0x1, Title: "EVE - Aria Stone"},
		{Handle: 0x2, Title: "Notepad"},
		{Handle: 0x3, Title: "EVE - Bex Carter"},
	}

	var got map[string]capture.WindowHandle
	s := newTestScanner(windows, func(m map[string]capture.WindowHandle) { got = m }, nil)
	s.SetCharacters([]string{"Aria Stone", "Bex Carter", "Missing Pilot"})

	s.ScanOnce()

	if len(got) != 2 {
		t.Fatalf("Expected 2 matched characters, got %d", len(got))
	}
	if got["Aria Stone"] != 0x1 {
		t.Errorf("Expected Aria Stone -> 0x1, got %#x", got["Aria Stone"])
	}
	if got["Bex Carter"] != 0x3 {
		t.Errorf("Expected Bex Carter -> 0x3, got %#x", got["Bex Carter"])
	}
	if _, ok := got["Missing Pilot"]; ok {
		t.Error("Expected no mapping for a character without a window")
	}
}

func TestScannerMatchesCaseInsensitive(t *testing.T) {
	windows := []Info{
		{Handle: 0x7, Title: "  eve - ARIA stone  "},
	}

	var got map[string]capture.WindowHandle
	s := newTestScanner(windows, func(m map[string]capture.WindowHandle) { got = m }, nil)
	s.SetCharacters([]string{"Aria Stone"})

	s.ScanOnce()

	if got["Aria Stone"] != 0x7 {
		t.Errorf("Expected case-insensitive trimmed match, got %#x", got["Aria Stone"])
	}
}

func TestScannerDeduplicatesCharacters(t *testing.T) {
	s := newTestScanner(nil, nil, nil)
	s.SetCharacters([]string{"Aria Stone", "aria stone", "  ", "Bex Carter"})

	if len(s.characters) != 2 {
		t.Errorf("Expected 2 unique characters, got %v", s.characters)
	}
}

func TestScannerFoundAndLostEvents(t *testing.T) {
	bus := events.NewEventBus(16)
	defer bus.Stop()

	foundCh := make(chan events.Event, 4)
	lostCh := make(chan events.Event, 4)
	bus.Subscribe(events.EventTypeTargetFound, func(ev events.Event) { foundCh <- ev })
	bus.Subscribe(events.EventTypeTargetLost, func(ev events.Event) { lostCh <- ev })

	windows := []Info{{Handle: 0x1, Title: "EVE - Aria Stone"}}
	s := newTestScanner(windows, nil, bus)
	s.SetCharacters([]string{"Aria Stone"})

	s.ScanOnce()
	select {
	case ev := <-foundCh:
		if ev.Data["character"] != "Aria Stone" {
			t.Errorf("Expected found event for Aria Stone, got %v", ev.Data)
		}
		if ev.Data["window_title"] != "EVE - Aria Stone" {
			t.Errorf("Expected window title in event, got %v", ev.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for target.found")
	}

	// Re-scanning with no change publishes nothing new.
	s.ScanOnce()
	select {
	case <-foundCh:
		t.Fatal("Expected no repeated found event for a stable window")
	case <-time.After(100 * time.Millisecond):
	}

	// The window disappears.
	s.listWindows = func() ([]Info, error) { return nil, nil }
	s.ScanOnce()
	select {
	case ev := <-lostCh:
		if ev.Data["character"] != "aria stone" {
			t.Errorf("Expected lost event, got %v", ev.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for target.lost")
	}
}

func TestScannerPublishesEmptyMappingWhenNothingMatches(t *testing.T) {
	var got map[string]capture.WindowHandle
	s := newTestScanner(nil, func(m map[string]capture.WindowHandle) { got = m }, nil)
	s.SetCharacters([]string{"Aria Stone"})

	s.ScanOnce()

	if got == nil {
		t.Fatal("Expected an update callback even with no matches")
	}
	if len(got) != 0 {
		t.Errorf("Expected empty mapping, got %v", got)
	}
}

func TestExpandPattern(t *testing.T) {
	tests := []struct {
		pattern   string
		character string
		want      string
	}{
		{"EVE - {character}", "Aria Stone", "EVE - Aria Stone"},
		{"{character} [Sim]", "Bex", "Bex [Sim]"},
		{"Static Title", "Aria", "Static Title"},
	}
	for _, tt := range tests {
		if got := ExpandPattern(tt.pattern, tt.character); got != tt.want {
			t.Errorf("ExpandPattern(%q, %q): expected %q, got %q",
				tt.pattern, tt.character, tt.want, got)
		}
	}
}

func TestScannerStartStop(t *testing.T) {
	scans := make(chan struct{}, 16)
	s := NewScanner("EVE - {character}", 50*time.Millisecond, nil, nil, zerolog.Nop())
	s.listWindows = func() ([]Info, error) {
		select {
		case scans <- struct{}{}:
		default:
		}
		return nil, nil
	}

	s.Start()
	select {
	case <-scans:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for initial scan")
	}
	s.Stop()
}
