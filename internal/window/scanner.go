package window

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lookout-bot/lookout/internal/capture"
	"github.com/lookout-bot/lookout/internal/events"
)

// characterPlaceholder is replaced with the character name when
// expanding the title pattern.
const characterPlaceholder = "{character}"

// Info describes one top-level window.
type Info struct {
	Handle capture.WindowHandle
	Title  string
}

// UpdateFunc receives the full character-to-window mapping after every
// scan.
type UpdateFunc func(map[string]capture.WindowHandle)

// Scanner periodically enumerates top-level windows and maps watched
// character names to their client windows by title. Characters come
// from the rule set; the expected title is the configured pattern with
// the character name substituted in.
type Scanner struct {
	mu         sync.Mutex
	pattern    string
	characters []string
	interval   time.Duration

	// listWindows is the platform enumeration, replaceable in tests.
	listWindows func() ([]Info, error)

	onUpdate UpdateFunc
	bus      events.EventBus
	known    map[string]capture.WindowHandle
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScanner creates a scanner. The bus may be nil; found and lost
// events are then skipped. onUpdate runs on the scanner goroutine
// after every pass.
func NewScanner(pattern string, interval time.Duration, bus events.EventBus, onUpdate UpdateFunc, logger zerolog.Logger) *Scanner {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scanner{
		pattern:     pattern,
		interval:    interval,
		listWindows: platformListWindows,
		onUpdate:    onUpdate,
		bus:         bus,
		known:       make(map[string]capture.WindowHandle),
		log:         logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetCharacters replaces the watched character list. Takes effect on
// the next scan.
func (s *Scanner) SetCharacters(characters []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(characters))
	unique := make([]string, 0, len(characters))
	for _, c := range characters {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		key := strings.ToLower(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, c)
	}
	s.characters = unique
}

// SetPattern replaces the title pattern. Takes effect on the next scan.
func (s *Scanner) SetPattern(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pattern = pattern
}

// Start launches the periodic scan loop.
func (s *Scanner) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop halts the scan loop.
func (s *Scanner) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scanner) run() {
	defer s.wg.Done()

	// Scan immediately so the engine has windows before the first
	// poll tick.
	s.ScanOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.ScanOnce()
		}
	}
}

// ScanOnce runs a single enumeration pass and publishes the result.
func (s *Scanner) ScanOnce() {
	s.mu.Lock()
	pattern := s.pattern
	characters := make([]string, len(s.characters))
	copy(characters, s.characters)
	s.mu.Unlock()

	windows, err := s.listWindows()
	if err != nil {
		s.log.Warn().Err(err).Msg("Window enumeration failed")
		return
	}

	found := make(map[string]capture.WindowHandle, len(characters))
	for _, character := range characters {
		expected := ExpandPattern(pattern, character)
		for _, w := range windows {
			if w.Handle == 0 {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(w.Title), expected) {
				found[character] = w.Handle
				break
			}
		}
	}

	s.publishDiff(found, windows)

	if s.onUpdate != nil {
		s.onUpdate(found)
	}
}

// publishDiff raises found and lost events against the previous scan.
func (s *Scanner) publishDiff(found map[string]capture.WindowHandle, windows []Info) {
	s.mu.Lock()
	previous := s.known
	next := make(map[string]capture.WindowHandle, len(found))
	for character, handle := range found {
		next[strings.ToLower(character)] = handle
	}
	s.known = next
	s.mu.Unlock()

	if s.bus == nil {
		return
	}

	for character, handle := range found {
		key := strings.ToLower(character)
		if prev, ok := previous[key]; !ok || prev != handle {
			title := ""
			for _, w := range windows {
				if w.Handle == handle {
					title = w.Title
					break
				}
			}
			s.log.Info().
				Str("character", character).
				Str("title", title).
				Msg("Target window found")
			s.bus.Publish(events.NewTargetFoundEvent(character, title, uintptr(handle)))
		}
	}

	for key := range previous {
		if _, still := next[key]; !still {
			s.log.Info().Str("character", key).Msg("Target window lost")
			s.bus.Publish(events.NewTargetLostEvent(key))
		}
	}
}

// ExpandPattern substitutes a character name into the title pattern.
// A pattern without the placeholder is used verbatim.
func ExpandPattern(pattern, character string) string {
	if strings.Contains(pattern, characterPlaceholder) {
		return strings.ReplaceAll(pattern, characterPlaceholder, character)
	}
	return pattern
}
