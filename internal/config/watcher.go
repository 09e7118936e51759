package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher watches configuration files and invokes a callback once a
// burst of filesystem events has settled. Parent directories are
// watched rather than the files themselves, so editors that save via
// rename-and-replace still produce events.
type Watcher struct {
	watcher  *fsnotify.Watcher
	paths    map[string]struct{}
	onChange func(path string)
	debounce time.Duration
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for the given files. A zero debounce
// uses the default. The callback runs on the watcher goroutine, once
// per settled file.
func NewWatcher(paths []string, debounce time.Duration, onChange func(path string)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher:  fw,
		paths:    make(map[string]struct{}, len(paths)),
		onChange: onChange,
		debounce: debounce,
		log:      log.With().Str("module", "config").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			cancel()
			fw.Close()
			return nil, fmt.Errorf("failed to resolve watch path %q: %w", p, err)
		}
		w.paths[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			cancel()
			fw.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
		}
	}

	return w, nil
}

// Start begins delivering change callbacks.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop halts the watcher. No callbacks fire after Stop returns.
func (w *Watcher) Stop() {
	w.cancel()
	w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		changed = make(map[string]struct{})
	)

	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			path := filepath.Clean(ev.Name)
			if _, watched := w.paths[path]; !watched {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			changed[path] = struct{}{}
			resetTimer()

		case <-timerC:
			for path := range changed {
				w.log.Debug().Str("path", path).Msg("Configuration file changed")
				w.onChange(path)
			}
			changed = make(map[string]struct{})
			timer = nil
			timerC = nil

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("File watcher error")

		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
