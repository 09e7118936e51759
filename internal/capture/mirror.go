package capture

import (
	"github.com/rs/zerolog"
)

// MirrorPool owns the long-lived per-character mirror surfaces used by
// the mirror capture strategy. Mirrors are created lazily on first use,
// recreated when a character's source window changes, and released when
// the character drops out of the enabled rule set or at shutdown. The
// pool is not safe for concurrent use; the engine serializes access
// under its own lock.
type MirrorPool struct {
	provider MirrorProvider
	entries  map[string]*mirrorEntry
	log      zerolog.Logger
}

type mirrorEntry struct {
	mirror Mirror
	source WindowHandle
}

// NewMirrorPool creates an empty pool over the given provider.
func NewMirrorPool(provider MirrorProvider, log zerolog.Logger) *MirrorPool {
	return &MirrorPool{
		provider: provider,
		entries:  make(map[string]*mirrorEntry),
		log:      log,
	}
}

// Acquire returns the character's mirror, creating it on first use and
// recreating it if the character's source window changed since the
// mirror was registered.
func (mp *MirrorPool) Acquire(character string, source WindowHandle) (Mirror, error) {
	if mp.provider == nil {
		return nil, ErrTargetUnavailable
	}

	if entry, ok := mp.entries[character]; ok {
		if entry.source == source {
			return entry.mirror, nil
		}
		// Source window changed; the old mirror composites a dead
		// surface.
		entry.mirror.Release()
		delete(mp.entries, character)
		mp.log.Debug().Str("character", character).Msg("recreating mirror for new source window")
	}

	mirror, err := mp.provider.RegisterMirror(source)
	if err != nil {
		return nil, err
	}

	mp.entries[character] = &mirrorEntry{mirror: mirror, source: source}
	mp.log.Debug().Str("character", character).Int("mirrors", len(mp.entries)).Msg("mirror registered")
	return mirror, nil
}

// Prune releases every mirror whose character is absent from the active
// set. Called on every poll tick and every config reload.
func (mp *MirrorPool) Prune(active map[string]struct{}) {
	for character, entry := range mp.entries {
		if _, ok := active[character]; ok {
			continue
		}
		entry.mirror.Release()
		delete(mp.entries, character)
		mp.log.Debug().Str("character", character).Msg("mirror pruned")
	}
}

// ReleaseAll drops every mirror. Called on disable and at shutdown.
func (mp *MirrorPool) ReleaseAll() {
	for character, entry := range mp.entries {
		entry.mirror.Release()
		delete(mp.entries, character)
	}
}

// Len returns the number of live mirrors.
func (mp *MirrorPool) Len() int {
	return len(mp.entries)
}
