package engine

import (
	"time"

	"github.com/walteh/semsync/pkg/config"
	"github.com/walteh/semsync/pkg/hlgroup"
)

// OnTextChange reacts to a document edit. The in-flight full pass, if
// any, is computing against text that no longer exists, so its scope is
// cancelled; range results in flight may still land on unedited lines
// and are left alone. A fresh full-class pass runs after the debounce
// window so bursts of keystrokes collapse into one request.
func (e *Engine) OnTextChange() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.fullScope.dispose()
	// The accumulated range cache is version-bound; an edit invalidates
	// both the spans and the per-line coverage record.
	e.rangeSpans = nil
	e.rangeSeen.Clear()

	delay := e.settings.DebounceInterval
	stopTimerLocked(&e.debounceTimer)
	e.debounceTimer = time.AfterFunc(delay, func() {
		e.Highlight(e.baseCtx)
	})
	e.mu.Unlock()
}

// OnCursorMove reacts to cursor or scroll movement. After the debounce
// window it either issues a range-provider request (when only a range
// provider exists and nothing is decoded yet) or runs a region-tracker
// pass over the already-decoded cache; never both. Only the range scope
// is cancelled, so an in-flight full pass completes undisturbed.
func (e *Engine) OnCursorMove() {
	e.mu.Lock()
	if e.disposed || !e.enabledLocked() {
		e.mu.Unlock()
		return
	}
	delay := e.settings.DebounceInterval
	stopTimerLocked(&e.rangeTimer)
	e.rangeTimer = time.AfterFunc(delay, func() {
		e.cursorPass()
	})
	e.mu.Unlock()
}

func (e *Engine) cursorPass() {
	e.mu.Lock()
	if e.disposed || !e.enabledLocked() {
		e.mu.Unlock()
		return
	}
	hasFull := e.registry.HasFullProvider(e.doc)
	decodedCurrent := e.decoded != nil && e.decoded.version == e.doc.Version()
	incremental := e.incremental
	e.mu.Unlock()

	switch {
	case !hasFull && !decodedCurrent:
		e.rangeHighlight(e.baseCtx)
	case decodedCurrent && incremental:
		e.viewportPass()
	}
}

// viewportPass repaints newly visible regions from the decoded cache
// using the range cancellation scope.
func (e *Engine) viewportPass() {
	e.mu.Lock()
	if e.decoded == nil || e.decoded.version != e.doc.Version() {
		e.mu.Unlock()
		return
	}
	e.rangeScope.dispose()
	sc := newScope(e.baseCtx)
	e.rangeScope = sc
	spans := e.decoded.spans
	version := e.decoded.version
	e.mu.Unlock()

	if err := e.apply(sc, spans, version); err != nil {
		e.logger(e.baseCtx).Debug().Err(err).Msg("viewport repaint abandoned")
		return
	}

	e.mu.Lock()
	if e.rangeScope == sc {
		e.notifyRefreshedLocked()
	}
	e.mu.Unlock()
}

// OnConfigReload applies freshly loaded settings. Disabling clears all
// highlight state immediately; re-enabling forces a fresh full pass with
// no stale cache.
func (e *Engine) OnConfigReload(s config.Settings) {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	wasEnabled := e.settings.EnabledFor(e.doc.Filetype(), e.doc.Path())
	e.settings = s
	e.resolver = hlgroup.NewResolver(hlgroup.DefaultPrefix, e.groups, s.CombinedModifiers)
	nowEnabled := s.EnabledFor(e.doc.Filetype(), e.doc.Path())
	e.mu.Unlock()

	switch {
	case wasEnabled && !nowEnabled:
		if err := e.Clear(); err != nil {
			e.logger(e.baseCtx).Warn().Err(err).Msg("clearing highlights after disable")
		}
	case !wasEnabled && nowEnabled:
		e.mu.Lock()
		e.decoded = nil
		e.previous = nil
		e.rangeSpans = nil
		e.rangeSeen.Clear()
		e.painted.Clear()
		e.incremental = false
		e.mu.Unlock()
		e.Highlight(e.baseCtx)
	}
}
