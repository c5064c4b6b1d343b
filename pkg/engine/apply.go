package engine

import (
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/semsync/pkg/config"
	"github.com/walteh/semsync/pkg/position"
	"github.com/walteh/semsync/pkg/region"
	"github.com/walteh/semsync/pkg/semtok"
)

// apply reconciles decoded spans with the renderer. Small results, and
// the first large one, go through a single whole-document pass; once a
// large apply has happened the engine switches to incremental mode and
// every later pass is restricted to the expanded viewport regions.
func (e *Engine) apply(sc *scope, spans []semtok.TokenSpan, version int) error {
	e.mu.Lock()
	settings := e.settings
	incremental := e.incremental
	e.mu.Unlock()

	if len(spans) < settings.SpanThreshold || !incremental {
		return e.applyWhole(sc, spans, version, settings)
	}
	return e.applyViewport(sc, spans, version, settings)
}

func (e *Engine) applyWhole(sc *scope, spans []semtok.TokenSpan, version int, settings config.Settings) error {
	bufID := e.doc.ID()

	diff, err := e.renderer.Diff(sc.ctx, bufID, e.namespace, renderItems(spans, nil), nil)
	if err != nil {
		return errors.Errorf("diffing whole-document highlights: %w", err)
	}
	if err := sc.ctx.Err(); err != nil {
		return errors.Errorf("whole-document apply withdrawn: %w", err)
	}
	if diff != nil {
		if err := e.renderer.Apply(bufID, e.namespace, settings.HighlightPriority, diff, false); err != nil {
			return errors.Errorf("applying whole-document highlights: %w", err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc.Version() != version {
		return errors.Errorf("document changed during apply: %w", ErrStaleVersion)
	}
	e.painted.Clear()
	e.painted.Mark(position.LineRange{Start: 0, End: e.doc.LineCount()})
	if len(spans) >= settings.SpanThreshold {
		// From here on this document pays for incremental passes only.
		e.incremental = true
	}
	return nil
}

func (e *Engine) applyViewport(sc *scope, spans []semtok.TokenSpan, version int, settings config.Settings) error {
	bufID := e.doc.ID()

	visible := e.viewport.VisibleRanges(bufID)
	targets := region.ExpandViewports(visible, e.viewport.Height(bufID), e.doc.LineCount(), settings.ExpandAbove, settings.ExpandBelow)

	for _, r := range targets {
		e.mu.Lock()
		covered := e.painted.Covered(r)
		e.mu.Unlock()
		if covered {
			continue
		}

		r := r
		diff, err := e.renderer.Diff(sc.ctx, bufID, e.namespace, renderItems(spans, &r), &r)
		if err != nil {
			return errors.Errorf("diffing highlights for %s: %w", r, err)
		}
		if err := sc.ctx.Err(); err != nil {
			return errors.Errorf("viewport apply withdrawn at %s: %w", r, err)
		}
		if diff != nil {
			if err := e.renderer.Apply(bufID, e.namespace, settings.HighlightPriority, diff, true); err != nil {
				return errors.Errorf("applying highlights for %s: %w", r, err)
			}
		}

		e.mu.Lock()
		if e.doc.Version() != version {
			e.mu.Unlock()
			return errors.Errorf("document changed during viewport apply: %w", ErrStaleVersion)
		}
		// Only now is this region's displayed highlighting guaranteed
		// accurate for the current decode.
		e.painted.Mark(r)
		e.mu.Unlock()
	}
	return nil
}

// renderItems converts resolved spans into renderer items, dropping spans
// no group matched and, when restrict is set, spans outside it.
func renderItems(spans []semtok.TokenSpan, restrict *position.LineRange) []Item {
	items := make([]Item, 0, len(spans))
	for _, s := range spans {
		if s.Group == "" {
			continue
		}
		if restrict != nil && !restrict.Contains(s.Line) {
			continue
		}
		items = append(items, Item{
			Line:     s.Line,
			StartCol: s.StartCol,
			EndCol:   s.EndCol,
			Group:    s.Group,
			Combine:  s.Combine,
		})
	}
	return items
}
