package engine

import (
	"context"
	"sort"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/semsync/pkg/hlgroup"
	"github.com/walteh/semsync/pkg/position"
	"github.com/walteh/semsync/pkg/region"
	"github.com/walteh/semsync/pkg/semtok"
)

// Highlight runs one full-class highlight pass: resolve the token stream
// for the current document version (cache, edit-delta, or full request),
// decode it, and reconcile the result with the renderer. Any in-flight
// full pass is cancelled and superseded first.
//
// All failures are absorbed here: cancellations reschedule quietly,
// provider failures are logged and surfaced once, stale results are
// dropped. Callers needing a precise precondition error use CheckState.
func (e *Engine) Highlight(ctx context.Context) {
	e.mu.Lock()
	if !e.enabledLocked() {
		e.mu.Unlock()
		return
	}
	if e.doc.Dirty() {
		// Buffer changes have not reached the provider yet; a decode now
		// would misplace every span. Try again after the sync settles.
		e.mu.Unlock()
		e.scheduleRetry()
		return
	}
	if !e.registry.HasFullProvider(e.doc) {
		e.mu.Unlock()
		e.rangeHighlight(ctx)
		return
	}
	e.fullScope.dispose()
	sc := newScope(e.baseCtx)
	e.fullScope = sc
	e.mu.Unlock()

	logger := e.logger(ctx)

	spans, version, err := e.obtainSpans(sc)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled):
		logger.Debug().Msg("full highlight pass cancelled, rescheduling")
		e.scheduleRetry()
		return
	case errors.Is(err, ErrStaleVersion):
		logger.Debug().Int("version", version).Msg("dropping stale highlight result")
		return
	default:
		logger.Error().Err(err).Msg("semantic token request failed")
		e.warnOnce("semantic highlighting request failed; see log for details")
		return
	}
	if spans == nil {
		// Provider had nothing for us; not an error.
		return
	}

	if err := e.apply(sc, spans, version); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
			logger.Debug().Msg("highlight apply cancelled, rescheduling")
			e.scheduleRetry()
			return
		}
		logger.Error().Err(err).Msg("applying highlights failed")
		e.warnOnce("applying semantic highlights failed; see log for details")
		return
	}

	e.mu.Lock()
	e.warned = false
	if e.fullScope == sc {
		e.notifyRefreshedLocked()
	}
	e.mu.Unlock()
}

// obtainSpans produces resolved spans for the document version observed
// at entry, preferring the decoded cache, then an edit-delta splice, then
// a full request. The decoded and previous caches are only committed when
// the pass is still current.
func (e *Engine) obtainSpans(sc *scope) ([]semtok.TokenSpan, int, error) {
	e.mu.Lock()
	version := e.doc.Version()
	if e.decoded != nil && e.decoded.version == version {
		// Scroll or viewport churn without an edit; the cache stands.
		spans := e.decoded.spans
		e.mu.Unlock()
		return spans, version, nil
	}
	hasEdits := e.registry.HasEditsProvider(e.doc)
	var prev *previousResult
	if e.previous != nil {
		cp := *e.previous
		prev = &cp
	}
	resolver := e.resolver
	e.mu.Unlock()

	legend := e.registry.Legend(e.doc, false)
	if legend == nil {
		return nil, version, nil
	}

	var raw semtok.RawTokens
	var resultID string

	if hasEdits && prev != nil && prev.resultID != "" {
		res, err := e.registry.RequestEdits(sc.ctx, e.doc, prev.resultID)
		if err != nil {
			return nil, version, errors.Errorf("%w: requesting token edits: %w", ErrProviderFailure, err)
		}
		if res == nil {
			return nil, version, nil
		}
		switch {
		case res.Delta != nil:
			spliced, spliceErr := semtok.ApplyEdits(prev.raw, res.Delta.Edits)
			if spliceErr != nil {
				// The delta no longer matches our cached stream; drop the
				// cache and fall back to a full request.
				e.logger(sc.ctx).Warn().Err(spliceErr).Msg("token delta failed validation, forcing full request")
				e.mu.Lock()
				e.previous = nil
				e.mu.Unlock()
			} else {
				raw = spliced
				resultID = res.Delta.ResultID
			}
		case res.Tokens != nil:
			raw = res.Tokens
			resultID = res.ResultID
		}
	}

	if raw == nil {
		res, err := e.registry.RequestFull(sc.ctx, e.doc)
		if err != nil {
			return nil, version, errors.Errorf("%w: requesting full token stream: %w", ErrProviderFailure, err)
		}
		if res == nil {
			return nil, version, nil
		}
		raw = res.Tokens
		resultID = res.ResultID
	}
	if raw == nil {
		return nil, version, nil
	}

	if e.doc.Version() != version {
		return nil, version, errors.Errorf("document changed during token request: %w", ErrStaleVersion)
	}

	dec := &semtok.Decoder{Legend: legend, Unit: e.unit}
	spans, err := dec.Decode(sc.ctx, raw, e.doc.Line)
	if err != nil {
		return nil, version, errors.Errorf("decoding token stream: %w", err)
	}
	resolveSpans(resolver, spans)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fullScope != sc || !sc.active() {
		return nil, version, errors.Errorf("pass superseded before publishing: %w", ErrCancelled)
	}
	if e.doc.Version() != version {
		return nil, version, errors.Errorf("document changed during decode: %w", ErrStaleVersion)
	}
	e.decoded = &decodedResult{version: version, spans: spans}
	e.previous = &previousResult{version: version, resultID: resultID, raw: raw}
	// New spans invalidate the painted record; nothing on screen is
	// known-accurate for this decode yet.
	e.painted.Clear()
	return spans, version, nil
}

// rangeHighlight serves documents whose providers are range-scoped only:
// request tokens for the expanded visible ranges and merge them into the
// running span cache, skipping lines a previous range result already
// covered. Uses the range cancellation scope.
func (e *Engine) rangeHighlight(ctx context.Context) {
	e.mu.Lock()
	if !e.enabledLocked() || !e.registry.HasRangeProvider(e.doc) {
		e.mu.Unlock()
		return
	}
	e.rangeScope.dispose()
	sc := newScope(e.baseCtx)
	e.rangeScope = sc
	version := e.doc.Version()
	settings := e.settings
	resolver := e.resolver
	e.mu.Unlock()

	logger := e.logger(ctx)

	legend := e.registry.Legend(e.doc, true)
	if legend == nil {
		return
	}

	visible := e.viewport.VisibleRanges(e.doc.ID())
	targets := region.ExpandViewports(visible, e.viewport.Height(e.doc.ID()), e.doc.LineCount(), settings.ExpandAbove, settings.ExpandBelow)

	dec := &semtok.Decoder{Legend: legend, Unit: e.unit}
	updated := false

	for _, r := range targets {
		e.mu.Lock()
		seen := e.rangeSeen.Covered(r)
		e.mu.Unlock()
		if seen {
			continue
		}

		raw, err := e.registry.RequestRange(sc.ctx, e.doc, r)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			logger.Debug().Stringer("range", r).Msg("range request cancelled, rescheduling")
			e.scheduleRetry()
			return
		default:
			logger.Error().Err(err).Stringer("range", r).Msg("range token request failed")
			e.warnOnce("semantic highlighting request failed; see log for details")
			return
		}
		if raw == nil {
			continue
		}

		spans, err := dec.Decode(sc.ctx, raw, e.doc.Line)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				e.scheduleRetry()
				return
			}
			logger.Error().Err(err).Msg("decoding range token stream")
			return
		}
		spans = filterIncrementTypes(spans, settings.IncrementTypes)
		resolveSpans(resolver, spans)

		e.mu.Lock()
		if e.rangeScope != sc || e.doc.Version() != version {
			e.mu.Unlock()
			return
		}
		e.mergeRangeSpansLocked(spans, r)
		e.decoded = &decodedResult{version: version, spans: e.rangeSpans}
		e.painted.Clear()
		e.mu.Unlock()
		updated = true
	}

	if !updated {
		return
	}

	e.mu.Lock()
	spans := e.rangeSpans
	e.mu.Unlock()

	if err := e.apply(sc, spans, version); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
			e.scheduleRetry()
			return
		}
		logger.Error().Err(err).Msg("applying range highlights failed")
		return
	}

	e.mu.Lock()
	e.warned = false
	if e.rangeScope == sc {
		e.notifyRefreshedLocked()
	}
	e.mu.Unlock()
}

// mergeRangeSpansLocked inserts spans from one range result into the
// running cache, dropping spans on lines an earlier range result already
// delivered so overlapping requests never duplicate. Callers hold mu.
func (e *Engine) mergeRangeSpansLocked(spans []semtok.TokenSpan, r position.LineRange) {
	for _, s := range spans {
		if e.rangeSeen.ContainsLine(s.Line) {
			continue
		}
		e.rangeSpans = append(e.rangeSpans, s)
	}
	e.rangeSeen.Mark(r)
	sort.SliceStable(e.rangeSpans, func(i, j int) bool {
		if e.rangeSpans[i].Line != e.rangeSpans[j].Line {
			return e.rangeSpans[i].Line < e.rangeSpans[j].Line
		}
		return e.rangeSpans[i].StartCol < e.rangeSpans[j].StartCol
	})
}

// filterIncrementTypes keeps only spans whose type is eligible for
// incremental range passes. An empty type list allows every type.
func filterIncrementTypes(spans []semtok.TokenSpan, types []string) []semtok.TokenSpan {
	if len(types) == 0 {
		return spans
	}
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	out := make([]semtok.TokenSpan, 0, len(spans))
	for _, s := range spans {
		if _, ok := allowed[s.Type]; ok {
			out = append(out, s)
		}
	}
	return out
}

func resolveSpans(resolver *hlgroup.Resolver, spans []semtok.TokenSpan) {
	for i := range spans {
		spans[i].Group, spans[i].Combine = resolver.Resolve(spans[i].Type, spans[i].Modifiers)
	}
}

// scheduleRetry re-runs a highlight pass after the configured delay.
// Rescheduling supersedes any pending retry.
func (e *Engine) scheduleRetry() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	delay := e.settings.RetryDelay
	stopTimerLocked(&e.retryTimer)
	e.retryTimer = time.AfterFunc(delay, func() {
		e.Highlight(e.baseCtx)
	})
}

func (e *Engine) warnOnce(msg string) {
	e.mu.Lock()
	already := e.warned
	e.warned = true
	m := e.messenger
	e.mu.Unlock()
	if already || m == nil {
		return
	}
	m.Warn(msg)
}
