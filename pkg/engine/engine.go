// Package engine synchronizes semantic token highlighting for one live
// document: it requests token streams from a provider registry, decodes
// them against the current document text, reconciles the decoded spans
// with the renderer, and keeps repaint work bounded to the viewport on
// large documents.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"

	"github.com/walteh/semsync/pkg/config"
	"github.com/walteh/semsync/pkg/hlgroup"
	"github.com/walteh/semsync/pkg/position"
	"github.com/walteh/semsync/pkg/region"
	"github.com/walteh/semsync/pkg/semtok"
)

// decodedResult is the span cache for one document version. Replaced
// wholesale on every successful decode; never reused when its version no
// longer matches the document.
type decodedResult struct {
	version int
	spans   []semtok.TokenSpan
}

// previousResult caches the last raw provider payload so an edit-delta
// request can splice against it. Invalidated by forced full requests,
// clears, and deltas that fail validation.
type previousResult struct {
	version  int
	resultID string
	raw      semtok.RawTokens
}

// Engine drives semantic highlighting for a single document. Create one
// per open document with New and Dispose it when the document closes.
//
// All internal state is guarded by mu, which is released around every
// suspension point (provider calls, decoding, renderer diffs); a pass
// re-checks its cancellation scope and the document version after each
// one before touching shared state again.
type Engine struct {
	id        string
	doc       Document
	registry  Registry
	renderer  Renderer
	viewport  Viewport
	messenger Messenger

	// namespace is the renderer highlight namespace exclusively owned by
	// this engine for its buffer.
	namespace string

	// unit is the provider's character-offset unit.
	unit position.Unit

	// groups is the statically known set of available highlight group
	// names the resolver chooses from.
	groups []string

	baseCtx context.Context

	mu          sync.Mutex
	settings    config.Settings
	resolver    *hlgroup.Resolver
	decoded     *decodedResult
	previous    *previousResult
	painted     region.PaintedSet
	rangeSpans  []semtok.TokenSpan
	rangeSeen   region.PaintedSet
	incremental bool

	fullScope  *scope
	rangeScope *scope

	debounceTimer *time.Timer
	rangeTimer    *time.Timer
	retryTimer    *time.Timer

	refreshed chan struct{}
	warned    bool
	disposed  bool
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithMessenger sets the user diagnostic sink.
func WithMessenger(m Messenger) Option {
	return func(e *Engine) { e.messenger = m }
}

// WithUnit sets the provider's character-offset unit. UTF-16 is the
// protocol default.
func WithUnit(u position.Unit) Option {
	return func(e *Engine) { e.unit = u }
}

// WithNamespace overrides the renderer namespace.
func WithNamespace(ns string) Option {
	return func(e *Engine) { e.namespace = ns }
}

// New builds an engine for one document. groups is the full set of
// available highlight group names; ctx is the engine's base context for
// timer-driven passes and carries its logger.
func New(ctx context.Context, doc Document, registry Registry, renderer Renderer, viewport Viewport, settings config.Settings, groups []string, opts ...Option) *Engine {
	e := &Engine{
		id:        uuid.NewString(),
		doc:       doc,
		registry:  registry,
		renderer:  renderer,
		viewport:  viewport,
		namespace: "semsync",
		unit:      position.UnitUTF16,
		groups:    groups,
		baseCtx:   ctx,
		settings:  settings,
		refreshed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resolver = hlgroup.NewResolver(hlgroup.DefaultPrefix, groups, settings.CombinedModifiers)
	return e
}

// ID returns the engine's instance id, used in logs.
func (e *Engine) ID() string {
	return e.id
}

// enabledLocked reports whether every feature precondition holds. Callers
// hold mu.
func (e *Engine) enabledLocked() bool {
	if e.disposed {
		return false
	}
	if !e.settings.EnabledFor(e.doc.Filetype(), e.doc.Path()) {
		return false
	}
	if e.registry.Legend(e.doc, !e.registry.HasFullProvider(e.doc)) == nil {
		return false
	}
	return e.registry.HasFullProvider(e.doc) || e.registry.HasRangeProvider(e.doc)
}

// Enabled reports whether highlighting is currently possible for the
// document. Passive passes are silent no-ops when it is false.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabledLocked()
}

// CheckState verifies the feature preconditions and returns a precise
// error for explicit user-invoked actions. Background passes never call
// this; they go quiet instead.
func (e *Engine) CheckState() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return errors.Errorf("document %d: %w", e.doc.ID(), ErrDisposed)
	}
	if !e.settings.EnabledFor(e.doc.Filetype(), e.doc.Path()) {
		return errors.Errorf("semantic highlighting is disabled for filetype %q: %w", e.doc.Filetype(), ErrProviderUnavailable)
	}
	hasFull := e.registry.HasFullProvider(e.doc)
	hasRange := e.registry.HasRangeProvider(e.doc)
	if !hasFull && !hasRange {
		return errors.Errorf("no provider registered for filetype %q: %w", e.doc.Filetype(), ErrProviderUnavailable)
	}
	if e.registry.Legend(e.doc, !hasFull) == nil {
		return errors.Errorf("provider for filetype %q publishes no token legend: %w", e.doc.Filetype(), ErrProviderUnavailable)
	}
	return nil
}

// CachedSpans returns the decoded spans for the current document version,
// or nil when the cache is absent or stale.
func (e *Engine) CachedSpans() []semtok.TokenSpan {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.decoded == nil || e.decoded.version != e.doc.Version() {
		return nil
	}
	out := make([]semtok.TokenSpan, len(e.decoded.spans))
	copy(out, e.decoded.spans)
	return out
}

// PaintedRanges returns the line ranges currently reconciled with the
// renderer.
func (e *Engine) PaintedRanges() []position.LineRange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.painted.Ranges()
}

// WaitRefresh blocks until the next completed highlight pass. It fails
// with ErrWaitTimeout after the configured deadline instead of hanging,
// which keeps test and automation callers honest.
func (e *Engine) WaitRefresh(ctx context.Context) error {
	e.mu.Lock()
	ch := e.refreshed
	timeout := e.settings.WaitTimeout
	disposed := e.disposed
	e.mu.Unlock()

	if disposed {
		return ErrDisposed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ch:
		return nil
	case <-timer.C:
		return errors.Errorf("no refresh within %s: %w", timeout, ErrWaitTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notifyRefreshedLocked wakes every WaitRefresh caller. Callers hold mu.
func (e *Engine) notifyRefreshedLocked() {
	close(e.refreshed)
	e.refreshed = make(chan struct{})
}

// Clear drops every highlight and cache. The next pass starts from a
// forced full request.
func (e *Engine) Clear() error {
	e.mu.Lock()
	e.fullScope.dispose()
	e.rangeScope.dispose()
	e.decoded = nil
	e.previous = nil
	e.rangeSpans = nil
	e.rangeSeen.Clear()
	e.painted.Clear()
	e.incremental = false
	bufID := e.doc.ID()
	ns := e.namespace
	e.mu.Unlock()

	if err := e.renderer.ClearNamespace(bufID, ns); err != nil {
		return errors.Errorf("clearing highlight namespace: %w", err)
	}
	return nil
}

// Dispose tears the engine down. Idempotent; the engine refuses all work
// afterwards.
func (e *Engine) Dispose() error {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return nil
	}
	e.disposed = true
	e.fullScope.dispose()
	e.rangeScope.dispose()
	stopTimerLocked(&e.debounceTimer)
	stopTimerLocked(&e.rangeTimer)
	stopTimerLocked(&e.retryTimer)
	bufID := e.doc.ID()
	ns := e.namespace
	e.mu.Unlock()

	var err error
	if clearErr := e.renderer.ClearNamespace(bufID, ns); clearErr != nil {
		err = multierr.Append(err, errors.Errorf("clearing highlight namespace on dispose: %w", clearErr))
	}
	return err
}

func stopTimerLocked(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (e *Engine) logger(ctx context.Context) *zerolog.Logger {
	logger := zerolog.Ctx(ctx).With().
		Str("engine", e.id).
		Int("buf", e.doc.ID()).
		Logger()
	return &logger
}
