// Package config holds the reloadable settings for the semantic highlight
// engine. Settings come from an HCL file and can be re-read while engines
// are live; subscribers are notified so an `enabled` flip takes effect
// immediately.
package config

import (
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"gitlab.com/tozd/go/errors"
)

// Engine timing and sizing defaults. The expansion margins and the span
// threshold are empirical tuning values carried as configuration rather
// than derived.
const (
	DefaultHighlightPriority = 2048
	DefaultDebounceInterval  = 150 * time.Millisecond
	DefaultRetryDelay        = 500 * time.Millisecond
	DefaultWaitTimeout       = 500 * time.Millisecond
	DefaultSpanThreshold     = 200
	DefaultExpandAbove       = 1.5
	DefaultExpandBelow       = 2.0
)

// Settings is the engine configuration in effect for one reload
// generation. Values are immutable once published to subscribers.
type Settings struct {
	// Enabled turns the whole feature on or off. Flipping it mid-session
	// clears or rebuilds highlight state on the next notification.
	Enabled bool

	// HighlightPriority is handed to the renderer with every apply.
	HighlightPriority int

	// FiletypePatterns restricts the feature to matching documents.
	// Patterns match either the document's filetype verbatim or its path
	// as a doublestar glob. Empty means every filetype.
	FiletypePatterns []string

	// CombinedModifiers are modifier names whose highlights layer over
	// existing styling instead of replacing it.
	CombinedModifiers []string

	// IncrementTypes are token types eligible for incremental range
	// requests while typing.
	IncrementTypes []string

	DebounceInterval time.Duration
	RetryDelay       time.Duration
	WaitTimeout      time.Duration

	// SpanThreshold is the decoded span count above which apply switches
	// from whole-document to viewport-region passes.
	SpanThreshold int

	// ExpandAbove/ExpandBelow are the viewport pre-warm margins in
	// viewport heights.
	ExpandAbove float64
	ExpandBelow float64
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() Settings {
	return Settings{
		Enabled:           true,
		HighlightPriority: DefaultHighlightPriority,
		CombinedModifiers: []string{"deprecated"},
		DebounceInterval:  DefaultDebounceInterval,
		RetryDelay:        DefaultRetryDelay,
		WaitTimeout:       DefaultWaitTimeout,
		SpanThreshold:     DefaultSpanThreshold,
		ExpandAbove:       DefaultExpandAbove,
		ExpandBelow:       DefaultExpandBelow,
	}
}

// Validate checks every field and reports all problems at once.
func (s Settings) Validate() error {
	var result *multierror.Error

	if s.HighlightPriority < 0 {
		result = multierror.Append(result, errors.Errorf("highlight_priority must not be negative, got %d", s.HighlightPriority))
	}
	if s.SpanThreshold <= 0 {
		result = multierror.Append(result, errors.Errorf("span_threshold must be positive, got %d", s.SpanThreshold))
	}
	if s.DebounceInterval < 0 || s.RetryDelay < 0 || s.WaitTimeout <= 0 {
		result = multierror.Append(result, errors.New("timing settings must be positive"))
	}
	if s.ExpandAbove <= 0 || s.ExpandBelow <= 0 {
		result = multierror.Append(result, errors.Errorf("viewport expansion margins must be positive, got %.2f/%.2f", s.ExpandAbove, s.ExpandBelow))
	}
	for _, p := range s.FiletypePatterns {
		if !doublestar.ValidatePattern(p) {
			result = multierror.Append(result, errors.Errorf("invalid filetype pattern %q", p))
		}
	}

	return result.ErrorOrNil()
}

// EnabledFor reports whether the feature applies to a document with the
// given filetype and path.
func (s Settings) EnabledFor(filetype, path string) bool {
	if !s.Enabled {
		return false
	}
	if len(s.FiletypePatterns) == 0 {
		return true
	}
	for _, p := range s.FiletypePatterns {
		if p == filetype {
			return true
		}
		if ok, err := doublestar.Match(p, path); err == nil && ok {
			return true
		}
	}
	return false
}
