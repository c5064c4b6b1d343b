package engine

import (
	"context"

	"github.com/walteh/semsync/pkg/position"
	"github.com/walteh/semsync/pkg/semtok"
)

// Document is the engine's view of one open buffer. Version increases
// monotonically with every edit; all line access reflects the current
// version.
type Document interface {
	// ID is the stable buffer identity used with the renderer and
	// viewport collaborators.
	ID() int
	Version() int
	Dirty() bool
	LineCount() int
	// Line returns the current text of line n, or false when n is out of
	// bounds.
	Line(n int) (string, bool)
	Filetype() string
	Path() string
}

// FullResult is a whole-document token response. ResultID, when set, makes
// the result eligible as the base of a later edit-delta request.
type FullResult struct {
	Tokens   semtok.RawTokens
	ResultID string
}

// EditsResult is the response to an edit-delta request. Providers may
// answer with splice edits against the previous stream or fall back to a
// fresh full stream; exactly one of Delta and Tokens is set.
type EditsResult struct {
	Delta    *semtok.Delta
	Tokens   semtok.RawTokens
	ResultID string
}

// Registry is the read-only provider registry. A nil result with a nil
// error means "no result" (unsupported or withdrawn) and must be treated
// as a no-op by callers, never as a failure.
type Registry interface {
	HasFullProvider(doc Document) bool
	HasRangeProvider(doc Document) bool
	HasEditsProvider(doc Document) bool

	// Legend returns the token legend for the document, or nil when no
	// provider published one. rangeOnly asks for the legend of the
	// range-scoped provider.
	Legend(doc Document, rangeOnly bool) *semtok.Legend

	RequestFull(ctx context.Context, doc Document) (*FullResult, error)
	RequestEdits(ctx context.Context, doc Document, previousResultID string) (*EditsResult, error)
	RequestRange(ctx context.Context, doc Document, r position.LineRange) (semtok.RawTokens, error)
}

// Item is one desired highlight handed to the renderer.
type Item struct {
	Line     int
	StartCol int
	EndCol   int
	Group    string
	Combine  bool
}

// DiffSet is the renderer's opaque delta between desired and painted
// highlights. The engine only carries it from Diff to Apply.
type DiffSet any

// Renderer is the highlight painting collaborator. The engine exclusively
// owns its namespace for a given buffer.
type Renderer interface {
	// Diff computes the changes needed to make the namespace match items.
	// A restrict range limits the comparison to those lines. A nil
	// DiffSet means nothing to do.
	Diff(ctx context.Context, bufID int, namespace string, items []Item, restrict *position.LineRange) (DiffSet, error)

	// Apply paints a previously computed diff. partial marks a
	// region-restricted apply.
	Apply(bufID int, namespace string, priority int, diff DiffSet, partial bool) error

	// ClearNamespace removes every highlight the engine has painted.
	ClearNamespace(bufID int, namespace string) error
}

// Viewport reports which document lines are currently on screen.
type Viewport interface {
	VisibleRanges(bufID int) []position.LineRange
	// Height is the window height in lines, the base of the repaint
	// pre-warm margins.
	Height(bufID int) int
}

// Messenger surfaces a single best-effort diagnostic to the user.
type Messenger interface {
	Warn(msg string)
}
