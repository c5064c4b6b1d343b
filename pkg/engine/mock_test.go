package engine_test

import (
	"context"
	"strings"
	"sync"

	"github.com/walteh/semsync/pkg/engine"
	"github.com/walteh/semsync/pkg/position"
	"github.com/walteh/semsync/pkg/semtok"
)

// mockDocument is a mutable in-memory document with a monotonically
// increasing version.
type mockDocument struct {
	mu       sync.Mutex
	id       int
	version  int
	lines    []string
	filetype string
	path     string
	dirty    bool
}

func newMockDocument(lineCount int) *mockDocument {
	lines := make([]string, lineCount)
	for i := range lines {
		lines[i] = strings.Repeat(" ", 120)
	}
	return &mockDocument{
		id:       7,
		version:  1,
		lines:    lines,
		filetype: "go",
		path:     "/src/main.go",
	}
}

func (d *mockDocument) ID() int { return d.id }

func (d *mockDocument) Version() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

func (d *mockDocument) bumpVersion() {
	d.mu.Lock()
	d.version++
	d.mu.Unlock()
}

func (d *mockDocument) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

func (d *mockDocument) setDirty(v bool) {
	d.mu.Lock()
	d.dirty = v
	d.mu.Unlock()
}

func (d *mockDocument) LineCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.lines)
}

func (d *mockDocument) Line(n int) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n < 0 || n >= len(d.lines) {
		return "", false
	}
	return d.lines[n], true
}

func (d *mockDocument) Filetype() string { return d.filetype }
func (d *mockDocument) Path() string     { return d.path }

// mockRegistry serves canned token streams and counts requests.
type mockRegistry struct {
	mu sync.Mutex

	hasFull  bool
	hasRange bool
	hasEdits bool
	legend   *semtok.Legend

	full         semtok.RawTokens
	fullResultID string
	fullErr      error
	// onFull runs inside RequestFull before returning, e.g. to bump the
	// document version mid-request.
	onFull func()

	edits    *engine.EditsResult
	editsErr error

	rangeTokens func(r position.LineRange) semtok.RawTokens

	fullCalls  int
	editsCalls []string
	rangeCalls []position.LineRange
}

func (m *mockRegistry) HasFullProvider(engine.Document) bool  { return m.hasFull }
func (m *mockRegistry) HasRangeProvider(engine.Document) bool { return m.hasRange }
func (m *mockRegistry) HasEditsProvider(engine.Document) bool { return m.hasEdits }

func (m *mockRegistry) Legend(engine.Document, bool) *semtok.Legend { return m.legend }

func (m *mockRegistry) RequestFull(ctx context.Context, doc engine.Document) (*engine.FullResult, error) {
	m.mu.Lock()
	m.fullCalls++
	onFull := m.onFull
	err := m.fullErr
	full := m.full.Clone()
	resultID := m.fullResultID
	m.mu.Unlock()
	if onFull != nil {
		onFull()
	}
	if err != nil {
		return nil, err
	}
	if full == nil {
		return nil, nil
	}
	return &engine.FullResult{Tokens: full, ResultID: resultID}, nil
}

func (m *mockRegistry) setFullErr(err error) {
	m.mu.Lock()
	m.fullErr = err
	m.mu.Unlock()
}

func (m *mockRegistry) RequestEdits(ctx context.Context, doc engine.Document, prevResultID string) (*engine.EditsResult, error) {
	m.mu.Lock()
	m.editsCalls = append(m.editsCalls, prevResultID)
	m.mu.Unlock()
	if m.editsErr != nil {
		return nil, m.editsErr
	}
	return m.edits, nil
}

func (m *mockRegistry) RequestRange(ctx context.Context, doc engine.Document, r position.LineRange) (semtok.RawTokens, error) {
	m.mu.Lock()
	m.rangeCalls = append(m.rangeCalls, r)
	m.mu.Unlock()
	if m.rangeTokens == nil {
		return nil, nil
	}
	return m.rangeTokens(r), nil
}

func (m *mockRegistry) fullCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fullCalls
}

// mockRenderer records diffs and applies. Diff hands back the desired
// items as the opaque diff set, or nil when there is nothing to paint.
type mockRenderer struct {
	mu sync.Mutex

	applied   [][]engine.Item
	partials  []bool
	restricts []*position.LineRange
	clears    int
}

func (m *mockRenderer) Diff(ctx context.Context, bufID int, ns string, items []engine.Item, restrict *position.LineRange) (engine.DiffSet, error) {
	m.mu.Lock()
	var cp *position.LineRange
	if restrict != nil {
		r := *restrict
		cp = &r
	}
	m.restricts = append(m.restricts, cp)
	m.mu.Unlock()
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

func (m *mockRenderer) Apply(bufID int, ns string, priority int, diff engine.DiffSet, partial bool) error {
	items, _ := diff.([]engine.Item)
	m.mu.Lock()
	m.applied = append(m.applied, items)
	m.partials = append(m.partials, partial)
	m.mu.Unlock()
	return nil
}

func (m *mockRenderer) ClearNamespace(bufID int, ns string) error {
	m.mu.Lock()
	m.clears++
	m.mu.Unlock()
	return nil
}

func (m *mockRenderer) applyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.applied)
}

func (m *mockRenderer) lastApplied() []engine.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.applied) == 0 {
		return nil
	}
	return m.applied[len(m.applied)-1]
}

func (m *mockRenderer) clearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// mockViewport reports a fixed set of visible ranges.
type mockViewport struct {
	mu     sync.Mutex
	ranges []position.LineRange
	height int
}

func (m *mockViewport) VisibleRanges(bufID int) []position.LineRange {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]position.LineRange, len(m.ranges))
	copy(out, m.ranges)
	return out
}

func (m *mockViewport) Height(bufID int) int { return m.height }

func (m *mockViewport) setRanges(rs ...position.LineRange) {
	m.mu.Lock()
	m.ranges = rs
	m.mu.Unlock()
}

type mockMessenger struct {
	mu   sync.Mutex
	msgs []string
}

func (m *mockMessenger) Warn(msg string) {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()
}

func (m *mockMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}
