package region

import (
	"github.com/walteh/semsync/pkg/position"
)

// Empirical scroll pre-warm margins: how far around the visible range, in
// multiples of the viewport height, an incremental pass paints ahead so
// ordinary scrolling lands on already-highlighted lines. Tuning values,
// not derived.
const (
	DefaultExpandAbove = 1.5
	DefaultExpandBelow = 2.0
)

// ExpandViewport widens a visible line range into its repaint window:
// above viewport-heights before the range start down to below
// viewport-heights after it, never less than the visible range itself,
// clamped to [0, lineCount). A viewport of height 20 showing [10,20)
// expands to [0,50). Non-positive multiples fall back to the defaults.
func ExpandViewport(r position.LineRange, winHeight, lineCount int, above, below float64) position.LineRange {
	if r.IsEmpty() {
		return r.Clamp(lineCount)
	}
	if above <= 0 {
		above = DefaultExpandAbove
	}
	if below <= 0 {
		below = DefaultExpandBelow
	}
	if winHeight < r.Len() {
		winHeight = r.Len()
	}

	out := position.LineRange{
		Start: r.Start - int(above*float64(winHeight)),
		End:   r.Start + int(below*float64(winHeight)),
	}
	if out.End < r.End {
		out.End = r.End
	}
	return out.Clamp(lineCount)
}

// ExpandViewports expands every visible range and merges the results, so
// overlapping pre-warm windows collapse into a single repaint span.
func ExpandViewports(visible []position.LineRange, winHeight, lineCount int, above, below float64) []position.LineRange {
	expanded := make([]position.LineRange, 0, len(visible))
	for _, r := range visible {
		e := ExpandViewport(r, winHeight, lineCount, above, below)
		if !e.IsEmpty() {
			expanded = append(expanded, e)
		}
	}
	return position.MergeLineRanges(expanded)
}
