// Package region tracks which document line ranges have already been
// reconciled with the renderer, and computes the expanded viewport ranges
// incremental highlight passes repaint.
package region

import (
	"sort"

	"github.com/walteh/semsync/pkg/position"
)

// PaintedSet is an ordered set of non-overlapping [start,end) line
// intervals that have been forwarded to the renderer for the currently
// cached decoded result. It must be cleared whenever the decoded spans
// change; a stale painted record would suppress a repaint that is
// actually needed.
//
// PaintedSet is not safe for concurrent use; the engine serializes all
// access under its pass lock.
type PaintedSet struct {
	ranges []position.LineRange
}

// Mark records r as painted, coalescing with overlapping or adjacent
// intervals so the set stays non-overlapping and ordered.
func (p *PaintedSet) Mark(r position.LineRange) {
	if r.IsEmpty() {
		return
	}

	merged := r
	keep := p.ranges[:0]
	for _, existing := range p.ranges {
		if existing.Touches(merged) {
			merged = merged.Union(existing)
			continue
		}
		keep = append(keep, existing)
	}
	p.ranges = append(keep, merged)

	sort.Slice(p.ranges, func(i, j int) bool {
		return p.ranges[i].Start < p.ranges[j].Start
	})
}

// Covered reports whether r lies entirely inside a single painted
// interval. Intervals are coalesced on insertion, so a range split across
// two painted intervals cannot occur unless something between them is
// unpainted.
func (p *PaintedSet) Covered(r position.LineRange) bool {
	if r.IsEmpty() {
		return true
	}
	for _, existing := range p.ranges {
		if existing.ContainsRange(r) {
			return true
		}
	}
	return false
}

// ContainsLine reports whether the given line is inside a painted
// interval.
func (p *PaintedSet) ContainsLine(line int) bool {
	for _, existing := range p.ranges {
		if existing.Contains(line) {
			return true
		}
	}
	return false
}

// Clear drops every painted interval.
func (p *PaintedSet) Clear() {
	p.ranges = p.ranges[:0]
}

// Len returns the number of disjoint painted intervals.
func (p *PaintedSet) Len() int {
	return len(p.ranges)
}

// Ranges returns a copy of the painted intervals in ascending order.
func (p *PaintedSet) Ranges() []position.LineRange {
	out := make([]position.LineRange, len(p.ranges))
	copy(out, p.ranges)
	return out
}
