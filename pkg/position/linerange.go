package position

import (
	"fmt"
	"sort"
)

// LineRange is a half-open [Start, End) interval of document lines.
type LineRange struct {
	Start int
	End   int
}

func NewLineRange(start, end int) LineRange {
	if end < start {
		start, end = end, start
	}
	return LineRange{Start: start, End: end}
}

func (r LineRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// IsEmpty reports whether the range covers no lines.
func (r LineRange) IsEmpty() bool {
	return r.End <= r.Start
}

// Len returns the number of lines covered.
func (r LineRange) Len() int {
	if r.IsEmpty() {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether line falls inside the range.
func (r LineRange) Contains(line int) bool {
	return line >= r.Start && line < r.End
}

// ContainsRange reports whether other lies entirely inside r.
func (r LineRange) ContainsRange(other LineRange) bool {
	if other.IsEmpty() {
		return true
	}
	return other.Start >= r.Start && other.End <= r.End
}

// Overlaps reports whether the two ranges share at least one line.
func (r LineRange) Overlaps(other LineRange) bool {
	return r.Start < other.End && other.Start < r.End
}

// Touches reports whether the two ranges overlap or are directly adjacent,
// which makes them mergeable into a single interval.
func (r LineRange) Touches(other LineRange) bool {
	return r.Start <= other.End && other.Start <= r.End
}

// Clamp restricts the range to [0, lineCount).
func (r LineRange) Clamp(lineCount int) LineRange {
	if r.Start < 0 {
		r.Start = 0
	}
	if r.End > lineCount {
		r.End = lineCount
	}
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}

// Union returns the smallest range covering both r and other.
func (r LineRange) Union(other LineRange) LineRange {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}
	out := r
	if other.Start < out.Start {
		out.Start = other.Start
	}
	if other.End > out.End {
		out.End = other.End
	}
	return out
}

// Intersect returns the overlap of r and other, empty when disjoint.
func (r LineRange) Intersect(other LineRange) LineRange {
	out := LineRange{Start: r.Start, End: r.End}
	if other.Start > out.Start {
		out.Start = other.Start
	}
	if other.End < out.End {
		out.End = other.End
	}
	if out.End < out.Start {
		return LineRange{Start: out.Start, End: out.Start}
	}
	return out
}

// MergeLineRanges sorts the given ranges and coalesces overlapping or
// adjacent ones. Empty ranges are dropped. The input slice is not modified.
func MergeLineRanges(ranges []LineRange) []LineRange {
	work := make([]LineRange, 0, len(ranges))
	for _, r := range ranges {
		if !r.IsEmpty() {
			work = append(work, r)
		}
	}
	if len(work) <= 1 {
		return work
	}

	sort.Slice(work, func(i, j int) bool {
		if work[i].Start != work[j].Start {
			return work[i].Start < work[j].Start
		}
		return work[i].End < work[j].End
	})

	merged := work[:1]
	for _, r := range work[1:] {
		last := &merged[len(merged)-1]
		if last.Touches(r) {
			*last = last.Union(r)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
