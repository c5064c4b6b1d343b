package semtok

import (
	"github.com/walteh/semsync/pkg/position"
)

// groupSize is the number of integers encoding one token in a raw stream:
// deltaLine, deltaStartCol, length, typeIndex, modifierBitmask.
const groupSize = 5

// Legend maps provider-side numeric indices to token type and modifier
// names. Index order is fixed for the lifetime of a provider registration.
type Legend struct {
	TokenTypes     []string
	TokenModifiers []string
}

// TypeName returns the type name for idx, or "" when idx is outside the
// legend.
func (l *Legend) TypeName(idx int) string {
	if l == nil || idx < 0 || idx >= len(l.TokenTypes) {
		return ""
	}
	return l.TokenTypes[idx]
}

// ModifierNames expands a modifier bitmask into names, in legend order.
// Bits beyond the legend are ignored.
func (l *Legend) ModifierNames(mask uint32) []string {
	if l == nil || mask == 0 {
		return nil
	}
	var names []string
	for i, name := range l.TokenModifiers {
		if i >= 32 {
			break
		}
		if mask&(1<<uint(i)) != 0 {
			names = append(names, name)
		}
	}
	return names
}

// RawTokens is a flat relative-delta token stream as returned by a
// provider, in groups of five integers.
type RawTokens []uint32

// GroupCount returns the number of complete five-integer groups.
func (r RawTokens) GroupCount() int {
	return len(r) / groupSize
}

// Clone returns an independent copy of the stream.
func (r RawTokens) Clone() RawTokens {
	if r == nil {
		return nil
	}
	out := make(RawTokens, len(r))
	copy(out, r)
	return out
}

// TokenSpan is a single-line document range classified with a semantic
// type and modifier set. StartCol and EndCol are byte offsets into the
// line's text; Group and Combine are filled in by the highlight group
// resolver and are empty/false for spans no group matched.
type TokenSpan struct {
	Line      int
	StartCol  int
	EndCol    int
	Type      string
	Modifiers []string
	Group     string
	Combine   bool
}

// Range returns the span's document coordinates, with byte columns as
// the character offsets.
func (s TokenSpan) Range() position.Range {
	return position.Range{
		Start: position.Place{Line: s.Line, Character: s.StartCol},
		End:   position.Place{Line: s.Line, Character: s.EndCol},
	}
}

// HasModifier reports whether the span carries the named modifier.
func (s TokenSpan) HasModifier(name string) bool {
	for _, m := range s.Modifiers {
		if m == name {
			return true
		}
	}
	return false
}
