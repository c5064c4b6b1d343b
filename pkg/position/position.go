package position

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// Place is a zero-based line/character coordinate in a document.
type Place struct {
	Line      int
	Character int
}

// Range is a half-open [Start, End) region of a document.
type Range struct {
	Start Place
	End   Place
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
}

// Unit is the character-offset unit a token provider counts columns in.
// Storage columns are always byte offsets into the line's UTF-8 text, so
// provider offsets have to be converted against the current line text.
type Unit int

const (
	UnitUTF8 Unit = iota
	UnitUTF16
	UnitUTF32
)

func (u Unit) String() string {
	switch u {
	case UnitUTF8:
		return "utf-8"
	case UnitUTF16:
		return "utf-16"
	case UnitUTF32:
		return "utf-32"
	default:
		return "unknown"
	}
}

// CharToByte converts a character offset in the given unit to a byte offset
// into lineText. Offsets past the end of the line clamp to len(lineText).
func CharToByte(lineText string, char int, unit Unit) int {
	if char <= 0 {
		return 0
	}
	if unit == UnitUTF8 {
		if char > len(lineText) {
			return len(lineText)
		}
		return char
	}

	count := 0
	for i, r := range lineText {
		if count >= char {
			return i
		}
		count += unitLen(r, unit)
	}
	return len(lineText)
}

// ByteToChar converts a byte offset into lineText to a character offset in
// the given unit. Offsets past the end of the line clamp to the line's
// length in that unit.
func ByteToChar(lineText string, byteCol int, unit Unit) int {
	if byteCol <= 0 {
		return 0
	}
	if unit == UnitUTF8 {
		if byteCol > len(lineText) {
			return len(lineText)
		}
		return byteCol
	}

	count := 0
	for i, r := range lineText {
		if i >= byteCol {
			return count
		}
		count += unitLen(r, unit)
	}
	return count
}

func unitLen(r rune, unit Unit) int {
	switch unit {
	case UnitUTF16:
		return utf16.RuneLen(r)
	case UnitUTF32:
		return 1
	default:
		return utf8.RuneLen(r)
	}
}
