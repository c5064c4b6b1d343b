package semtok_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/semsync/pkg/diff"
	"github.com/walteh/semsync/pkg/position"
	"github.com/walteh/semsync/pkg/semtok"
)

func plainLines(lines ...string) semtok.LineTextFunc {
	return func(n int) (string, bool) {
		if n < 0 || n >= len(lines) {
			return "", false
		}
		return lines[n], true
	}
}

// wideLines pretends every line is long enough for any column, which keeps
// decode tables focused on cursor arithmetic rather than line content.
func wideLines(n int) semtok.LineTextFunc {
	text := strings.Repeat(" ", 512)
	return func(line int) (string, bool) {
		if line < 0 || line >= n {
			return "", false
		}
		return text, true
	}
}

func TestDecode(t *testing.T) {
	legend := &semtok.Legend{
		TokenTypes:     []string{"keyword", "variable"},
		TokenModifiers: []string{"declaration", "readonly"},
	}

	tests := []struct {
		name  string
		raw   semtok.RawTokens
		lines semtok.LineTextFunc
		want  []semtok.TokenSpan
	}{
		{
			name:  "empty_stream",
			raw:   nil,
			lines: wideLines(1),
			want:  []semtok.TokenSpan{},
		},
		{
			name:  "two_tokens_across_lines",
			raw:   semtok.RawTokens{0, 0, 5, 0, 0, 2, 2, 3, 1, 0},
			lines: wideLines(3),
			want: []semtok.TokenSpan{
				{Line: 0, StartCol: 0, EndCol: 5, Type: "keyword"},
				{Line: 2, StartCol: 2, EndCol: 5, Type: "variable"},
			},
		},
		{
			name:  "same_line_delta_accumulates",
			raw:   semtok.RawTokens{1, 4, 2, 1, 0, 0, 3, 2, 1, 0},
			lines: wideLines(2),
			want: []semtok.TokenSpan{
				{Line: 1, StartCol: 4, EndCol: 6, Type: "variable"},
				{Line: 1, StartCol: 7, EndCol: 9, Type: "variable"},
			},
		},
		{
			name:  "modifier_bitmask_expands_in_legend_order",
			raw:   semtok.RawTokens{0, 0, 4, 1, 0b11},
			lines: wideLines(1),
			want: []semtok.TokenSpan{
				{Line: 0, StartCol: 0, EndCol: 4, Type: "variable", Modifiers: []string{"declaration", "readonly"}},
			},
		},
		{
			name:  "type_index_outside_legend_skipped",
			raw:   semtok.RawTokens{0, 0, 4, 9, 0, 1, 0, 2, 0, 0},
			lines: wideLines(2),
			want: []semtok.TokenSpan{
				{Line: 1, StartCol: 0, EndCol: 2, Type: "keyword"},
			},
		},
		{
			name:  "line_beyond_document_skipped",
			raw:   semtok.RawTokens{5, 0, 2, 0, 0},
			lines: wideLines(3),
			want:  []semtok.TokenSpan{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := &semtok.Decoder{Legend: legend}
			got, err := dec.Decode(context.Background(), tt.raw, tt.lines)
			require.NoError(t, err)
			assert.Empty(t, diff.Exported(tt.want, got))
		})
	}
}

func TestDecodeMonotonicLines(t *testing.T) {
	legend := &semtok.Legend{TokenTypes: []string{"variable"}}

	raw := make(semtok.RawTokens, 0, 100*5)
	for i := 0; i < 100; i++ {
		raw = append(raw, uint32(i%3), 1, 1, 0, 0)
	}

	dec := &semtok.Decoder{Legend: legend}
	spans, err := dec.Decode(context.Background(), raw, wideLines(200))
	require.NoError(t, err)
	require.Len(t, spans, 100)

	prev := -1
	for _, s := range spans {
		require.GreaterOrEqual(t, s.Line, prev)
		prev = s.Line
	}
}

func TestDecodeUnitConversion(t *testing.T) {
	legend := &semtok.Legend{TokenTypes: []string{"string"}}
	dec := &semtok.Decoder{Legend: legend, Unit: position.UnitUTF16}

	// 𝕏 is two UTF-16 units and four UTF-8 bytes.
	spans, err := dec.Decode(context.Background(),
		semtok.RawTokens{0, 3, 2, 0, 0},
		plainLines(`a𝕏"hi"`))
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, 5, spans[0].StartCol)
	assert.Equal(t, 7, spans[0].EndCol)
}

func TestSpanModifiersAndRange(t *testing.T) {
	s := semtok.TokenSpan{Line: 2, StartCol: 4, EndCol: 9, Type: "variable", Modifiers: []string{"declaration", "readonly"}}
	assert.True(t, s.HasModifier("readonly"))
	assert.False(t, s.HasModifier("static"))
	assert.Equal(t, "2:4-2:9", s.Range().String())
}

func TestDecodeMalformedStream(t *testing.T) {
	dec := &semtok.Decoder{Legend: &semtok.Legend{TokenTypes: []string{"keyword"}}}
	_, err := dec.Decode(context.Background(), semtok.RawTokens{0, 0, 5}, wideLines(1))
	require.Error(t, err)
}

func TestDecodeCancellation(t *testing.T) {
	legend := &semtok.Legend{TokenTypes: []string{"variable"}}

	raw := make(semtok.RawTokens, 0, 10000*5)
	for i := 0; i < 10000; i++ {
		raw = append(raw, 0, 1, 1, 0, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())

	yielded := 0
	dec := &semtok.Decoder{
		Legend:      legend,
		BatchBudget: time.Nanosecond,
		BatchGroups: 100,
	}
	lines := func(n int) (string, bool) {
		// Cancel from inside the decode loop so the request is withdrawn
		// after work has already started.
		yielded++
		if yielded == 500 {
			cancel()
		}
		return strings.Repeat(" ", 20000), true
	}

	spans, err := dec.Decode(ctx, raw, lines)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, spans)
}

func TestApplyEdits(t *testing.T) {
	prev := semtok.RawTokens{0, 0, 5, 0, 0, 1, 0, 3, 1, 0, 1, 2, 4, 0, 0}

	tests := []struct {
		name    string
		edits   []semtok.Edit
		want    semtok.RawTokens
		wantErr bool
	}{
		{
			name:  "no_edits",
			edits: nil,
			want:  prev.Clone(),
		},
		{
			name: "replace_middle_group",
			edits: []semtok.Edit{
				{Start: 5, DeleteCount: 5, Data: []uint32{2, 1, 7, 1, 1}},
			},
			want: semtok.RawTokens{0, 0, 5, 0, 0, 2, 1, 7, 1, 1, 1, 2, 4, 0, 0},
		},
		{
			name: "insert_without_delete",
			edits: []semtok.Edit{
				{Start: 5, DeleteCount: 0, Data: []uint32{0, 9, 1, 0, 0}},
			},
			want: semtok.RawTokens{0, 0, 5, 0, 0, 0, 9, 1, 0, 0, 1, 0, 3, 1, 0, 1, 2, 4, 0, 0},
		},
		{
			name: "delete_tail",
			edits: []semtok.Edit{
				{Start: 10, DeleteCount: 5},
			},
			want: semtok.RawTokens{0, 0, 5, 0, 0, 1, 0, 3, 1, 0},
		},
		{
			name: "multiple_edits_apply_back_to_front",
			edits: []semtok.Edit{
				{Start: 0, DeleteCount: 5, Data: []uint32{0, 0, 1, 0, 0}},
				{Start: 10, DeleteCount: 5},
			},
			want: semtok.RawTokens{0, 0, 1, 0, 0, 1, 0, 3, 1, 0},
		},
		{
			name: "out_of_bounds_rejected",
			edits: []semtok.Edit{
				{Start: 12, DeleteCount: 10},
			},
			wantErr: true,
		},
		{
			name: "negative_offset_rejected",
			edits: []semtok.Edit{
				{Start: -1, DeleteCount: 0, Data: []uint32{1}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := semtok.ApplyEdits(prev, tt.edits)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Splicing a delta into a cached stream has to decode identically to the
// full stream the provider would have sent for the edited content.
func TestApplyEditsRoundTrip(t *testing.T) {
	legend := &semtok.Legend{TokenTypes: []string{"keyword", "variable"}}

	before := semtok.RawTokens{0, 0, 5, 0, 0, 2, 2, 3, 1, 0}
	full := semtok.RawTokens{0, 0, 5, 0, 0, 1, 1, 2, 1, 0, 1, 2, 3, 1, 0}

	spliced, err := semtok.ApplyEdits(before, []semtok.Edit{
		{Start: 5, DeleteCount: 5, Data: []uint32{1, 1, 2, 1, 0, 1, 2, 3, 1, 0}},
	})
	require.NoError(t, err)
	require.Equal(t, full, spliced)

	dec := &semtok.Decoder{Legend: legend}
	fromSplice, err := dec.Decode(context.Background(), spliced, wideLines(5))
	require.NoError(t, err)
	fromFull, err := dec.Decode(context.Background(), full, wideLines(5))
	require.NoError(t, err)
	assert.Equal(t, fromFull, fromSplice)
}
