package semtok

import (
	"context"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/semsync/pkg/position"
)

const (
	// DefaultBatchBudget bounds how long the decoder runs before yielding
	// back to the caller's scheduler and re-checking cancellation.
	DefaultBatchBudget = 15 * time.Millisecond

	// defaultBatchGroups is how many groups are decoded between clock
	// reads; reading the clock per group would dominate small decodes.
	defaultBatchGroups = 500
)

// LineTextFunc returns the current text of a document line, or false when
// the line does not exist. Conversions run against whatever text the
// document holds at decode time, so a decode is only valid for the
// document version it was started against.
type LineTextFunc func(line int) (string, bool)

// Decoder turns flat relative-delta token streams into absolute spans.
type Decoder struct {
	Legend *Legend

	// Unit is the character-offset unit the provider counts columns in.
	Unit position.Unit

	// BatchBudget overrides DefaultBatchBudget when positive.
	BatchBudget time.Duration

	// BatchGroups overrides the per-batch group count when positive.
	BatchGroups int
}

// Decode walks the stream keeping a running (line, col) cursor and emits
// one span per group whose type index is covered by the legend. Column
// offsets are converted from the provider's unit to byte offsets against
// the line text supplied by lineText.
//
// Decode checks ctx at every batch boundary and returns ctx's error with
// no spans when cancelled; a partial decode is never returned.
func (d *Decoder) Decode(ctx context.Context, raw RawTokens, lineText LineTextFunc) ([]TokenSpan, error) {
	if len(raw)%groupSize != 0 {
		return nil, errors.Errorf("raw token stream length %d is not a multiple of %d", len(raw), groupSize)
	}
	if d.Legend == nil {
		return nil, errors.New("decoding without a legend")
	}

	budget := d.BatchBudget
	if budget <= 0 {
		budget = DefaultBatchBudget
	}
	batch := d.BatchGroups
	if batch <= 0 {
		batch = defaultBatchGroups
	}

	groups := raw.GroupCount()
	spans := make([]TokenSpan, 0, groups)

	line := 0
	charCol := 0
	batchStart := time.Now()

	for g := 0; g < groups; g++ {
		if g%batch == 0 && g > 0 && time.Since(batchStart) >= budget {
			if err := ctx.Err(); err != nil {
				return nil, errors.Errorf("decode cancelled at group %d of %d: %w", g, groups, err)
			}
			batchStart = time.Now()
		}

		i := g * groupSize
		deltaLine := int(raw[i])
		deltaStart := int(raw[i+1])
		length := int(raw[i+2])
		typeIdx := int(raw[i+3])
		mask := raw[i+4]

		line += deltaLine
		if deltaLine == 0 {
			charCol += deltaStart
		} else {
			charCol = deltaStart
		}

		typeName := d.Legend.TypeName(typeIdx)
		if typeName == "" {
			continue
		}

		text, ok := lineText(line)
		if !ok {
			continue
		}

		startByte := position.CharToByte(text, charCol, d.Unit)
		endByte := position.CharToByte(text, charCol+length, d.Unit)
		if endByte <= startByte {
			continue
		}

		spans = append(spans, TokenSpan{
			Line:      line,
			StartCol:  startByte,
			EndCol:    endByte,
			Type:      typeName,
			Modifiers: d.Legend.ModifierNames(mask),
		})
	}

	// A cancellation that lands after the last batch still wins: the
	// result must not be published against a superseded request.
	if err := ctx.Err(); err != nil {
		return nil, errors.Errorf("decode cancelled after %d groups: %w", groups, err)
	}

	return spans, nil
}
