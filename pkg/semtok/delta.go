package semtok

import (
	"gitlab.com/tozd/go/errors"
)

// Edit is a single splice instruction from an incremental token response.
// Start and DeleteCount are expressed in integers (not groups) against the
// previously returned raw stream.
type Edit struct {
	Start       int
	DeleteCount int
	Data        []uint32
}

// Delta is an incremental provider response: splice edits against a
// previous raw stream identified by the result id the provider handed out
// with it.
type Delta struct {
	ResultID string
	Edits    []Edit
}

// ApplyEdits splices the delta's edits into prev and returns the resulting
// stream. prev is not modified. Edits are applied highest-offset first so
// earlier edits see unshifted offsets, matching the LSP delta contract.
// An edit that reaches outside prev invalidates the whole delta; the caller
// must fall back to a full request.
func ApplyEdits(prev RawTokens, edits []Edit) (RawTokens, error) {
	for _, e := range edits {
		if e.Start < 0 || e.DeleteCount < 0 {
			return nil, errors.Errorf("token edit with negative offset: start=%d deleteCount=%d", e.Start, e.DeleteCount)
		}
		if e.Start+e.DeleteCount > len(prev) {
			return nil, errors.Errorf("token edit out of bounds: start=%d deleteCount=%d len=%d", e.Start, e.DeleteCount, len(prev))
		}
	}

	ordered := make([]Edit, len(edits))
	copy(ordered, edits)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Start > ordered[j-1].Start; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	out := prev.Clone()
	for _, e := range ordered {
		tail := make([]uint32, len(out)-(e.Start+e.DeleteCount))
		copy(tail, out[e.Start+e.DeleteCount:])
		out = append(out[:e.Start], e.Data...)
		out = append(out, tail...)
	}
	return out, nil
}
