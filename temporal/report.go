package temporal

import (
	"fmt"
	"strings"
)

// Report summarizes what the merger did and, critically, what it could not
// do: UnresolvedRanges lists the exact frame ID ranges that still carry no
// landmarks because no valid anchors existed within the search window. Callers
// must surface these rather than letting empty frames pass silently. Frames
// with honest low-visibility data that simply could not be improved are not
// "unresolved" — they still carry observations.
type Report struct {
	HighFrames   int
	MediumFrames int
	LowFrames    int

	// BlendedFrames counts medium frames in which at least one landmark was
	// blended; InterpolatedFrames counts low frames in which at least one
	// landmark was replaced; SynthesizedFrames counts frames created from
	// nothing (decode gaps and empty sentinels that gained landmarks).
	BlendedFrames      int
	InterpolatedFrames int
	SynthesizedFrames  int

	// UnresolvedRanges holds inclusive [first,last] frame ID ranges left with
	// no landmarks.
	UnresolvedRanges [][2]int

	// DerivedRuns maps landmark ID to a run-length-encoded 0/1 series (one
	// entry per output frame, in frame order) marking where that landmark is
	// derived. Kept RLE-encoded because derived spans are long and contiguous.
	DerivedRuns map[int][]byte
}

// String renders the one-line summary logged at the end of a merge.
func (r Report) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%d high / %d medium (%d blended) / %d low (%d interpolated), %d synthesized",
		r.HighFrames, r.MediumFrames, r.BlendedFrames, r.LowFrames, r.InterpolatedFrames, r.SynthesizedFrames)

	if len(r.UnresolvedRanges) == 0 {
		sb.WriteString(", no unresolved gaps")
		return sb.String()
	}

	sb.WriteString(", UNRESOLVED: ")
	for i, rng := range r.UnresolvedRanges {
		if i > 0 {
			sb.WriteString(", ")
		}
		if rng[0] == rng[1] {
			fmt.Fprintf(&sb, "frame %d", rng[0])
		} else {
			fmt.Fprintf(&sb, "frames %d-%d", rng[0], rng[1])
		}
	}

	return sb.String()
}

// rangesFromSortedIDs collapses a sorted list of frame IDs into inclusive
// contiguous ranges.
func rangesFromSortedIDs(ids []int) [][2]int {
	if len(ids) == 0 {
		return nil
	}

	out := make([][2]int, 0)
	start, prev := ids[0], ids[0]

	for _, id := range ids[1:] {
		if id == prev+1 {
			prev = id
			continue
		}
		out = append(out, [2]int{start, prev})
		start, prev = id, id
	}

	return append(out, [2]int{start, prev})
}
