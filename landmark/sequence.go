package landmark

import "fmt"

// FrameResult is the outcome of frame selection for one video frame: the best
// landmark set among all preprocessing candidates, which strategy produced it,
// the detection confidence threshold that was in force, and the quality score
// it earned. A FrameResult is never mutated after scoring; a better result for
// the same frame supersedes it wholesale.
type FrameResult struct {
	FrameID    int
	Landmarks  Set
	Strategy   string
	Confidence float64
	Score      float64
}

// StrategyNone marks the sentinel FrameResult produced when every candidate
// failed to detect anybody in the frame. StrategyInterpolated marks frames
// whose landmarks were synthesized by the temporal merger rather than
// detected.
const (
	StrategyNone         = "none"
	StrategyInterpolated = "interpolated"
)

// Empty reports whether this result carries no landmarks at all (either a
// sentinel for a failed frame, or a zero value).
func (fr FrameResult) Empty() bool {
	return len(fr.Landmarks) == 0
}

// Sentinel returns the FrameResult recorded for a frame in which no strategy
// produced a detection: no landmarks, score 0. Downstream stages treat these
// frames as interpolation targets rather than as errors.
func Sentinel(frameID int) FrameResult {
	return FrameResult{FrameID: frameID, Strategy: StrategyNone}
}

// Sequence is an ordered series of frame results with strictly increasing
// frame IDs and at most one result per frame. Frame IDs need not be
// contiguous: a missing frame is a detection or decode gap awaiting
// interpolation.
type Sequence []FrameResult

// Validate enforces the Sequence ordering invariant.
func (seq Sequence) Validate() error {
	for i := 1; i < len(seq); i++ {
		if seq[i].FrameID <= seq[i-1].FrameID {
			return fmt.Errorf("sequence out of order at position %d: frame %d follows frame %d", i, seq[i].FrameID, seq[i-1].FrameID)
		}
	}
	return nil
}

// ByFrame returns the position of the result for the given frame ID, or -1.
func (seq Sequence) ByFrame(frameID int) int {
	lo, hi := 0, len(seq)
	for lo < hi {
		mid := (lo + hi) / 2
		if seq[mid].FrameID < frameID {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(seq) && seq[lo].FrameID == frameID {
		return lo
	}
	return -1
}
