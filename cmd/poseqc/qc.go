package main

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/theodesp/unionfind"
	"gonum.org/v1/gonum/stat"

	"github.com/danceqc/posemisc/landmark"
)

type summary struct {
	Frames          int
	EmptyFrames     int
	Observed        int
	DerivedFraction float64

	// Visibilities collects every observed (non-derived) landmark's
	// visibility, in frame order.
	Visibilities []float64
}

func summarize(seq landmark.Sequence) summary {
	var out summary
	derived := 0

	out.Frames = len(seq)
	for _, fr := range seq {
		if fr.Empty() {
			out.EmptyFrames++
			continue
		}
		for _, lm := range fr.Landmarks {
			if lm.Derived {
				derived++
				continue
			}
			out.Observed++
			out.Visibilities = append(out.Visibilities, lm.Visibility)
		}
	}

	if total := out.Observed + derived; total > 0 {
		out.DerivedFraction = float64(derived) / float64(total)
	}

	return out
}

func percentiles(values []float64) ([5]float64, error) {
	var out [5]float64

	data := stats.LoadRawData(values)
	for i, p := range []float64{5, 25, 50, 75, 95} {
		v, err := data.Percentile(p)
		if err != nil {
			return out, err
		}
		out[i] = v
	}

	return out, nil
}

type shift struct {
	FrameID int
	Delta   float64
}

// flagOnestepShifts flags frames whose mean visibility moved further from the
// previous frame than nSD standard deviations of all one-step moves. Sudden
// collective visibility jumps usually mean the detector latched onto someone
// else or lost the subject.
func flagOnestepShifts(seq landmark.Sequence, nSD float64) []shift {
	type step struct {
		frameID int
		delta   float64
	}

	steps := make([]step, 0, len(seq))
	deltas := make([]float64, 0, len(seq))
	prev := math.NaN()

	for _, fr := range seq {
		if fr.Empty() {
			continue
		}
		v := fr.Landmarks.MeanVisibility()
		if !math.IsNaN(prev) {
			steps = append(steps, step{frameID: fr.FrameID, delta: v - prev})
			deltas = append(deltas, v-prev)
		}
		prev = v
	}

	if len(deltas) < 2 {
		return nil
	}

	m, s := stat.MeanStdDev(deltas, nil)
	if s == 0 {
		return nil
	}

	var out []shift
	for _, st := range steps {
		if st.delta < m-nSD*s || st.delta > m+nSD*s {
			out = append(out, shift{FrameID: st.frameID, Delta: st.delta})
		}
	}

	return out
}

// lowVisibilityRegions groups landmarks whose mean observed visibility stays
// under the threshold into connected regions along the skeleton, so a whole
// occluded arm reads as one finding rather than four. Landmarks never observed
// at all count as fully invisible.
func lowVisibilityRegions(seq landmark.Sequence, threshold float64) [][]int {
	sum := make([]float64, landmark.Count)
	n := make([]int, landmark.Count)

	for _, fr := range seq {
		for _, lm := range fr.Landmarks {
			if lm.Derived || lm.ID >= landmark.Count {
				continue
			}
			sum[lm.ID] += lm.Visibility
			n[lm.ID]++
		}
	}

	low := make(map[int]bool, landmark.Count)
	for id := 0; id < landmark.Count; id++ {
		mean := 0.0
		if n[id] > 0 {
			mean = sum[id] / float64(n[id])
		}
		if mean < threshold {
			low[id] = true
		}
	}

	if len(low) == 0 {
		return nil
	}

	uf := unionfind.NewThreadSafeUnionFind(landmark.Count)
	for _, bone := range landmark.Connections {
		if low[bone[0]] && low[bone[1]] {
			uf.Union(bone[0], bone[1])
		}
	}

	groups := make(map[int][]int)
	for id := range low {
		root := uf.Root(id)
		if root < 0 {
			root = id
		}
		groups[root] = append(groups[root], id)
	}

	out := make([][]int, 0, len(groups))
	for _, ids := range groups {
		sort.Ints(ids)
		out = append(out, ids)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })

	return out
}

// emptyRanges collapses frames that carry no landmarks into inclusive
// [first,last] frame ID ranges.
func emptyRanges(seq landmark.Sequence) [][2]int {
	var ids []int
	for _, fr := range seq {
		if fr.Empty() {
			ids = append(ids, fr.FrameID)
		}
	}
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

type diff struct {
	SharedFrames     int
	MovedLandmarks   int
	MeanDisplacement float64
}

// compareSequences measures how far landmarks moved between two CSVs of the
// same clip, typically pre- and post-merge.
func compareSequences(a, b landmark.Sequence) diff {
	var out diff
	var total float64

	for _, fa := range a {
		i := b.ByFrame(fa.FrameID)
		if i < 0 {
			continue
		}
		fb := b[i]
		out.SharedFrames++

		for _, la := range fa.Landmarks {
			lb, ok := fb.Landmarks.ByID(la.ID)
			if !ok {
				continue
			}
			d := math.Hypot(la.X-lb.X, la.Y-lb.Y)
			if d > 1e-12 {
				out.MovedLandmarks++
				total += d
			}
		}
	}

	if out.MovedLandmarks > 0 {
		out.MeanDisplacement = total / float64(out.MovedLandmarks)
	}

	return out
}
