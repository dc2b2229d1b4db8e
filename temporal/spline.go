package temporal

import (
	"gonum.org/v1/gonum/interp"

	"github.com/danceqc/posemisc/landmark"
)

// splineTracks holds per-landmark Akima spline fits over the observed anchor
// frames, used to rebuild long gaps with the shape of the whole track instead
// of a straight run between two anchors.
type splineTracks struct {
	x map[int]*interp.AkimaSpline
	y map[int]*interp.AkimaSpline
	z map[int]*interp.AkimaSpline

	// first and last observed frame per landmark; predictions outside the
	// observed span would extrapolate and are refused.
	lo map[int]float64
	hi map[int]float64
}

// buildSplineTracks fits one spline per coordinate per landmark from the
// anchor frames. Landmarks with fewer than minPoints non-derived observations,
// or whose fit fails, are simply absent and fall back to pairwise easing.
func buildSplineTracks(seq landmark.Sequence, anchors []int, minPoints int) *splineTracks {
	frames := make(map[int][]float64)
	xs := make(map[int][]float64)
	ys := make(map[int][]float64)
	zs := make(map[int][]float64)

	for _, a := range anchors {
		fr := seq[a]
		for _, lm := range fr.Landmarks {
			if lm.Derived {
				continue
			}
			frames[lm.ID] = append(frames[lm.ID], float64(fr.FrameID))
			xs[lm.ID] = append(xs[lm.ID], lm.X)
			ys[lm.ID] = append(ys[lm.ID], lm.Y)
			zs[lm.ID] = append(zs[lm.ID], lm.Z)
		}
	}

	st := &splineTracks{
		x:  make(map[int]*interp.AkimaSpline),
		y:  make(map[int]*interp.AkimaSpline),
		z:  make(map[int]*interp.AkimaSpline),
		lo: make(map[int]float64),
		hi: make(map[int]float64),
	}

	for id, fs := range frames {
		if len(fs) < minPoints {
			continue
		}

		var sx, sy, sz interp.AkimaSpline
		if err := sx.Fit(fs, xs[id]); err != nil {
			continue
		}
		if err := sy.Fit(fs, ys[id]); err != nil {
			continue
		}
		if err := sz.Fit(fs, zs[id]); err != nil {
			continue
		}

		st.x[id] = &sx
		st.y[id] = &sy
		st.z[id] = &sz
		st.lo[id] = fs[0]
		st.hi[id] = fs[len(fs)-1]
	}

	return st
}

// predict returns the spline position for a landmark at a frame inside its
// observed span.
func (st *splineTracks) predict(id int, frame float64) (x, y, z float64, ok bool) {
	sx, exists := st.x[id]
	if !exists || frame < st.lo[id] || frame > st.hi[id] {
		return 0, 0, 0, false
	}

	return sx.Predict(frame), st.y[id].Predict(frame), st.z[id].Predict(frame), true
}
