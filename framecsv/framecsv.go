// Package framecsv persists landmark sequences as flat CSV, one row per
// landmark per frame. The layout is deliberately boring so that notebooks and
// shell pipelines can consume runs without any of this tooling: the first
// eight columns are always present, and the provenance columns are optional
// so hand-trimmed files remain loadable.
package framecsv

import (
	"fmt"

	"gopkg.in/guregu/null.v3"

	"github.com/danceqc/posemisc/landmark"
)

// Row is one persisted landmark observation. Frame-level fields (strategy,
// confidence_used, score) repeat on every row of their frame; readers require
// them to agree within a frame and reject files where they do not, since
// disagreement has always meant interleaved output from two runs.
type Row struct {
	FrameID    int     `csv:"frame_id"`
	LandmarkID int     `csv:"landmark_id"`
	X          float64 `csv:"x"`
	Y          float64 `csv:"y"`
	Z          float64 `csv:"z"`
	Visibility float64 `csv:"visibility"`
	Strategy   string  `csv:"strategy"`
	Derived    bool    `csv:"derived"`

	// Optional provenance columns. Minimal exports omit them entirely and
	// readers tolerate their absence.
	ConfidenceUsed null.Float `csv:"confidence_used"`
	Score          null.Float `csv:"score"`
	RenderOpacity  null.Float `csv:"render_opacity"`
}

// Rows flattens a frame result, one row per landmark. An empty result
// produces no rows: a gap in the persisted frame IDs is the durable form of a
// detection gap, and nothing is ever zero-filled to paper over one.
func Rows(fr landmark.FrameResult) []*Row {
	if fr.Empty() {
		return nil
	}

	out := make([]*Row, 0, len(fr.Landmarks))
	for _, lm := range fr.Landmarks {
		r := &Row{
			FrameID:        fr.FrameID,
			LandmarkID:     lm.ID,
			X:              lm.X,
			Y:              lm.Y,
			Z:              lm.Z,
			Visibility:     lm.Visibility,
			Strategy:       fr.Strategy,
			Derived:        lm.Derived,
			ConfidenceUsed: null.FloatFrom(fr.Confidence),
			Score:          null.FloatFrom(fr.Score),
		}
		if lm.RenderOpacity > 0 {
			r.RenderOpacity = null.FloatFrom(lm.RenderOpacity)
		}
		out = append(out, r)
	}

	return out
}

// frameFromRows reassembles one frame from its rows. The landmark set
// invariants (no duplicates, IDs inside the topology) are enforced by NewSet.
func frameFromRows(frameID int, rows []*Row) (landmark.FrameResult, error) {
	strategy := rows[0].Strategy

	lms := make([]landmark.Landmark, 0, len(rows))
	for _, r := range rows {
		if r.Strategy != strategy {
			return landmark.FrameResult{}, fmt.Errorf("frame %d: conflicting strategies %q and %q", frameID, strategy, r.Strategy)
		}

		lm := landmark.Landmark{
			ID:         r.LandmarkID,
			X:          r.X,
			Y:          r.Y,
			Z:          r.Z,
			Visibility: r.Visibility,
			Derived:    r.Derived,
		}
		if r.RenderOpacity.Valid {
			lm.RenderOpacity = r.RenderOpacity.Float64
		}
		lms = append(lms, lm)
	}

	set, err := landmark.NewSet(lms)
	if err != nil {
		return landmark.FrameResult{}, fmt.Errorf("frame %d: %v", frameID, err)
	}

	out := landmark.FrameResult{
		FrameID:   frameID,
		Landmarks: set,
		Strategy:  strategy,
	}
	if rows[0].ConfidenceUsed.Valid {
		out.Confidence = rows[0].ConfidenceUsed.Float64
	}
	if rows[0].Score.Valid {
		out.Score = rows[0].Score.Float64
	}

	return out, nil
}
