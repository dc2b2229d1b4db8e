package temporal

import (
	"fmt"

	"github.com/jfcg/butter"

	"github.com/danceqc/posemisc/landmark"
)

// SmoothTracks runs a first-order Butterworth low-pass over every landmark
// coordinate track in frame order. This is a rendering-export tool, not part
// of Merge: the filter adjusts observed coordinates, so every filtered
// landmark comes back flagged derived. wc is the normalized cutoff in
// (0.0001, 3.1415); lower is smoother. Visibility is never filtered.
func SmoothTracks(seq landmark.Sequence, wc float64) (landmark.Sequence, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}

	out := make(landmark.Sequence, len(seq))
	for i, fr := range seq {
		next := fr
		next.Landmarks = fr.Landmarks.Clone()
		out[i] = next
	}

	// One filter per landmark per coordinate: the filter carries IIR state
	// across frames, so tracks must not share filters.
	for id := 0; id < landmark.Count; id++ {
		fx := butter.NewLowPass1(wc)
		fy := butter.NewLowPass1(wc)
		fz := butter.NewLowPass1(wc)

		if fx == nil || fy == nil || fz == nil {
			return nil, fmt.Errorf("invalid low-pass filter (attempted wc=%f, but expect .0001 < wc && wc < 3.1415)", wc)
		}

		for i := range out {
			for j := range out[i].Landmarks {
				lm := &out[i].Landmarks[j]
				if lm.ID != id {
					continue
				}
				lm.X = fx.Next(lm.X)
				lm.Y = fy.Next(lm.Y)
				lm.Z = fz.Next(lm.Z)
				lm.Derived = true
			}
		}
	}

	return out, nil
}
