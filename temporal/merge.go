// Package temporal repairs a scored frame sequence after selection: frames
// with high mean visibility pass through untouched, medium frames are blended
// toward their high-confidence neighbors, and low or missing frames are
// interpolated between anchors with eased parameterization. Every synthesized
// or blended landmark is flagged derived, and that flag is never dropped or
// promoted back to observed.
package temporal

import (
	"fmt"

	"github.com/carbocation/pfx"
	"github.com/tj/go-rle"

	"github.com/danceqc/posemisc/landmark"
)

// Config tunes the merger. Start from DefaultConfig; Validate runs at the top
// of Merge, so a bad band layout fails before any frame is touched.
type Config struct {
	// HighBand and LowBand split frames by mean visibility: above HighBand is
	// left untouched, below LowBand is interpolated, between is blended.
	HighBand float64 `json:"high_band"`
	LowBand  float64 `json:"low_band"`

	// BlendRatio is the weight of the original landmark in a medium-band
	// blend; the remainder comes from the neighbor average.
	BlendRatio float64 `json:"blend_ratio"`

	// NeighborWindow is how many high-band frames per side feed the
	// medium-band neighbor average.
	NeighborWindow int `json:"neighbor_window"`

	// AnchorFloor is the minimum mean visibility for a frame to serve as an
	// interpolation anchor.
	AnchorFloor float64 `json:"anchor_floor"`

	// MaxAnchorGap bounds, in frames, how far the merger searches for anchors
	// and blend neighbors. Gaps without anchors on both sides within this
	// window stay unresolved and are reported, never zero-filled.
	MaxAnchorGap int `json:"max_anchor_gap"`

	Easing Easing `json:"easing"`

	// UnreliableIDs are landmarks that the model guesses wildly for when
	// occluded (typically wrists and hands). They are never synthesized: a
	// wrong confident-looking point is worse than an honest low-confidence
	// one.
	UnreliableIDs []int `json:"unreliable_ids"`

	// UseSpline rebuilds long gaps from a cubic spline fit over each
	// landmark's observed track when at least MinSplinePoints observations
	// exist, instead of the two-anchor eased interpolation.
	UseSpline       bool `json:"use_spline"`
	MinSplinePoints int  `json:"min_spline_points"`
}

// DefaultConfig returns the merge tuning used in production runs.
func DefaultConfig() Config {
	return Config{
		HighBand:       0.6,
		LowBand:        0.3,
		BlendRatio:     0.7,
		NeighborWindow: 2,
		AnchorFloor:    0.5,
		MaxAnchorGap:   30,
		Easing:         EasingSmoothstep,
		UnreliableIDs: []int{
			landmark.LeftWrist, landmark.RightWrist,
			landmark.LeftPinky, landmark.RightPinky,
			landmark.LeftIndex, landmark.RightIndex,
			landmark.LeftThumb, landmark.RightThumb,
		},
		UseSpline:       false,
		MinSplinePoints: 8,
	}
}

// Validate enforces band ordering and parameter ranges.
func (cfg Config) Validate() error {
	if cfg.LowBand <= 0 || cfg.HighBand >= 1 || cfg.LowBand >= cfg.HighBand {
		return fmt.Errorf("visibility bands must satisfy 0 < low (%f) < high (%f) < 1", cfg.LowBand, cfg.HighBand)
	}
	if cfg.BlendRatio < 0 || cfg.BlendRatio > 1 {
		return fmt.Errorf("blend ratio %f outside [0,1]", cfg.BlendRatio)
	}
	if cfg.NeighborWindow < 1 {
		return fmt.Errorf("neighbor window %d must be at least 1", cfg.NeighborWindow)
	}
	if cfg.AnchorFloor <= 0 || cfg.AnchorFloor > 1 {
		return fmt.Errorf("anchor floor %f outside (0,1]", cfg.AnchorFloor)
	}
	if cfg.MaxAnchorGap < 1 {
		return fmt.Errorf("max anchor gap %d must be at least 1", cfg.MaxAnchorGap)
	}
	if err := cfg.Easing.Validate(); err != nil {
		return err
	}
	for _, id := range cfg.UnreliableIDs {
		if id < 0 || id >= landmark.Count {
			return fmt.Errorf("unreliable landmark ID %d outside the topology", id)
		}
	}
	if cfg.UseSpline && cfg.MinSplinePoints < 5 {
		return fmt.Errorf("spline fitting needs at least 5 points, got min %d", cfg.MinSplinePoints)
	}
	return nil
}

// renderOpacity is the drawing hint attached to synthesized landmarks. It is
// the original scripts' visualization boost, kept out of the Visibility field
// so detection confidence stays honest.
func renderOpacity(visibility float64) float64 {
	if v := visibility + 0.1; v < 0.6 {
		return v
	}
	return 0.6
}

// Merge repairs seq according to cfg and reports what it did. The input is
// not modified. Landmarks whose own visibility exceeds the high band are never
// altered regardless of their frame's band, and frames that cannot be repaired
// keep whatever honest data they had (or stay missing) and are reported as
// unresolved when left empty.
func Merge(seq landmark.Sequence, cfg Config) (landmark.Sequence, Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, Report{}, err
	}
	if err := seq.Validate(); err != nil {
		return nil, Report{}, pfx.Err(err)
	}
	if len(seq) == 0 {
		return nil, Report{}, nil
	}

	unreliable := make(map[int]bool, len(cfg.UnreliableIDs))
	for _, id := range cfg.UnreliableIDs {
		unreliable[id] = true
	}

	// Anchor candidates, as positions into seq, in frame order.
	anchors := make([]int, 0, len(seq))
	for i, fr := range seq {
		if fr.Landmarks.MeanVisibility() >= cfg.AnchorFloor {
			anchors = append(anchors, i)
		}
	}

	var tracks *splineTracks
	if cfg.UseSpline {
		tracks = buildSplineTracks(seq, anchors, cfg.MinSplinePoints)
	}

	first, last := seq[0].FrameID, seq[len(seq)-1].FrameID
	out := make(landmark.Sequence, 0, last-first+1)

	var rep Report
	var unresolved []int

	for f := first; f <= last; f++ {
		i := seq.ByFrame(f)
		missing := i < 0

		var fr landmark.FrameResult
		if !missing {
			fr = seq[i]
		}

		if !missing {
			switch mv := fr.Landmarks.MeanVisibility(); {
			case mv > cfg.HighBand:
				rep.HighFrames++
				out = append(out, fr)
				continue
			case mv >= cfg.LowBand:
				rep.MediumFrames++
				merged, blended := blendFrame(seq, i, cfg)
				if blended {
					rep.BlendedFrames++
				}
				out = append(out, merged)
				continue
			default:
				rep.LowFrames++
			}
		}

		prevA, nextA, ok := findAnchors(seq, anchors, f, cfg.MaxAnchorGap)
		if !ok {
			if missing || fr.Empty() {
				unresolved = append(unresolved, f)
			}
			if !missing {
				out = append(out, fr)
			}
			continue
		}

		merged, changed := interpolateFrame(fr, missing, f, seq[prevA], seq[nextA], cfg, tracks, unreliable)
		if !changed {
			if missing || fr.Empty() {
				unresolved = append(unresolved, f)
			}
			if !missing {
				out = append(out, fr)
			}
			continue
		}

		switch {
		case missing, fr.Empty():
			rep.SynthesizedFrames++
		default:
			rep.InterpolatedFrames++
		}
		out = append(out, merged)
	}

	rep.UnresolvedRanges = rangesFromSortedIDs(unresolved)
	rep.DerivedRuns = derivedRuns(out)

	return out, rep, nil
}

// findAnchors locates the nearest anchor frames strictly before and strictly
// after frame f, both within maxGap frames. Interpolation requires both sides:
// extrapolating a dancer beyond the last thing the model saw invents motion.
func findAnchors(seq landmark.Sequence, anchors []int, f, maxGap int) (prev, next int, ok bool) {
	prev, next = -1, -1

	for _, a := range anchors {
		id := seq[a].FrameID
		if id < f && f-id <= maxGap {
			prev = a
		}
		if id > f {
			if id-f <= maxGap && next == -1 {
				next = a
			}
			break
		}
	}

	return prev, next, prev >= 0 && next >= 0
}

// blendFrame mixes a medium-band frame's landmarks toward the average of its
// high-band neighbors. Landmarks above the high band, and landmarks with no
// neighbor observations, pass through exactly.
func blendFrame(seq landmark.Sequence, i int, cfg Config) (landmark.FrameResult, bool) {
	fr := seq[i]

	neighbors := highNeighbors(seq, i, cfg)
	if len(neighbors) == 0 {
		return fr, false
	}

	merged := make(landmark.Set, 0, len(fr.Landmarks))
	blended := false

	for _, lm := range fr.Landmarks {
		if lm.Visibility > cfg.HighBand {
			merged = append(merged, lm)
			continue
		}

		var sx, sy, sz float64
		n := 0
		for _, ni := range neighbors {
			if nl, ok := seq[ni].Landmarks.ByID(lm.ID); ok {
				sx += nl.X
				sy += nl.Y
				sz += nl.Z
				n++
			}
		}
		if n == 0 {
			merged = append(merged, lm)
			continue
		}

		r := cfg.BlendRatio
		avgN := float64(n)
		merged = append(merged, landmark.Landmark{
			ID:            lm.ID,
			X:             r*lm.X + (1-r)*sx/avgN,
			Y:             r*lm.Y + (1-r)*sy/avgN,
			Z:             r*lm.Z + (1-r)*sz/avgN,
			Visibility:    lm.Visibility,
			Derived:       true,
			RenderOpacity: renderOpacity(lm.Visibility),
		})
		blended = true
	}

	out := fr
	out.Landmarks = merged

	return out, blended
}

// highNeighbors collects up to NeighborWindow high-band frames on each side of
// position i, nearest first, within the anchor gap.
func highNeighbors(seq landmark.Sequence, i int, cfg Config) []int {
	f := seq[i].FrameID
	out := make([]int, 0, 2*cfg.NeighborWindow)

	for j := i - 1; j >= 0 && len(out) < cfg.NeighborWindow; j-- {
		if f-seq[j].FrameID > cfg.MaxAnchorGap {
			break
		}
		if seq[j].Landmarks.MeanVisibility() > cfg.HighBand {
			out = append(out, j)
		}
	}

	forward := 0
	for j := i + 1; j < len(seq) && forward < cfg.NeighborWindow; j++ {
		if seq[j].FrameID-f > cfg.MaxAnchorGap {
			break
		}
		if seq[j].Landmarks.MeanVisibility() > cfg.HighBand {
			out = append(out, j)
			forward++
		}
	}

	return out
}

// interpolateFrame rebuilds a low-band or missing frame from its anchors.
// Per landmark: an observation above the high band is kept exactly; unreliable
// landmarks are never synthesized (an existing honest observation is kept);
// everything else present in both anchors is interpolated at the eased
// parameter, with spline-track coordinates when available. changed reports
// whether any landmark was actually synthesized.
func interpolateFrame(fr landmark.FrameResult, missing bool, f int, prevFr, nextFr landmark.FrameResult, cfg Config, tracks *splineTracks, unreliable map[int]bool) (landmark.FrameResult, bool) {
	span := nextFr.FrameID - prevFr.FrameID
	t := float64(f-prevFr.FrameID) / float64(span)
	eased := cfg.Easing.Apply(t)

	base := landmark.Interpolate(prevFr.Landmarks, nextFr.Landmarks, eased)

	merged := make(landmark.Set, 0, len(base))
	changed := false

	for id := 0; id < landmark.Count; id++ {
		orig, hasOrig := fr.Landmarks.ByID(id)
		if missing {
			hasOrig = false
		}

		if hasOrig && orig.Visibility > cfg.HighBand {
			merged = append(merged, orig)
			continue
		}

		if unreliable[id] {
			if hasOrig {
				merged = append(merged, orig)
			}
			continue
		}

		bl, ok := base.ByID(id)
		if !ok {
			if hasOrig {
				merged = append(merged, orig)
			}
			continue
		}

		if tracks != nil {
			if x, y, z, ok := tracks.predict(id, float64(f)); ok {
				bl.X, bl.Y, bl.Z = x, y, z
			}
		}
		bl.RenderOpacity = renderOpacity(bl.Visibility)

		merged = append(merged, bl)
		changed = true
	}

	if !changed {
		return fr, false
	}

	out := landmark.FrameResult{
		FrameID:    f,
		Landmarks:  merged,
		Strategy:   fr.Strategy,
		Confidence: fr.Confidence,
		Score:      fr.Score,
	}
	if missing || fr.Empty() {
		out.Strategy = landmark.StrategyInterpolated
		out.Confidence = 0
		out.Score = 0
	}

	return out, true
}

// derivedRuns encodes, per landmark, a 0/1 series across the output frames
// marking derived points. RLE keeps it compact: derived spans are contiguous
// by construction.
func derivedRuns(out landmark.Sequence) map[int][]byte {
	series := make(map[int][]int64)

	for _, fr := range out {
		for _, lm := range fr.Landmarks {
			if _, ok := series[lm.ID]; !ok {
				series[lm.ID] = make([]int64, 0, len(out))
			}
		}
	}

	for _, fr := range out {
		for id := range series {
			v := int64(0)
			if lm, ok := fr.Landmarks.ByID(id); ok && lm.Derived {
				v = 1
			}
			series[id] = append(series[id], v)
		}
	}

	runs := make(map[int][]byte, len(series))
	for id, s := range series {
		runs[id] = rle.EncodeInt64(s)
	}

	return runs
}
