package score

import (
	"errors"
	"math"
	"testing"

	"github.com/danceqc/posemisc/landmark"
)

// fullPose builds a complete, anatomically plausible 33-point set with uniform
// visibility.
func fullPose(t *testing.T, visibility float64) landmark.Set {
	t.Helper()

	coords := map[int][2]float64{
		landmark.Nose:          {0.50, 0.15},
		landmark.LeftShoulder:  {0.42, 0.30},
		landmark.RightShoulder: {0.58, 0.30},
		landmark.LeftHip:       {0.46, 0.52},
		landmark.RightHip:      {0.54, 0.52},
		landmark.LeftKnee:      {0.46, 0.70},
		landmark.RightKnee:     {0.54, 0.70},
		landmark.LeftAnkle:     {0.46, 0.88},
		landmark.RightAnkle:    {0.54, 0.88},
	}

	lms := make([]landmark.Landmark, 0, landmark.Count)
	for id := 0; id < landmark.Count; id++ {
		x, y := 0.5+0.002*float64(id), 0.4+0.005*float64(id)
		if c, ok := coords[id]; ok {
			x, y = c[0], c[1]
		}
		lms = append(lms, landmark.Landmark{ID: id, X: x, Y: y, Visibility: visibility})
	}

	set, err := landmark.NewSet(lms)
	if err != nil {
		t.Fatal(err)
	}

	return set
}

func TestWeightsValidation(t *testing.T) {
	for _, v := range []struct {
		weights Weights
		ok      bool
	}{
		{Weights{0.4, 0.2, 0.25, 0.15}, true},
		{Weights{1, 0, 0, 0}, true},
		{Weights{0.3, 0.3, 0.3, 0.3}, false},
		{Weights{0.5, 0.5, 0.5, -0.5}, false},
		{Weights{}, false},
	} {
		err := v.weights.Validate()
		if v.ok && err != nil {
			t.Fatalf("weights %+v should validate, got %v", v.weights, err)
		}
		if !v.ok {
			if err == nil {
				t.Fatalf("weights %+v should not validate", v.weights)
			}
			if !errors.Is(err, ErrBadWeights) {
				t.Fatalf("weights %+v: expected ErrBadWeights, got %v", v.weights, err)
			}
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Temporal = 0.5 // sum now 1.35
	if _, err := New(cfg); err == nil {
		t.Fatal("expected configuration error for weights not summing to 1")
	}

	cfg = DefaultConfig()
	cfg.PenaltyFactor = 1.5
	if _, err := New(cfg); err == nil {
		t.Fatal("expected configuration error for penalty factor outside (0,1)")
	}
}

func TestEmptySetScoresZero(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Score(nil, nil); got != 0 {
		t.Fatalf("empty set scored %f, expected 0", got)
	}
}

func TestScoreWithinDocumentedRange(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	for _, vis := range []float64{0, 0.1, 0.5, 0.9, 1} {
		set := fullPose(t, vis)
		for _, prev := range []landmark.Set{nil, set} {
			if got := s.Score(set, prev); got < 0 || got > 1 {
				t.Fatalf("score %f outside [0,1] at visibility %f", got, vis)
			}
		}
	}
}

// Raising mean visibility with everything else held fixed must strictly raise
// the score.
func TestMonotonicInVisibility(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	prevScore := -1.0
	for _, vis := range []float64{0.1, 0.3, 0.5, 0.75, 0.9} {
		set := fullPose(t, vis)
		got := s.Score(set, set) // zero displacement: temporal signal pinned at 1
		if got <= prevScore {
			t.Fatalf("score %f at visibility %f did not increase from %f", got, vis, prevScore)
		}
		prevScore = got
	}
}

// Removing landmarks that take part in no anatomy check (and that carry the
// same visibility as the rest) changes only the completeness signal, which
// must strictly lower the score.
func TestMonotonicInCompleteness(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	full := fullPose(t, 0.8)

	partial := make([]landmark.Landmark, 0, len(full))
	for _, lm := range full {
		switch lm.ID {
		case landmark.LeftEar, landmark.RightEar, landmark.LeftPinky, landmark.RightPinky:
			continue
		}
		partial = append(partial, lm)
	}
	partialSet, err := landmark.NewSet(partial)
	if err != nil {
		t.Fatal(err)
	}

	if fullScore, partScore := s.Score(full, nil), s.Score(partialSet, nil); partScore >= fullScore {
		t.Fatalf("partial set scored %f, full set %f; dropping landmarks must lower the score", partScore, fullScore)
	}
}

// An implausibly narrow shoulder span must score strictly below a plausible
// one at identical visibility.
func TestMonotonicInPlausibility(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	plausible := fullPose(t, 0.9)

	narrow := make([]landmark.Landmark, len(plausible))
	copy(narrow, plausible)
	for i := range narrow {
		switch narrow[i].ID {
		case landmark.LeftShoulder:
			narrow[i].X = 0.49
		case landmark.RightShoulder:
			narrow[i].X = 0.51 // shoulder width 0.02, below the minimum
		}
	}
	narrowSet, err := landmark.NewSet(narrow)
	if err != nil {
		t.Fatal(err)
	}

	if good, bad := s.Score(plausible, nil), s.Score(narrowSet, nil); bad >= good {
		t.Fatalf("narrow shoulders scored %f, plausible scored %f; anatomy penalty did not take effect", bad, good)
	}
}

// A vertically flipped skeleton (both knees above the hips) must score below
// the same pose upright at identical visibility.
func TestFlippedSkeletonIsPenalized(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	upright := fullPose(t, 0.9)

	flipped := make([]landmark.Landmark, len(upright))
	copy(flipped, upright)
	for i := range flipped {
		switch flipped[i].ID {
		case landmark.LeftKnee, landmark.RightKnee:
			flipped[i].Y = 0.30 // far above the 0.52 hip line
		}
	}
	flippedSet, err := landmark.NewSet(flipped)
	if err != nil {
		t.Fatal(err)
	}

	if good, bad := s.Score(upright, nil), s.Score(flippedSet, nil); bad >= good {
		t.Fatalf("flipped skeleton scored %f, upright scored %f; the knee check did not take effect", bad, good)
	}
}

// Larger single-frame jumps must strictly lower the score, and an extreme jump
// bottoms out at a zero temporal signal rather than inverting the penalty.
func TestMonotonicInTemporalConsistency(t *testing.T) {
	cfg := DefaultConfig()
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	set := fullPose(t, 0.9)

	shifted := func(dx float64) landmark.Set {
		out := make([]landmark.Landmark, len(set))
		copy(out, set)
		for i := range out {
			out[i].X += dx
		}
		shiftedSet, err := landmark.NewSet(out)
		if err != nil {
			t.Fatal(err)
		}
		return shiftedSet
	}

	still := s.Score(set, set)
	smallJump := s.Score(set, shifted(cfg.MaxPlausibleMove*1.5))
	bigJump := s.Score(set, shifted(cfg.MaxPlausibleMove*3.0))

	if !(still > smallJump && smallJump > bigJump) {
		t.Fatalf("scores not decreasing with jump size: still=%f small=%f big=%f", still, smallJump, bigJump)
	}

	// Beyond twice the plausible move the temporal signal is floored at 0, so
	// the score must equal the non-temporal portion exactly, never less.
	hugeJump := s.Score(set, shifted(0.9))
	w := cfg.Weights
	floor := w.Visibility*s.visibilitySignal(set) + w.Completeness*set.Completeness() + w.Plausibility*s.plausibilitySignal(set)
	if math.Abs(hugeJump-floor) > 1e-9 {
		t.Fatalf("huge jump scored %f, expected the temporal-free floor %f", hugeJump, floor)
	}
}

// Without a previous frame the temporal weight is spread across the other
// signals, so a perfect still frame scores the same with and without history.
func TestMissingPreviousFrameRedistributesWeight(t *testing.T) {
	s, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	set := fullPose(t, 1.0)

	withPrev := s.Score(set, set)
	withoutPrev := s.Score(set, nil)

	if math.Abs(withPrev-withoutPrev) > 1e-9 {
		t.Fatalf("still frame scored %f with history and %f without", withPrev, withoutPrev)
	}
}
