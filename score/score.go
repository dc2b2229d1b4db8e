// Package score computes a scalar quality score for a detected landmark set.
// The score is a weighted sum of four signals (visibility, completeness,
// anatomical plausibility, temporal consistency), each in [0,1], so the score
// itself is documented to lie in [0,1]. Weights are configuration, not
// constants, and must sum to 1.
package score

import (
	"errors"
	"fmt"
	"math"

	"github.com/danceqc/posemisc/landmark"
)

// ErrBadWeights indicates scorer weights that do not sum to 1 (or fall outside
// [0,1]). This is a configuration error: the run must fail at startup rather
// than silently normalizing, because silently rescaled weights make scores
// incomparable across runs that claimed the same configuration.
var ErrBadWeights = errors.New("scorer weights must each be in [0,1] and sum to 1")

// Weights apportions the four quality signals. All four must be in [0,1] and
// together sum to 1 (within 1e-9).
type Weights struct {
	Visibility   float64 `json:"visibility"`
	Completeness float64 `json:"completeness"`
	Plausibility float64 `json:"plausibility"`
	Temporal     float64 `json:"temporal"`
}

// Validate enforces the sum-to-1 contract.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Visibility, w.Completeness, w.Plausibility, w.Temporal} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: got %+v", ErrBadWeights, w)
		}
	}

	if sum := w.Visibility + w.Completeness + w.Plausibility + w.Temporal; math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("%w: sum is %f in %+v", ErrBadWeights, sum, w)
	}

	return nil
}

// Config tunes the scorer. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	Weights Weights `json:"weights"`

	// HighVisibilityCutoff is the visibility above which a landmark counts as
	// high-confidence; the visibility signal is the mean visibility blended
	// 50/50 with the fraction of landmarks above this cutoff.
	HighVisibilityCutoff float64 `json:"high_visibility_cutoff"`

	// PenaltyFactor multiplies the plausibility signal once per violated
	// anatomy check. It must be in (0,1): multiplicative rather than zeroing,
	// so an imperfect but still useful detection is not discarded outright.
	PenaltyFactor float64 `json:"penalty_factor"`

	// Anatomy check bounds, all as fractions of the frame dimension.
	MinShoulderWidth float64 `json:"min_shoulder_width"`
	MaxShoulderWidth float64 `json:"max_shoulder_width"`
	MinHipWidth      float64 `json:"min_hip_width"`
	MaxHipWidth      float64 `json:"max_hip_width"`

	// HeadAboveHipTolerance allows the nose to dip this far below the hip
	// midline before the head-above-hips check counts as violated. Dancers
	// bend deeply, so this is looser than it would be for gait footage.
	HeadAboveHipTolerance float64 `json:"head_above_hip_tolerance"`

	// KneeAboveHipTolerance allows the knee midline to rise this far above the
	// hip midline before the knees-below-hips check counts as violated. A high
	// kick brings one knee past the hips; both knees well past usually means a
	// vertically flipped detection.
	KneeAboveHipTolerance float64 `json:"knee_above_hip_tolerance"`

	// MaxPlausibleMove is the largest per-landmark displacement between
	// consecutive frames that is attributed to real motion, as a fraction of
	// frame size. Mean excess beyond this reduces the temporal signal
	// proportionally; at twice this displacement the signal reaches its floor
	// of zero.
	MaxPlausibleMove float64 `json:"max_plausible_move"`
}

// DefaultConfig returns the tuning used in production runs.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Visibility:   0.4,
			Completeness: 0.2,
			Plausibility: 0.25,
			Temporal:     0.15,
		},
		HighVisibilityCutoff:  0.7,
		PenaltyFactor:         0.5,
		MinShoulderWidth:      0.04,
		MaxShoulderWidth:      0.7,
		MinHipWidth:           0.02,
		MaxHipWidth:           0.6,
		HeadAboveHipTolerance: 0.05,
		KneeAboveHipTolerance: 0.15,
		MaxPlausibleMove:      0.12,
	}
}

// Scorer scores landmark sets. Construct with New; a Scorer is immutable and
// safe for concurrent use.
type Scorer struct {
	cfg Config
}

// New validates the configuration and returns a Scorer. Weight violations are
// fatal here, at startup, never patched over later.
func New(cfg Config) (*Scorer, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.PenaltyFactor <= 0 || cfg.PenaltyFactor >= 1 {
		return nil, fmt.Errorf("%w: penalty factor %f must be in (0,1)", ErrBadWeights, cfg.PenaltyFactor)
	}
	if cfg.MaxPlausibleMove <= 0 {
		return nil, fmt.Errorf("%w: max plausible move %f must be positive", ErrBadWeights, cfg.MaxPlausibleMove)
	}

	return &Scorer{cfg: cfg}, nil
}

// Score computes the quality of set, optionally judging temporal consistency
// against prev (the accepted landmarks of the previous frame; pass nil when
// unavailable, e.g. at the first frame or after a gap). An empty set scores 0.
// When prev is nil the temporal weight is redistributed proportionally across
// the other three signals so the score stays in [0,1] and remains comparable.
func (s *Scorer) Score(set landmark.Set, prev landmark.Set) float64 {
	if len(set) == 0 {
		return 0
	}

	v := s.visibilitySignal(set)
	c := set.Completeness()
	p := s.plausibilitySignal(set)

	w := s.cfg.Weights
	if len(prev) == 0 {
		denom := w.Visibility + w.Completeness + w.Plausibility
		if denom <= 0 {
			return 0
		}
		return (w.Visibility*v + w.Completeness*c + w.Plausibility*p) / denom
	}

	t := s.temporalSignal(set, prev)

	return w.Visibility*v + w.Completeness*c + w.Plausibility*p + w.Temporal*t
}

func (s *Scorer) visibilitySignal(set landmark.Set) float64 {
	mean := set.MeanVisibility()

	high := 0
	for _, lm := range set {
		if lm.Visibility > s.cfg.HighVisibilityCutoff {
			high++
		}
	}
	highFrac := float64(high) / float64(len(set))

	return 0.5*mean + 0.5*highFrac
}

// plausibilitySignal starts at 1 and is multiplied by the penalty factor once
// per violated anatomy check. Checks whose landmarks are absent are skipped:
// a partial set is judged on completeness, not on anatomy it didn't report.
func (s *Scorer) plausibilitySignal(set landmark.Set) float64 {
	p := 1.0

	ls, lok := set.ByID(landmark.LeftShoulder)
	rs, rok := set.ByID(landmark.RightShoulder)
	if lok && rok {
		if w := math.Abs(ls.X - rs.X); w < s.cfg.MinShoulderWidth || w > s.cfg.MaxShoulderWidth {
			p *= s.cfg.PenaltyFactor
		}
	}

	lh, lhok := set.ByID(landmark.LeftHip)
	rh, rhok := set.ByID(landmark.RightHip)
	if lhok && rhok {
		if w := math.Abs(lh.X - rh.X); w < s.cfg.MinHipWidth || w > s.cfg.MaxHipWidth {
			p *= s.cfg.PenaltyFactor
		}

		hipMidY := (lh.Y + rh.Y) / 2

		// Image Y grows downward, so "above" means a smaller Y.
		if nose, ok := set.ByID(landmark.Nose); ok {
			if nose.Y > hipMidY+s.cfg.HeadAboveHipTolerance {
				p *= s.cfg.PenaltyFactor
			}
		}

		lk, lkok := set.ByID(landmark.LeftKnee)
		rk, rkok := set.ByID(landmark.RightKnee)
		if lkok && rkok {
			if (lk.Y+rk.Y)/2 < hipMidY-s.cfg.KneeAboveHipTolerance {
				p *= s.cfg.PenaltyFactor
			}
		}
	}

	return p
}

// temporalSignal compares per-landmark displacement against the maximum
// plausible single-frame movement. Displacement within bounds costs nothing;
// the mean excess reduces the signal proportionally and the signal is floored
// at zero so an extreme jump can never flip the penalty into a bonus.
func (s *Scorer) temporalSignal(set landmark.Set, prev landmark.Set) float64 {
	shared := 0
	excess := 0.0

	for _, lm := range set {
		pl, ok := prev.ByID(lm.ID)
		if !ok {
			continue
		}
		shared++

		d := math.Hypot(lm.X-pl.X, lm.Y-pl.Y)
		if d > s.cfg.MaxPlausibleMove {
			excess += d - s.cfg.MaxPlausibleMove
		}
	}

	if shared == 0 {
		return 1
	}

	t := 1.0 - (excess/float64(shared))/s.cfg.MaxPlausibleMove
	if t < 0 {
		return 0
	}

	return t
}
