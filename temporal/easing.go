package temporal

import (
	"fmt"
	"math"
)

// Easing shapes the interpolation parameter for gap filling. Linear easing is
// deliberately not offered: linearly interpolated joints arrive and depart at
// full speed, which reads as a visible "teleport" in rendered overlays.
type Easing string

const (
	// EasingSmoothstep applies 3t^2 - 2t^3.
	EasingSmoothstep Easing = "smoothstep"

	// EasingCosine applies (1 - cos(pi*t)) / 2.
	EasingCosine Easing = "cosine"
)

// Validate rejects unknown easing names.
func (e Easing) Validate() error {
	switch e {
	case EasingSmoothstep, EasingCosine:
		return nil
	}
	return fmt.Errorf("unknown easing %q (want %q or %q)", e, EasingSmoothstep, EasingCosine)
}

// Apply maps t in [0,1] through the easing curve; out-of-range inputs clamp.
func (e Easing) Apply(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}

	switch e {
	case EasingCosine:
		return (1 - math.Cos(math.Pi*t)) / 2
	default:
		return t * t * (3 - 2*t)
	}
}
