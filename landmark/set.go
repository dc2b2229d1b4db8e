package landmark

import (
	"fmt"
	"sort"
)

// Set is the landmarks detected in a single frame, sorted by ID with at most
// one landmark per ID. A Set is treated as immutable once produced: operations
// that change it return a new Set. A nil or empty Set means "no detection".
type Set []Landmark

// NewSet builds a Set from landmarks in any order, enforcing the Set
// invariants. It rejects duplicate IDs and IDs outside the topology rather
// than silently keeping one of the duplicates, because duplicated rows in
// persisted output have always meant an upstream bug.
func NewSet(lms []Landmark) (Set, error) {
	out := make(Set, len(lms))
	copy(out, lms)

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	for i, lm := range out {
		if lm.ID < 0 || lm.ID >= Count {
			return nil, fmt.Errorf("landmark ID %d is outside the %d-point topology", lm.ID, Count)
		}
		if i > 0 && out[i-1].ID == lm.ID {
			return nil, fmt.Errorf("duplicate landmark ID %d", lm.ID)
		}
	}

	return out, nil
}

// ByID returns the landmark with the given ID, if present.
func (s Set) ByID(id int) (Landmark, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i].ID >= id })
	if i < len(s) && s[i].ID == id {
		return s[i], true
	}
	return Landmark{}, false
}

// MeanVisibility is the arithmetic mean of the visibilities of the landmarks
// present in the set. An empty set has mean visibility 0.
func (s Set) MeanVisibility() float64 {
	if len(s) == 0 {
		return 0
	}

	sum := 0.0
	for _, lm := range s {
		sum += lm.Visibility
	}

	return sum / float64(len(s))
}

// Completeness is the fraction of the full topology present in the set.
func (s Set) Completeness() float64 {
	return float64(len(s)) / float64(Count)
}

// Clone returns a copy that shares no storage with the receiver.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Mirrored maps a detection made on a horizontally flipped frame back into the
// original frame's coordinate space: every X becomes 1-X and left/right IDs are
// swapped. This must be applied exactly once to any detection produced from a
// mirrored image before it is compared or stored.
func (s Set) Mirrored() Set {
	if len(s) == 0 {
		return s.Clone()
	}

	out := make(Set, 0, len(s))
	for _, lm := range s {
		out = append(out, lm.Mirrored())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// Unzoomed maps a detection made on a centered digital zoom of the frame back
// into full-frame coordinates. A factor z means the detector saw only the
// middle 1/z of the frame, so X and Y contract toward the center and Z, which
// shares X's scale, contracts with them. Like Mirrored, this must be applied
// exactly once.
func (s Set) Unzoomed(factor float64) Set {
	if len(s) == 0 {
		return s.Clone()
	}

	offset := (1 - 1/factor) / 2

	out := make(Set, 0, len(s))
	for _, lm := range s {
		lm.X = offset + lm.X/factor
		lm.Y = offset + lm.Y/factor
		lm.Z /= factor
		out = append(out, lm)
	}

	return out
}

// Interpolate linearly mixes two sets at parameter t (0 gives a, 1 gives b),
// covering only the IDs present in both. Callers are expected to have already
// eased t; this function is intentionally linear in t. Every produced landmark
// is flagged Derived.
func Interpolate(a, b Set, t float64) Set {
	out := make(Set, 0, len(a))

	for _, la := range a {
		lb, ok := b.ByID(la.ID)
		if !ok {
			continue
		}

		out = append(out, Landmark{
			ID:         la.ID,
			X:          la.X + (lb.X-la.X)*t,
			Y:          la.Y + (lb.Y-la.Y)*t,
			Z:          la.Z + (lb.Z-la.Z)*t,
			Visibility: la.Visibility + (lb.Visibility-la.Visibility)*t,
			Derived:    true,
		})
	}

	return out
}
