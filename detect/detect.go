// Package detect defines the landmark extractor boundary: a Detector turns a
// decoded frame into a landmark set at a given confidence threshold. The
// production implementation bridges to an external pose-model worker process;
// tests substitute FuncDetector.
package detect

import (
	"errors"
	"fmt"
	"image"

	"github.com/danceqc/posemisc/landmark"
)

// ErrNoDetection is returned when the model reports that no person is present
// in the frame. It is recoverable: the caller records the frame as a gap and
// moves on, it never aborts a batch.
var ErrNoDetection = errors.New("no person detected in frame")

// Mode selects how the underlying model treats consecutive frames. It must be
// chosen explicitly per call site: the zero value is rejected, never defaulted,
// because mixing the two modes silently produces landmarks that look plausible
// frame by frame and drift across the sequence.
type Mode int

const (
	// ModeUnset is invalid and exists so that a forgotten choice fails loudly.
	ModeUnset Mode = iota

	// ModeIndependent treats every frame in isolation; the model retains no
	// cross-call state. Required when frames arrive out of order, e.g. from a
	// parallel candidate sweep.
	ModeIndependent

	// ModeTracking lets the model carry motion-prediction state between
	// calls. Only valid when frames are presented strictly in order.
	ModeTracking
)

func (m Mode) String() string {
	switch m {
	case ModeIndependent:
		return "independent"
	case ModeTracking:
		return "tracking"
	}
	return "unset"
}

// Validate rejects the unset zero value.
func (m Mode) Validate() error {
	if m != ModeIndependent && m != ModeTracking {
		return fmt.Errorf("detector mode must be chosen explicitly (independent or tracking), got %d", int(m))
	}
	return nil
}

// Detector extracts body landmarks from one frame. minConfidence must be in
// (0,1]; it gates detection in the model and per-point reporting here, so the
// returned set may be partial. Implementations return ErrNoDetection when the
// model finds nobody; they never return an empty set with a nil error.
type Detector interface {
	Detect(img image.Image, minConfidence float64) (landmark.Set, error)
}

// FuncDetector adapts a plain function to the Detector interface. It is the
// test seam used by the frame selector and pipeline tests.
type FuncDetector func(img image.Image, minConfidence float64) (landmark.Set, error)

// Detect implements Detector.
func (f FuncDetector) Detect(img image.Image, minConfidence float64) (landmark.Set, error) {
	return f(img, minConfidence)
}
