// Package strategy produces the ordered list of preprocessing candidates that
// the frame selector tries against the detector. Generation is a deterministic
// pure function of the input frame and configuration: candidate order is fixed
// by construction (an explicit slice, never map iteration), because the
// selector's tie-break prefers earlier candidates and must be reproducible
// across runs.
package strategy

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Candidate is one preprocessed rendition of a frame to offer the detector.
// MirrorX records that the image was flipped horizontally, in which case any
// landmarks detected on it must be reflected back (x' = 1-x, left/right IDs
// swapped) exactly once before they are comparable to other candidates. Zoom,
// when greater than 1, records that the image is the centered 1/Zoom window of
// the frame scaled back up; detections on it are in window coordinates and
// must be mapped back under the same exactly-once rule.
type Candidate struct {
	Name       string
	Image      image.Image
	Confidence float64
	MirrorX    bool
	Zoom       float64
}

// Config selects and tunes the candidate transforms. Zero values disable the
// optional transforms; BaseConfidence must be in (0,1].
type Config struct {
	// BaseConfidence is the detection threshold used by every transform
	// candidate.
	BaseConfidence float64 `json:"base_confidence"`

	// BlurSigmas adds one Gaussian blur candidate per sigma, in order. Mild
	// blur suppresses the compression shimmer that makes the detector drop
	// fast-moving limbs.
	BlurSigmas []float64 `json:"blur_sigmas"`

	// Equalize adds a midtone contrast equalization candidate, for frames
	// where stage lighting crushes the subject into the background.
	Equalize bool `json:"equalize"`

	// BrightenPercent/ContrastPercent add a linear brightness+contrast scaling
	// candidate when either is nonzero.
	BrightenPercent float64 `json:"brighten_percent"`
	ContrastPercent float64 `json:"contrast_percent"`

	// Mirror adds a horizontally flipped candidate. Profile poses that the
	// model was trained to see on one side are sometimes only detected after
	// flipping.
	Mirror bool `json:"mirror"`

	// LowerRegion adds a candidate with enhancement applied only to the lower
	// two-thirds of the frame, targeting leg-region detection failures without
	// disturbing an already-findable torso.
	LowerRegion bool `json:"lower_region"`

	// ZoomFactor, when greater than 1, adds a centered digital-zoom candidate:
	// the middle 1/ZoomFactor of the frame scaled back to full size. Helps
	// when the subject is small in frame. Parts outside the window cannot be
	// detected, so modest factors (1.5 or 2) are the useful range.
	ZoomFactor float64 `json:"zoom_factor"`

	// SweepConfidences re-offers the identity image at progressively more
	// permissive detection thresholds, in order, after all transforms.
	SweepConfidences []float64 `json:"sweep_confidences"`
}

// DefaultConfig returns the candidate set used in production runs.
func DefaultConfig() Config {
	return Config{
		BaseConfidence:   0.5,
		BlurSigmas:       []float64{2.0},
		Equalize:         true,
		BrightenPercent:  15,
		ContrastPercent:  20,
		Mirror:           true,
		LowerRegion:      true,
		SweepConfidences: []float64{0.3},
	}
}

// Generate builds the candidate list for one frame. The identity candidate is
// always first; transform candidates follow in a fixed order; confidence
// sweeps of the identity image come last. Two calls with the same frame and
// config return candidates with identical names, order, and parameters.
func Generate(frame image.Image, cfg Config) []Candidate {
	out := []Candidate{
		{Name: "identity", Image: frame, Confidence: cfg.BaseConfidence},
	}

	for _, sigma := range cfg.BlurSigmas {
		if sigma <= 0 {
			continue
		}
		out = append(out, Candidate{
			Name:       fmt.Sprintf("blur%.1f", sigma),
			Image:      imaging.Blur(frame, sigma),
			Confidence: cfg.BaseConfidence,
		})
	}

	if cfg.Equalize {
		out = append(out, Candidate{
			Name:       "equalize",
			Image:      imaging.AdjustSigmoid(frame, 0.5, 8.0),
			Confidence: cfg.BaseConfidence,
		})
	}

	if cfg.BrightenPercent != 0 || cfg.ContrastPercent != 0 {
		img := imaging.AdjustBrightness(frame, cfg.BrightenPercent)
		img = imaging.AdjustContrast(img, cfg.ContrastPercent)
		out = append(out, Candidate{
			Name:       "bright_contrast",
			Image:      img,
			Confidence: cfg.BaseConfidence,
		})
	}

	if cfg.Mirror {
		out = append(out, Candidate{
			Name:       "mirror",
			Image:      imaging.FlipH(frame),
			Confidence: cfg.BaseConfidence,
			MirrorX:    true,
		})
	}

	if cfg.LowerRegion {
		out = append(out, Candidate{
			Name:       "lower_region",
			Image:      enhanceLowerRegion(frame),
			Confidence: cfg.BaseConfidence,
		})
	}

	if cfg.ZoomFactor > 1 {
		out = append(out, Candidate{
			Name:       fmt.Sprintf("zoom%.1f", cfg.ZoomFactor),
			Image:      centerZoom(frame, cfg.ZoomFactor),
			Confidence: cfg.BaseConfidence,
			Zoom:       cfg.ZoomFactor,
		})
	}

	for _, conf := range cfg.SweepConfidences {
		if conf <= 0 || conf > 1 {
			continue
		}
		out = append(out, Candidate{
			Name:       fmt.Sprintf("identity_c%.2f", conf),
			Image:      frame,
			Confidence: conf,
		})
	}

	return out
}

// enhanceLowerRegion boosts contrast and brightness in the lower two-thirds of
// the frame only, pasting the enhanced strip back over an untouched copy of
// the original.
func enhanceLowerRegion(frame image.Image) image.Image {
	b := frame.Bounds()
	regionTop := b.Min.Y + b.Dy()/3

	region := imaging.Crop(frame, image.Rect(b.Min.X, regionTop, b.Max.X, b.Max.Y))
	region = imaging.AdjustSigmoid(region, 0.5, 6.0)
	region = imaging.AdjustBrightness(region, 10)

	out := imaging.Clone(frame)

	// imaging.Clone rebases bounds at the origin, so the paste position is
	// relative to (0,0) regardless of the source image's bounds.
	return imaging.Paste(out, region, image.Pt(0, regionTop-b.Min.Y))
}

// centerZoom crops the central 1/factor window of the frame and scales it back
// up to the original dimensions. Detections made on the result are in window
// coordinates; the selector maps them back before comparing them with other
// candidates.
func centerZoom(frame image.Image, factor float64) image.Image {
	b := frame.Bounds()
	region := imaging.CropCenter(frame, int(float64(b.Dx())/factor), int(float64(b.Dy())/factor))
	return imaging.Resize(region, b.Dx(), b.Dy(), imaging.Lanczos)
}
