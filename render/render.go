// Package render draws pose skeletons over video frames and assembles the
// overlaid frames into GIFs or charts. Derived landmarks are drawn hollow and
// translucent so a reviewer can tell at a glance which joints were observed
// and which were reconstructed.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/icza/gox/imagex/colorx"

	"github.com/danceqc/posemisc/landmark"
)

// Style configures skeleton drawing. Colors are hex strings ("#rrggbb").
type Style struct {
	BoneHex    string `json:"bone_hex"`
	LeftHex    string `json:"left_hex"`
	RightHex   string `json:"right_hex"`
	CenterHex  string `json:"center_hex"`
	DerivedHex string `json:"derived_hex"`

	BoneWidth   float64 `json:"bone_width"`
	JointRadius float64 `json:"joint_radius"`

	// MinVisibility hides observed joints below this visibility instead of
	// drawing confident-looking dots for noise. Derived joints are always
	// drawn, at their recorded render opacity.
	MinVisibility float64 `json:"min_visibility"`

	// DerivedOpacity applies to derived landmarks that carry no recorded
	// render opacity, such as smoothed tracks.
	DerivedOpacity float64 `json:"derived_opacity"`

	// ScoreBar draws a bar along the top edge sized by the frame score.
	ScoreBar bool `json:"score_bar"`
}

// DefaultStyle matches the mediapipe-style side coloring: left joints warm,
// right joints cool.
func DefaultStyle() Style {
	return Style{
		BoneHex:        "#ffffff",
		LeftHex:        "#ff8c00",
		RightHex:       "#00b7eb",
		CenterHex:      "#e0e0e0",
		DerivedHex:     "#ffd700",
		BoneWidth:      2,
		JointRadius:    3.5,
		MinVisibility:  0.2,
		DerivedOpacity: 0.6,
	}
}

// Renderer draws frames with one parsed style.
type Renderer struct {
	style Style

	bone    color.RGBA
	left    color.RGBA
	right   color.RGBA
	center  color.RGBA
	derived color.RGBA
}

// New parses the style's colors up front so bad hex fails before any frame is
// rendered.
func New(style Style) (*Renderer, error) {
	r := &Renderer{style: style}

	for _, c := range []struct {
		hex string
		dst *color.RGBA
	}{
		{style.BoneHex, &r.bone},
		{style.LeftHex, &r.left},
		{style.RightHex, &r.right},
		{style.CenterHex, &r.center},
		{style.DerivedHex, &r.derived},
	} {
		parsed, err := colorx.ParseHexColor(c.hex)
		if err != nil {
			return nil, fmt.Errorf("bad color %q: %v", c.hex, err)
		}
		*c.dst = parsed
	}

	if style.BoneWidth <= 0 || style.JointRadius <= 0 {
		return nil, fmt.Errorf("bone width %f and joint radius %f must be positive", style.BoneWidth, style.JointRadius)
	}

	return r, nil
}

// Overlay returns a copy of frame with the skeleton drawn on top. The input
// image is not modified. Bones whose endpoints include a derived landmark are
// dashed; derived joints are hollow rings.
func (r *Renderer) Overlay(frame image.Image, fr landmark.FrameResult) image.Image {
	dc := gg.NewContextForImage(frame)

	w := float64(frame.Bounds().Dx())
	h := float64(frame.Bounds().Dy())

	for _, bone := range landmark.Connections {
		a, okA := fr.Landmarks.ByID(bone[0])
		b, okB := fr.Landmarks.ByID(bone[1])
		if !okA || !okB || !r.drawable(a) || !r.drawable(b) {
			continue
		}

		dc.SetLineWidth(r.style.BoneWidth)
		if a.Derived || b.Derived {
			dc.SetDash(4, 4)
			r.setColor(dc, r.bone, minf(r.opacity(a), r.opacity(b)))
		} else {
			dc.SetDash()
			r.setColor(dc, r.bone, 1)
		}

		dc.DrawLine(a.X*w, a.Y*h, b.X*w, b.Y*h)
		dc.Stroke()
	}
	dc.SetDash()

	for _, lm := range fr.Landmarks {
		if !r.drawable(lm) {
			continue
		}

		x, y := lm.X*w, lm.Y*h

		if lm.Derived {
			r.setColor(dc, r.derived, r.opacity(lm))
			dc.SetLineWidth(r.style.BoneWidth)
			dc.DrawCircle(x, y, r.style.JointRadius)
			dc.Stroke()
			continue
		}

		r.setColor(dc, r.jointColor(lm.ID), 1)
		dc.DrawCircle(x, y, r.style.JointRadius)
		dc.Fill()
	}

	if r.style.ScoreBar && !fr.Empty() {
		r.setColor(dc, r.bone, 0.8)
		dc.DrawRectangle(0, 0, fr.Score*w, 3)
		dc.Fill()
	}

	return dc.Image()
}

// drawable reports whether a landmark should appear at all: derived joints
// always, observed joints only above the visibility floor.
func (r *Renderer) drawable(lm landmark.Landmark) bool {
	return lm.Derived || lm.Visibility >= r.style.MinVisibility
}

// opacity is 1 for observed joints. Derived joints use their recorded render
// opacity when the merger set one.
func (r *Renderer) opacity(lm landmark.Landmark) float64 {
	if !lm.Derived {
		return 1
	}
	if lm.RenderOpacity > 0 {
		return lm.RenderOpacity
	}
	return r.style.DerivedOpacity
}

func (r *Renderer) jointColor(id int) color.RGBA {
	switch {
	case id == landmark.Nose:
		return r.center
	case isLeft(id):
		return r.left
	}
	return r.right
}

func (r *Renderer) setColor(dc *gg.Context, c color.RGBA, alpha float64) {
	dc.SetRGBA(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, alpha)
}

// isLeft classifies the sided landmarks; body IDs alternate left-odd /
// right-even from the shoulders down, the face needs its own list.
func isLeft(id int) bool {
	switch id {
	case landmark.LeftEyeInner, landmark.LeftEye, landmark.LeftEyeOuter, landmark.LeftEar, landmark.MouthLeft:
		return true
	}
	return id >= landmark.LeftShoulder && id%2 == 1
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
