package render

import (
	"bytes"
	"image"
	"testing"

	"github.com/danceqc/posemisc/landmark"
)

func blackFrame(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func diffCount(a, b image.Image) int {
	n := 0
	bounds := a.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			ar, ag, ab, _ := a.At(x, y).RGBA()
			br, bg, bb, _ := b.At(x, y).RGBA()
			if ar != br || ag != bg || ab != bb {
				n++
			}
		}
	}
	return n
}

func poseFrame(t *testing.T, lms ...landmark.Landmark) landmark.FrameResult {
	t.Helper()
	set, err := landmark.NewSet(lms)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return landmark.FrameResult{FrameID: 0, Landmarks: set, Strategy: "identity", Score: 0.9}
}

func TestOverlayDrawsBonesAndJoints(t *testing.T) {
	r, err := New(DefaultStyle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame := blackFrame(60, 40)
	fr := poseFrame(t,
		landmark.Landmark{ID: landmark.LeftShoulder, X: 0.25, Y: 0.25, Visibility: 0.9},
		landmark.Landmark{ID: landmark.RightShoulder, X: 0.75, Y: 0.25, Visibility: 0.9},
	)

	out := r.Overlay(frame, fr)

	if n := diffCount(frame, out); n == 0 {
		t.Fatal("overlay drew nothing")
	}

	// The shoulder bone runs horizontally through (30, 10).
	cr, cg, cb, _ := out.At(30, 10).RGBA()
	if cr == 0 && cg == 0 && cb == 0 {
		t.Error("expected the shoulder bone to pass through the frame midline")
	}

	// The input frame is untouched.
	ir, ig, ib, _ := frame.At(30, 10).RGBA()
	if ir != 0 || ig != 0 || ib != 0 {
		t.Error("overlay modified its input frame")
	}
}

func TestOverlayDerivedJointsAreHollow(t *testing.T) {
	r, err := New(DefaultStyle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame := blackFrame(60, 40)
	fr := poseFrame(t, landmark.Landmark{
		ID: landmark.Nose, X: 0.5, Y: 0.5, Visibility: 0.8, Derived: true, RenderOpacity: 0.6,
	})

	out := r.Overlay(frame, fr)

	if n := diffCount(frame, out); n == 0 {
		t.Fatal("overlay drew nothing")
	}

	// A hollow ring leaves its center pixel untouched.
	cr, cg, cb, _ := out.At(30, 20).RGBA()
	if cr != 0 || cg != 0 || cb != 0 {
		t.Error("derived joints must be drawn hollow, center pixel was filled")
	}
}

func TestOverlayHidesLowVisibilityJoints(t *testing.T) {
	r, err := New(DefaultStyle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame := blackFrame(60, 40)
	fr := poseFrame(t, landmark.Landmark{ID: landmark.Nose, X: 0.5, Y: 0.5, Visibility: 0.05})

	out := r.Overlay(frame, fr)
	if n := diffCount(frame, out); n != 0 {
		t.Fatalf("expected nothing drawn for sub-threshold visibility, %d pixels changed", n)
	}
}

func TestNewRejectsBadStyle(t *testing.T) {
	bad := DefaultStyle()
	bad.LeftHex = "salmon"
	if _, err := New(bad); err == nil {
		t.Error("expected an error for a non-hex color")
	}

	flat := DefaultStyle()
	flat.BoneWidth = 0
	if _, err := New(flat); err == nil {
		t.Error("expected an error for a zero bone width")
	}
}

func TestMakeGIFSharesPaletteAcrossFrames(t *testing.T) {
	frames := []image.Image{
		blackFrame(8, 8),
		blackFrame(8, 8),
		blackFrame(8, 8),
	}

	g, err := MakeGIF(frames, 4, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Image) != 3 || len(g.Delay) != 3 {
		t.Fatalf("expected 3 frames with delays, got %d / %d", len(g.Image), len(g.Delay))
	}
	for i, d := range g.Delay {
		if d != 4 {
			t.Errorf("frame %d: delay %d, expected 4", i, d)
		}
	}
	for i := 1; i < len(g.Image); i++ {
		if len(g.Image[i].Palette) != len(g.Image[0].Palette) {
			t.Errorf("frame %d uses a different palette size than frame 0", i)
		}
	}
}

func TestScoreChartWritesPNG(t *testing.T) {
	seq := landmark.Sequence{
		poseFrame(t, landmark.Landmark{ID: landmark.Nose, X: 0.5, Y: 0.5, Visibility: 0.9}),
		poseFrame(t, landmark.Landmark{ID: landmark.Nose, X: 0.5, Y: 0.5, Visibility: 0.8}),
		poseFrame(t, landmark.Landmark{ID: landmark.Nose, X: 0.5, Y: 0.5, Visibility: 0.7}),
	}
	seq[1].FrameID = 1
	seq[2].FrameID = 4

	var buf bytes.Buffer
	if err := ScoreChart(&buf, seq); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	magic := []byte{0x89, 'P', 'N', 'G'}
	if buf.Len() < len(magic) || !bytes.Equal(buf.Bytes()[:4], magic) {
		t.Fatal("expected PNG output")
	}

	if err := ScoreChart(&buf, seq[:1]); err == nil {
		t.Error("expected an error for a single-frame chart")
	}
}
