package detect

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/danceqc/posemisc/landmark"
)

func TestModeValidation(t *testing.T) {
	if err := ModeUnset.Validate(); err == nil {
		t.Fatal("the unset mode must be rejected, never defaulted")
	}
	if err := ModeIndependent.Validate(); err != nil {
		t.Fatalf("independent mode should validate: %v", err)
	}
	if err := ModeTracking.Validate(); err != nil {
		t.Fatalf("tracking mode should validate: %v", err)
	}
	if ModeIndependent.String() == ModeTracking.String() {
		t.Fatal("modes must stringify distinctly")
	}
}

func TestFuncDetector(t *testing.T) {
	want, err := landmark.NewSet([]landmark.Landmark{{ID: landmark.Nose, X: 0.5, Y: 0.2, Visibility: 0.9}})
	if err != nil {
		t.Fatal(err)
	}

	var sawConfidence float64
	det := FuncDetector(func(img image.Image, minConfidence float64) (landmark.Set, error) {
		sawConfidence = minConfidence
		return want, nil
	})

	got, err := det.Detect(image.NewNRGBA(image.Rect(0, 0, 4, 4)), 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != landmark.Nose {
		t.Fatalf("unexpected detection: %+v", got)
	}
	if sawConfidence != 0.5 {
		t.Fatalf("detector saw confidence %f, expected 0.5", sawConfidence)
	}
}

func TestFrameCodecRoundTrip(t *testing.T) {
	req := workerRequest{Width: 2, Height: 1, Data: []byte{1, 2, 3, 4, 5, 6}, MinConfidence: 0.4}
	body, err := msgpack.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := writeFrame(&buf, body); err != nil {
		t.Fatal(err)
	}

	got, err := readFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}

	var back workerRequest
	if err := msgpack.Unmarshal(got, &back); err != nil {
		t.Fatal(err)
	}
	if back.Width != req.Width || back.Height != req.Height || back.MinConfidence != req.MinConfidence {
		t.Fatalf("round trip mangled the request: %+v", back)
	}
	if !bytes.Equal(back.Data, req.Data) {
		t.Fatalf("round trip mangled pixel data: %v", back.Data)
	}
}

func TestRGBBytesLayout(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 40, G: 50, B: 60, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{R: 70, G: 80, B: 90, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 100, G: 110, B: 120, A: 255})

	got := rgbBytes(img)
	expected := []byte{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120}
	if !bytes.Equal(got, expected) {
		t.Fatalf("rgb layout %v, expected row-major RGB %v", got, expected)
	}

	// A sub-image must flatten its own window, not the parent's.
	sub := img.SubImage(image.Rect(1, 1, 2, 2)).(*image.NRGBA)
	got = rgbBytes(sub)
	expected = []byte{100, 110, 120}
	if !bytes.Equal(got, expected) {
		t.Fatalf("sub-image rgb layout %v, expected %v", got, expected)
	}
}

func TestNoDetectionIsARecoverableSentinel(t *testing.T) {
	det := FuncDetector(func(img image.Image, minConfidence float64) (landmark.Set, error) {
		return nil, ErrNoDetection
	})

	_, err := det.Detect(image.NewNRGBA(image.Rect(0, 0, 4, 4)), 0.5)
	if !errors.Is(err, ErrNoDetection) {
		t.Fatalf("expected ErrNoDetection, got %v", err)
	}
}
