package vidio

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestImageDirReadsInOrder(t *testing.T) {
	dir := t.TempDir()

	colors := []color.NRGBA{
		{R: 10, A: 255},
		{R: 20, A: 255},
		{R: 30, A: 255},
	}
	writePNG(t, filepath.Join(dir, "frame_00.png"), 8, 6, colors[0])
	writePNG(t, filepath.Join(dir, "frame_01.png"), 8, 6, colors[1])
	writePNG(t, filepath.Join(dir, "frame_02.png"), 8, 6, colors[2])

	// Stray non-image files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := Open(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	if info := r.Info(); info.Width != 8 || info.Height != 6 || info.FPS != 0 {
		t.Fatalf("unexpected info %+v", info)
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d, expected 3", r.Len())
	}

	for want := 0; want < 3; want++ {
		img, idx, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", want, err)
		}
		if idx != want {
			t.Fatalf("frame index %d, expected %d", idx, want)
		}
		got := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
		if got.R != colors[want].R {
			t.Fatalf("frame %d: pixel R=%d, expected %d", want, got.R, colors[want].R)
		}
	}

	if _, _, err := r.ReadFrame(); err != io.EOF {
		t.Fatalf("expected io.EOF at end, got %v", err)
	}
}

func TestImageDirSkipsUndecodableFrames(t *testing.T) {
	dir := t.TempDir()

	writePNG(t, filepath.Join(dir, "frame_00.png"), 4, 4, color.NRGBA{R: 1, A: 255})
	if err := os.WriteFile(filepath.Join(dir, "frame_01.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	writePNG(t, filepath.Join(dir, "frame_02.png"), 4, 4, color.NRGBA{R: 3, A: 255})

	r, err := OpenImageDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	if _, idx, err := r.ReadFrame(); err != nil || idx != 0 {
		t.Fatalf("frame 0: got idx=%d err=%v", idx, err)
	}

	_, idx, err := r.ReadFrame()
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected a decode failure, got %v", err)
	}
	if idx != 1 {
		t.Fatalf("decode failure at index %d, expected 1", idx)
	}

	// The bad frame is a gap, not the end of the stream.
	if _, idx, err := r.ReadFrame(); err != nil || idx != 2 {
		t.Fatalf("frame 2: got idx=%d err=%v", idx, err)
	}

	if _, _, err := r.ReadFrame(); err != io.EOF {
		t.Fatalf("expected io.EOF at end, got %v", err)
	}
}

func TestImageDirAllCorruptReportsNoFrames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "frame_00.png"), []byte("junk"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, err := OpenImageDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	if _, _, err := r.ReadFrame(); !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected a decode failure, got %v", err)
	}
	if _, _, err := r.ReadFrame(); !errors.Is(err, ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames after exhausting a fully corrupt source, got %v", err)
	}
}

func TestEmptyDirIsFatal(t *testing.T) {
	if _, err := OpenImageDir(t.TempDir()); !errors.Is(err, ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames for an empty directory, got %v", err)
	}
}
