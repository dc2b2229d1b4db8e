package posemisc

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetermineDelimiter(t *testing.T) {
	for _, v := range []struct {
		input    string
		expected rune
	}{
		{"frame_id,landmark_id,x,y\n0,0,0.5,0.2\n0,11,0.4,0.4\n", ','},
		{"frame_id\tlandmark_id\tx\ty\n0\t0\t0.5\t0.2\n0\t11\t0.4\t0.4\n", '\t'},
	} {
		if got := DetermineDelimiter(strings.NewReader(v.input)); got != v.expected {
			t.Fatalf("delimiter %q, expected %q for input %q", got, v.expected, v.input)
		}
	}
}

func TestDetectDataType(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte("frame_id,landmark_id\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	dt, err := DetectDataType(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if dt != DataTypeGzip {
		t.Fatalf("data type %v, expected gzip", dt)
	}

	dt, err = DetectDataType(strings.NewReader("frame_id,landmark_id,x,y,z\n"))
	if err != nil {
		t.Fatal(err)
	}
	if dt != DataTypeNoCompression {
		t.Fatalf("data type %v, expected no compression", dt)
	}
}

func TestMaybeDecompressZipReadsFirstEntry(t *testing.T) {
	const content = "frame_id,landmark_id,x,y\n0,0,0.5,0.2\n"

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("poses.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "poses.csv.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rc, err := MaybeDecompressReadCloserFromFile(f)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != content {
		t.Fatalf("decompressed %q, expected %q", got, content)
	}
}
