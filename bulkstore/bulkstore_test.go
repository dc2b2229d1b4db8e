package bulkstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestIsRemote(t *testing.T) {
	cases := map[string]bool{
		"gs://bucket/key":       true,
		"s3://bucket/key":       true,
		"/data/video.mp4":       false,
		"relative/video.mp4":    false,
		"gsfile.mp4":            false,
		"s3ish/gs/bucket/thing": false,
	}

	for path, want := range cases {
		if got := IsRemote(path); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestSplitBucketKey(t *testing.T) {
	bucket, key, err := splitBucketKey("gs://mybucket/deep/path/file.csv", "gs://")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bucket != "mybucket" || key != "deep/path/file.csv" {
		t.Fatalf("got bucket %q key %q", bucket, key)
	}

	for _, bad := range []string{"gs://bucketonly", "gs://bucket/", "gs:///key"} {
		if _, _, err := splitBucketKey(bad, "gs://"); err == nil {
			t.Errorf("expected an error splitting %q", bad)
		}
	}
}

func TestLocalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.txt")
	store := &Store{}
	ctx := context.Background()

	w, err := store.Create(ctx, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := w.Write([]byte("hello bulkstore")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r, size, err := store.Open(ctx, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer r.Close()

	if size != int64(len("hello bulkstore")) {
		t.Errorf("size = %d, want %d", size, len("hello bulkstore"))
	}

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "hello bulkstore" {
		t.Errorf("read back %q", got)
	}
}

func TestLocalList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"run1_frames.csv", "run1_overlay.gif", "run2_frames.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	store := &Store{}

	// Directory prefix lists everything beneath it.
	all, err := store.List(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("listed %d paths, want 3: %v", len(all), all)
	}

	// Partial prefix narrows to matching names.
	run1, err := store.List(context.Background(), filepath.Join(dir, "run1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sort.Strings(run1)
	if len(run1) != 2 || !strings.HasSuffix(run1[0], "run1_frames.csv") || !strings.HasSuffix(run1[1], "run1_overlay.gif") {
		t.Fatalf("listed %v", run1)
	}
}

func TestStageLeavesLocalPathsAlone(t *testing.T) {
	store := &Store{}
	got, err := store.Stage(context.Background(), "/data/video.mp4", t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/data/video.mp4" {
		t.Errorf("Stage rewrote the path to %q", got)
	}
}

func TestS3NeedsConfiguration(t *testing.T) {
	store := &Store{}
	_, _, err := store.Open(context.Background(), "s3://bucket/key")
	if err == nil {
		t.Fatal("expected an error opening s3:// without endpoint settings")
	}
	if !strings.Contains(err.Error(), "POSEMISC_S3_ENDPOINT") {
		t.Errorf("error %q does not point at the missing settings", err)
	}
}

func TestOpenMissingLocalFile(t *testing.T) {
	store := &Store{}
	_, _, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
