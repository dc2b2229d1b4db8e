// Package bulkstore opens, writes, and lists blobs across local paths,
// gs:// objects, and s3:// objects (including R2's S3-compatible endpoint)
// behind one dispatching store, so the pipeline can stage videos in and
// publish results out without caring where they live.
package bulkstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/minio/minio-go/v7"

	"github.com/danceqc/posemisc"
)

// Store dispatches on path scheme. Remote clients are dialed lazily on first
// use, so purely local runs never touch the network.
type Store struct {
	mu  sync.Mutex
	gcs *storage.Client
	s3  *minio.Client

	// S3-compatible endpoint settings, usually from environment.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Insecure  bool
}

// New builds a store with S3 settings pulled from POSEMISC_S3_ENDPOINT,
// POSEMISC_S3_ACCESS_KEY, POSEMISC_S3_SECRET_KEY, and POSEMISC_S3_INSECURE.
func New() *Store {
	return &Store{
		S3Endpoint:  os.Getenv("POSEMISC_S3_ENDPOINT"),
		S3AccessKey: os.Getenv("POSEMISC_S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("POSEMISC_S3_SECRET_KEY"),
		S3Insecure:  os.Getenv("POSEMISC_S3_INSECURE") == "true",
	}
}

// IsRemote reports whether the path names a cloud object rather than a local
// file.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://")
}

// splitBucketKey splits "scheme://bucket/key/parts" into bucket and key.
func splitBucketKey(path, scheme string) (bucket, key string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(path, scheme), "/", 2)
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] == "" {
		return "", "", fmt.Errorf("tried to split %q into a bucket and a key, but got %d parts: %v", path, len(pathParts), pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

// Open returns a reader over the blob and its size when cheaply knowable
// (-1 otherwise).
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	switch {
	case strings.HasPrefix(path, "gs://"):
		return s.openGS(ctx, path)
	case strings.HasPrefix(path, "s3://"):
		return s.openS3(ctx, path)
	}

	f, err := os.Open(posemisc.ExpandHome(path))
	if err != nil {
		return nil, 0, pfx.Err(err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, pfx.Err(err)
	}

	return f, st.Size(), nil
}

// Create returns a writer that replaces the blob at path. Close completes the
// upload for remote paths; an unclosed writer leaves nothing usable behind.
func (s *Store) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	switch {
	case strings.HasPrefix(path, "gs://"):
		return s.createGS(ctx, path)
	case strings.HasPrefix(path, "s3://"):
		return s.createS3(ctx, path)
	}

	path = posemisc.ExpandHome(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, pfx.Err(err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return f, nil
}

// List returns the paths of all blobs that start with prefix, in the same
// scheme the prefix used.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	switch {
	case strings.HasPrefix(prefix, "gs://"):
		return s.listGS(ctx, prefix)
	case strings.HasPrefix(prefix, "s3://"):
		return s.listS3(ctx, prefix)
	}

	prefix = posemisc.ExpandHome(prefix)
	root := prefix
	if st, err := os.Stat(prefix); err != nil || !st.IsDir() {
		root = filepath.Dir(prefix)
	}

	var out []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}

// Stage makes the blob available as a local file for tools that need real
// paths (ffmpeg). Local paths come back unchanged; remote blobs are copied
// into dir under their base name.
func (s *Store) Stage(ctx context.Context, path, dir string) (string, error) {
	if !IsRemote(path) {
		return path, nil
	}

	rc, _, err := s.Open(ctx, path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	local := filepath.Join(dir, filepath.Base(path))
	f, err := os.Create(local)
	if err != nil {
		return "", pfx.Err(err)
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(local)
		return "", pfx.Err(err)
	}
	if err := f.Close(); err != nil {
		return "", pfx.Err(err)
	}

	return local, nil
}
