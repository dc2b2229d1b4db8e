package bulkstore

import (
	"context"
	"fmt"
	"io"

	"github.com/carbocation/pfx"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// s3Client dials the configured S3-compatible endpoint once and reuses the
// client for every subsequent s3:// path.
func (s *Store) s3Client() (*minio.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.s3 != nil {
		return s.s3, nil
	}

	if s.S3Endpoint == "" || s.S3AccessKey == "" || s.S3SecretKey == "" {
		return nil, fmt.Errorf("s3:// paths need POSEMISC_S3_ENDPOINT, POSEMISC_S3_ACCESS_KEY, and POSEMISC_S3_SECRET_KEY to be set")
	}

	client, err := minio.New(s.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s.S3AccessKey, s.S3SecretKey, ""),
		Secure: !s.S3Insecure,
	})
	if err != nil {
		return nil, pfx.Err(err)
	}
	s.s3 = client

	return client, nil
}

func (s *Store) openS3(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	bucket, key, err := splitBucketKey(path, "s3://")
	if err != nil {
		return nil, 0, err
	}

	client, err := s.s3Client()
	if err != nil {
		return nil, 0, err
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, pfx.Err(err)
	}

	// Stat also surfaces missing-object errors before the first Read.
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, pfx.Err(err)
	}

	return obj, st.Size, nil
}

// s3Writer streams into a multipart upload through a pipe. Close finishes the
// upload and reports its error.
type s3Writer struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3Writer) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}

	return <-w.done
}

func (s *Store) createS3(ctx context.Context, path string) (io.WriteCloser, error) {
	bucket, key, err := splitBucketKey(path, "s3://")
	if err != nil {
		return nil, err
	}

	client, err := s.s3Client()
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := client.PutObject(ctx, bucket, key, pr, -1, minio.PutObjectOptions{})
		pr.CloseWithError(err)
		done <- err
	}()

	return &s3Writer{pw: pw, done: done}, nil
}

func (s *Store) listS3(ctx context.Context, prefix string) ([]string, error) {
	bucket, key, err := splitBucketKey(prefix, "s3://")
	if err != nil {
		return nil, err
	}

	client, err := s.s3Client()
	if err != nil {
		return nil, err
	}

	var out []string
	for obj := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: key, Recursive: true}) {
		if obj.Err != nil {
			return nil, pfx.Err(obj.Err)
		}
		out = append(out, "s3://"+bucket+"/"+obj.Key)
	}

	return out, nil
}
