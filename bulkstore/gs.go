package bulkstore

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"
)

// gsClient dials Google Storage once and reuses the client for every
// subsequent gs:// path.
func (s *Store) gsClient(ctx context.Context) (*storage.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gcs != nil {
		return s.gcs, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, pfx.Err(err)
	}
	s.gcs = client

	return client, nil
}

func (s *Store) openGS(ctx context.Context, path string) (io.ReadCloser, int64, error) {
	bucket, key, err := splitBucketKey(path, "gs://")
	if err != nil {
		return nil, 0, err
	}

	client, err := s.gsClient(ctx)
	if err != nil {
		return nil, 0, err
	}

	rdr, err := client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, 0, pfx.Err(err)
	}

	return rdr, rdr.Attrs.Size, nil
}

func (s *Store) createGS(ctx context.Context, path string) (io.WriteCloser, error) {
	bucket, key, err := splitBucketKey(path, "gs://")
	if err != nil {
		return nil, err
	}

	client, err := s.gsClient(ctx)
	if err != nil {
		return nil, err
	}

	return client.Bucket(bucket).Object(key).NewWriter(ctx), nil
}

func (s *Store) listGS(ctx context.Context, prefix string) ([]string, error) {
	bucket, key, err := splitBucketKey(prefix, "gs://")
	if err != nil {
		return nil, err
	}

	client, err := s.gsClient(ctx)
	if err != nil {
		return nil, err
	}

	var out []string
	it := client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: key})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, pfx.Err(err)
		}
		out = append(out, "gs://"+bucket+"/"+attrs.Name)
	}

	return out, nil
}
