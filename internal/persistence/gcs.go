package persistence

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"cloud.google.com/go/storage"
)

// GCSFetcher mirrors a snapshot object from Cloud Storage onto local disk
// so the snapshot reader can serve it.
type GCSFetcher struct {
	client *storage.Client
	bucket string
	object string
	mu     sync.Mutex
	open   func(ctx context.Context) (io.ReadCloser, error)
}

func NewGCSFetcher(ctx context.Context, bucket, object string) (*GCSFetcher, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	g := &GCSFetcher{
		client: client,
		bucket: bucket,
		object: object,
	}
	g.open = func(ctx context.Context) (io.ReadCloser, error) {
		return g.client.Bucket(g.bucket).Object(g.object).NewReader(ctx)
	}
	return g, nil
}

// Fetch downloads the object to path. A missing object is not an error;
// fetched reports whether anything was written.
func (g *GCSFetcher) Fetch(ctx context.Context, path string) (fetched bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rc, err := g.open(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return false, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return false, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return false, err
	}
	return true, nil
}

func (g *GCSFetcher) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
