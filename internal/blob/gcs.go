package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// GCSStore keeps receipts in a Google Cloud Storage bucket. Credentials come
// from Application Default Credentials.
type GCSStore struct {
	client *storage.Client
	bucket string
}

func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("missing GCS bucket")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		// cancelling before Close aborts the upload
		cancel()
		return fmt.Errorf("copy receipt to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// SignedURL returns a V4 signed GET URL.
func (s *GCSStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	bkt := s.client.Bucket(s.bucket)
	if _, err := bkt.Object(key).Attrs(ctx); errors.Is(err, storage.ErrObjectNotExist) {
		return "", ErrNotFound
	} else if err != nil {
		return "", fmt.Errorf("read object attrs: %w", err)
	}
	u, err := bkt.SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("generate signed URL: %w", err)
	}
	return u, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

var _ Store = (*GCSStore)(nil)
