package render

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
)

// MinIOStore adapts minio.Client to the scheduler's file-based object
// operations.
type MinIOStore struct {
	client *minio.Client
}

// NewMinIOStore constructs an adapter.
func NewMinIOStore(client *minio.Client) *MinIOStore {
	return &MinIOStore{client: client}
}

// DownloadToFile fetches an object into a local scratch file.
func (s *MinIOStore) DownloadToFile(ctx context.Context, bucket, key, path string) error {
	if err := s.client.FGetObject(ctx, bucket, key, path, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	return nil
}

// UploadFile stores a local file as an object.
func (s *MinIOStore) UploadFile(ctx context.Context, bucket, key, path, contentType string) error {
	_, err := s.client.FPutObject(ctx, bucket, key, path, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
