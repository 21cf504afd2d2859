package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// ObjectMeta is the technical metadata carried alongside object bytes.
type ObjectMeta struct {
	ContentType  string
	UserMetadata map[string]string
}

// MinIOStore adapts minio.Client to the enricher's objectStore interface.
type MinIOStore struct {
	client *minio.Client
}

// NewMinIOStore constructs an adapter.
func NewMinIOStore(client *minio.Client) *MinIOStore {
	return &MinIOStore{client: client}
}

// GetObject reads the full object content plus its metadata.
func (s *MinIOStore) GetObject(ctx context.Context, bucket, key string) ([]byte, ObjectMeta, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectMeta{}, fmt.Errorf("fetch object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, ObjectMeta{}, fmt.Errorf("read object: %w", err)
	}

	stat, err := obj.Stat()
	if err != nil {
		return nil, ObjectMeta{}, fmt.Errorf("stat object: %w", err)
	}

	return data, ObjectMeta{
		ContentType:  stat.ContentType,
		UserMetadata: stat.UserMetadata,
	}, nil
}

// ListKeys returns every object key in the bucket.
func (s *MinIOStore) ListKeys(ctx context.Context, bucket string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Exists reports whether the object is present in the bucket.
func (s *MinIOStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

// PutObject writes content with the given media type and metadata.
func (s *MinIOStore) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string, userMeta map[string]string) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: userMeta,
	})
	if err != nil {
		return fmt.Errorf("store object: %w", err)
	}
	return nil
}
