package assets

import (
	"context"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
)

// MinioStore keeps assets in a MinIO bucket. URLs are built from publicBase,
// which must already include the bucket path.
type MinioStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

func NewMinioStore(client *minio.Client, bucket, publicBase string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket, publicBase: strings.TrimRight(publicBase, "/")}
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", errors.Wrapf(err, "upload %s", key)
	}
	return s.URL(key), nil
}

// URL is the public address of key.
func (s *MinioStore) URL(key string) string {
	return s.publicBase + "/" + strings.TrimLeft(key, "/")
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	return errors.Wrapf(err, "remove %s", key)
}
