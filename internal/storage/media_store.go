package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"

	"tour-service/internal/models"
)

// MediaStore keeps panorama and thumbnail files in a MinIO bucket. Object
// keys are laid out as <kind>/<id>/<collection>/<uuid><ext>.
type MediaStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewMediaStore(client *minio.Client, bucket string, urlExpiry time.Duration) *MediaStore {
	if urlExpiry <= 0 {
		urlExpiry = time.Hour
	}
	return &MediaStore{client: client, bucket: bucket, expiry: urlExpiry}
}

// MediaKey builds the object key for a new file in ref's collection.
func MediaKey(ref models.EntityRef, collection, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(entityPrefix(ref), collection, uuid.New().String()+ext)
}

func entityPrefix(ref models.EntityRef) string {
	return path.Join(string(ref.Kind), ref.ID.String())
}

// AttachFile uploads r into ref's collection and returns the object key.
func (m *MediaStore) AttachFile(ctx context.Context, ref models.EntityRef, collection, filename string, r io.Reader, size int64, contentType string) (string, error) {
	key := MediaKey(ref, collection, filename)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"entity-kind":   string(ref.Kind),
			"entity-id":     ref.ID.String(),
			"original-name": filepath.Base(filename),
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to upload %s to MinIO", filename)
	}
	return key, nil
}

// URL returns a presigned GET URL for key.
func (m *MediaStore) URL(ctx context.Context, key string) (string, error) {
	reqParams := make(url.Values)
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.expiry, reqParams)
	if err != nil {
		return "", errors.Wrapf(err, "failed to presign %s", key)
	}
	return u.String(), nil
}

// RemoveAll deletes every object attached to ref.
func (m *MediaStore) RemoveAll(ctx context.Context, ref models.EntityRef) error {
	prefix := entityPrefix(ref) + "/"
	var failed []string
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return errors.Wrap(obj.Err, "failed to list media")
		}
		if err := m.client.RemoveObject(ctx, m.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			failed = append(failed, obj.Key)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to remove %d objects under %s", len(failed), prefix)
	}
	return nil
}
