// Package storage uploads generated slip artifacts to Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSUploader stores slip documents in a public bucket.
type GCSUploader struct {
	client *gcs.Client
	bucket string
}

// NewGCSUploader builds the uploader. Explicit JSON credentials win over
// application default credentials when provided.
func NewGCSUploader(ctx context.Context, bucket, credentialsJSON string) (*GCSUploader, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs client: %w", err)
	}
	return &GCSUploader{client: client, bucket: bucket}, nil
}

// Upload writes the artifact and returns its public URL.
func (u *GCSUploader) Upload(ctx context.Context, data []byte, folder, name string) (string, error) {
	objectName := name
	if folder != "" {
		objectName = folder + "/" + name
	}

	wc := u.client.Bucket(u.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = http.DetectContentType(data)
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("storage: upload %s: %w", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("storage: close %s: %w", objectName, err)
	}
	return objectURL(u.bucket, objectName), nil
}

// objectURL builds the public URL for an object. Slip numbers carry spaces
// and hash marks, so every path segment is escaped to keep the stored URL
// parseable.
func objectURL(bucket, objectName string) string {
	segments := strings.Split(objectName, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", url.PathEscape(bucket), strings.Join(segments, "/"))
}

// Remove deletes the artifact previously written under folder/name. It
// satisfies the challan service's cleanup hook for failed creations.
func (u *GCSUploader) Remove(ctx context.Context, folder, name string) error {
	objectName := name
	if folder != "" {
		objectName = folder + "/" + name
	}
	return u.Delete(ctx, objectName)
}

// Delete removes an artifact, tolerating objects that are already gone.
func (u *GCSUploader) Delete(ctx context.Context, objectName string) error {
	err := u.client.Bucket(u.bucket).Object(objectName).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("storage: delete %s: %w", objectName, err)
	}
	return nil
}

// Close releases the underlying client.
func (u *GCSUploader) Close() error {
	return u.client.Close()
}
