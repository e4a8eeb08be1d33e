package media

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/sakif/techblogs/internal/apperror"
)

var _ Sink = (*GCS)(nil)

// GCS stores files as objects in a Cloud Storage bucket, under an optional
// prefix. Served bytes still go through the API, so the bucket can stay
// private.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS connects to bucket. An empty credentialsFile uses Application
// Default Credentials.
func NewGCS(ctx context.Context, bucket, prefix, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("media: creating storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, prefix: prefix}, nil
}

func (g *GCS) object(name string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(g.prefix + name)
}

func (g *GCS) Save(ctx context.Context, originalName, contentType string, r io.Reader) (string, error) {
	name := GenerateName(originalName)

	w := g.object(name).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("media: uploading %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("media: finalizing %s: %w", name, err)
	}
	return name, nil
}

func (g *GCS) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	if err := checkName(name); err != nil {
		return nil, "", err
	}

	r, err := g.object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, "", apperror.NotFound("file", name)
		}
		return nil, "", fmt.Errorf("media: reading %s: %w", name, err)
	}

	contentType := r.Attrs.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}
	return r, contentType, nil
}

// Close releases the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}
