// Package archive keeps a copy of every stored gamelog in object storage.
package archive

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Archiver stores the cleaned content of a gamelog under name and returns
// the URI it can be fetched from.
type Archiver interface {
	Archive(ctx context.Context, name string, data []byte) (string, error)
}

// Nop archives nothing.
type Nop struct{}

func (Nop) Archive(context.Context, string, []byte) (string, error) {
	return "", nil
}

// GCS archives to a Cloud Storage bucket.
type GCS struct {
	client     *storage.Client
	bucket     *storage.BucketHandle
	bucketName string
}

// NewGCS creates a client for the bucket. A non-empty endpoint points the
// client at an emulator and disables authentication.
func NewGCS(ctx context.Context, bucketName, endpoint string) (*GCS, error) {
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{
		client:     client,
		bucket:     client.Bucket(bucketName),
		bucketName: bucketName,
	}, nil
}

// ObjectPath is where a gamelog with the given hash is stored.
func ObjectPath(hash string) string {
	return fmt.Sprintf("gamelogs/%s.html", hash)
}

func (g *GCS) Archive(ctx context.Context, name string, data []byte) (string, error) {
	objectPath := ObjectPath(name)
	writer := g.bucket.Object(objectPath).NewWriter(ctx)
	writer.ContentType = "text/html; charset=utf-8"
	writer.Metadata = map[string]string{
		"hash": name,
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", g.bucketName, objectPath), nil
}

// Close releases the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// New returns a GCS archiver when bucket is set and Nop otherwise.
func New(ctx context.Context, bucket, endpoint string) (Archiver, func() error, error) {
	if bucket == "" {
		return Nop{}, func() error { return nil }, nil
	}
	g, err := NewGCS(ctx, bucket, endpoint)
	if err != nil {
		return nil, nil, err
	}
	return g, g.Close, nil
}
