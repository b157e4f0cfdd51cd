package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/semmidev/mdump/internal/config"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GCSStorage struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	prefix string
}

// NewGCS uses CredentialsFile when set and Application Default Credentials
// otherwise.
func NewGCS(ctx context.Context, cfg *config.UploadTarget) (*GCSStorage, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStorage{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (g *GCSStorage) object(remoteName string) string {
	if g.prefix == "" {
		return remoteName
	}
	return path.Join(g.prefix, remoteName)
}

func (g *GCSStorage) Upload(ctx context.Context, localPath string, remoteName string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	writer := g.bucket.Object(g.object(remoteName)).NewWriter(ctx)
	writer.ContentType = "application/gzip"

	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return fmt.Errorf("failed to upload to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS upload: %w", err)
	}

	return nil
}

func (g *GCSStorage) walk(ctx context.Context, visit func(name string, created time.Time)) error {
	query := &gcs.Query{}
	if g.prefix != "" {
		query.Prefix = g.prefix + "/"
	}

	it := g.bucket.Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to list GCS objects: %w", err)
		}

		name := strings.TrimPrefix(attrs.Name, query.Prefix)
		if name == "" {
			continue
		}
		visit(name, attrs.Created)
	}
}

func (g *GCSStorage) List(ctx context.Context) ([]string, error) {
	var files []string
	err := g.walk(ctx, func(name string, _ time.Time) {
		files = append(files, name)
	})
	return files, err
}

func (g *GCSStorage) Delete(ctx context.Context, remoteName string) error {
	if err := g.bucket.Object(g.object(remoteName)).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

func (g *GCSStorage) GetOldFiles(ctx context.Context, cutoffTime time.Time) ([]string, error) {
	var oldFiles []string
	err := g.walk(ctx, func(name string, created time.Time) {
		if created.Before(cutoffTime) {
			oldFiles = append(oldFiles, name)
		}
	})
	return oldFiles, err
}

func (g *GCSStorage) Close() error {
	return g.client.Close()
}
