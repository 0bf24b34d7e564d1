// Package archive keeps a copy of every uploaded statement file in a GCS
// bucket. Archival is best-effort: the ingestion workflow logs failures
// and carries on, since the extraction already holds the bytes in memory.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// Archiver stores raw statement bytes under a generated object name and
// returns the resulting URI.
type Archiver interface {
	Put(ctx context.Context, fileName, contentType string, data []byte) (string, error)
}

// GCS implements Archiver against a single bucket. It assumes Application
// Default Credentials are configured.
type GCS struct {
	bucket string
}

// NewGCS creates an archiver writing into the given bucket.
func NewGCS(bucket string) *GCS {
	return &GCS{bucket: bucket}
}

// ObjectName builds a date-partitioned, collision-free object name for an
// uploaded file.
func ObjectName(fileName string) string {
	return fmt.Sprintf("statements/%s/%s-%s", time.Now().UTC().Format("2006/01/02"), uuid.New().String(), fileName)
}

// Put uploads the statement bytes and returns the gs:// URI.
func (g *GCS) Put(ctx context.Context, fileName, contentType string, data []byte) (string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("archive: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	objectName := ObjectName(fileName)
	w := client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("archive: write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("archive: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", g.bucket, objectName), nil
}

// List returns the object names under the given prefix, for inspection
// from the admin CLI.
func (g *GCS) List(ctx context.Context, prefix string) ([]string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("archive: create storage client: %w", err)
	}
	defer client.Close()

	var names []string
	it := client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("archive: list objects: %w", err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}
