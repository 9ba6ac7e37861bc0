package manifest

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSSource reads the manifest from a Cloud Storage object.
type GCSSource struct {
	client *storage.Client
	bucket string
	object string
}

// NewGCSSource builds a Source for gs://bucket/object.
func NewGCSSource(client *storage.Client, bucket, object string) (*GCSSource, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" || object == "" {
		return nil, fmt.Errorf("gcs bucket and object are required")
	}
	return &GCSSource{client: client, bucket: bucket, object: object}, nil
}

// Fetch implements Source.
func (s *GCSSource) Fetch(ctx context.Context) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrManifestUnavailable, s.Location(), err)
	}
	defer func() {
		_ = reader.Close()
	}()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrManifestUnavailable, s.Location(), err)
	}
	return data, nil
}

// Location implements Source.
func (s *GCSSource) Location() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}
