// Package storage defines where scraped documents are written. Backends live
// in the local, gcs and memory subpackages.
package storage

import (
	"context"
	"io"
)

// BlobStore writes a named object and returns a URI describing where it
// landed. Writing an existing path replaces it.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}
