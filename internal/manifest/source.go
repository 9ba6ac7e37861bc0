package manifest

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Source fetches the raw manifest blob. Implementations make a single attempt
// and wrap every failure in ErrManifestUnavailable.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	// Location describes where the manifest lives, for logs.
	Location() string
}

// Load fetches the manifest from src and parses it. Invalid and duplicate
// entries are logged as warnings.
func Load(ctx context.Context, src Source, format Format, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	raw, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	urls, err := Parse(raw, format, ParseOptions{
		OnInvalid: func(entry any) {
			logger.Warn("invalid url skipped", zap.Any("entry", entry))
		},
		OnDuplicate: func(u string) {
			logger.Warn("duplicate url skipped", zap.String("url", u))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", src.Location(), err)
	}
	logger.Info("manifest loaded",
		zap.String("location", src.Location()),
		zap.String("format", string(format)),
		zap.Int("urls", len(urls)),
	)
	return urls, nil
}

// FileSource reads the manifest from the local filesystem.
type FileSource struct {
	path string
}

// NewFileSource returns a Source reading path.
func NewFileSource(path string) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("manifest file path is required")
	}
	return &FileSource{path: path}, nil
}

// Fetch implements Source.
func (s *FileSource) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrManifestUnavailable, s.path, err)
	}
	return data, nil
}

// Location implements Source.
func (s *FileSource) Location() string {
	return "file://" + s.path
}
