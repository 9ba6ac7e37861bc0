// Package persist writes extracted documents and their metadata records.
package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cat-wiki/docwatcher/internal/clock"
	"github.com/cat-wiki/docwatcher/internal/extract"
	"github.com/cat-wiki/docwatcher/internal/storage"
)

// ErrWrite wraps every storage failure. The orchestrator does not retry it.
var ErrWrite = errors.New("persist write failed")

// TimestampLayout is the lastChecked format: RFC 3339, UTC, milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const (
	textContentType = "text/plain; charset=utf-8"
	jsonContentType = "application/json"
)

// Metadata is the sibling record written next to each document.
type Metadata struct {
	URL           string `json:"url"`
	LastChecked   string `json:"lastChecked"`
	Selector      string `json:"selector"`
	ContentLength int    `json:"contentLength"`
}

// NewMetadata derives the record for content scraped from rawURL at now.
func NewMetadata(rawURL string, content extract.Content, now time.Time) Metadata {
	return Metadata{
		URL:           rawURL,
		LastChecked:   now.UTC().Format(TimestampLayout),
		Selector:      content.Selector,
		ContentLength: utf8.RuneCountInString(content.Text),
	}
}

// Result describes one persisted document.
type Result struct {
	TextURI     string
	MetadataURI string
	Metadata    Metadata
}

// Writer stores documents through a BlobStore. Re-persisting a URL replaces
// both of its files.
type Writer struct {
	store  storage.BlobStore
	clock  clock.Clock
	logger *zap.Logger

	mu     sync.Mutex
	owners map[string]string
}

// NewWriter builds a Writer.
func NewWriter(store storage.BlobStore, clk clock.Clock, logger *zap.Logger) (*Writer, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	if clk == nil {
		return nil, errors.New("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		store:  store,
		clock:  clk,
		logger: logger.Named("persist"),
		owners: make(map[string]string),
	}, nil
}

// Persist writes the text file, then the metadata file.
func (w *Writer) Persist(ctx context.Context, rawURL string, content extract.Content) (Result, error) {
	base := BaseName(rawURL)
	w.checkCollision(base, rawURL)

	meta := NewMetadata(rawURL, content, w.clock.Now())
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("%w: marshal metadata: %v", ErrWrite, err)
	}

	textURI, err := w.store.PutObject(ctx, base+TextExt, textContentType, bytes.NewReader([]byte(content.Text)))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrWrite, base+TextExt, err)
	}
	metaURI, err := w.store.PutObject(ctx, base+MetadataExt, jsonContentType, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrWrite, base+MetadataExt, err)
	}

	w.logger.Debug("document persisted",
		zap.String("url", rawURL),
		zap.String("path", textURI),
		zap.Int("content_length", meta.ContentLength),
	)
	return Result{TextURI: textURI, MetadataURI: metaURI, Metadata: meta}, nil
}

func (w *Writer) checkCollision(base, rawURL string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.owners[base]; ok && prev != rawURL {
		w.logger.Warn("file name collision, overwriting",
			zap.String("name", base),
			zap.String("previous_url", prev),
			zap.String("url", rawURL),
		)
	}
	w.owners[base] = rawURL
}
