package persist

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cat-wiki/docwatcher/internal/extract"
	"github.com/cat-wiki/docwatcher/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestWriterPersistsTextAndMetadata(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	now := time.Date(2024, 3, 9, 14, 5, 6, 789_000_000, time.FixedZone("CET", 3600))
	w, err := NewWriter(store, fixedClock{t: now}, zap.NewNop())
	require.NoError(t, err)

	res, err := w.Persist(context.Background(), "https://example.com/terms", extract.Content{
		Text:     "Terms\nCafé rules",
		Selector: "main",
	})
	require.NoError(t, err)
	assert.Equal(t, "memory://example-com_terms.txt", res.TextURI)
	assert.Equal(t, "memory://example-com_terms.metadata.json", res.MetadataURI)

	text, ok := store.Get("example-com_terms.txt")
	require.True(t, ok)
	assert.Equal(t, "Terms\nCafé rules", string(text))

	raw, ok := store.Get("example-com_terms.metadata.json")
	require.True(t, ok)
	assert.JSONEq(t, `{
		"url": "https://example.com/terms",
		"lastChecked": "2024-03-09T13:05:06.789Z",
		"selector": "main",
		"contentLength": 16
	}`, string(raw))
	assert.Contains(t, string(raw), "\n  \"url\"", "metadata is indented two spaces")

	var meta Metadata
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, res.Metadata, meta)
}

func TestWriterOverwrites(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	w, err := NewWriter(store, fixedClock{t: time.Unix(0, 0)}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = w.Persist(ctx, "https://a.com", extract.Content{Text: "old text", Selector: "body"})
	require.NoError(t, err)
	_, err = w.Persist(ctx, "https://a.com", extract.Content{Text: "new", Selector: "article"})
	require.NoError(t, err)

	text, _ := store.Get("a-com.txt")
	assert.Equal(t, "new", string(text))
	raw, _ := store.Get("a-com.metadata.json")
	var meta Metadata
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "article", meta.Selector)
	assert.Equal(t, 3, meta.ContentLength)
	assert.Equal(t, []string{"a-com.metadata.json", "a-com.txt"}, store.Paths())
}

func TestWriterWarnsOnCollision(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	w, err := NewWriter(memory.NewBlobStore(), fixedClock{t: time.Now()}, zap.New(core))
	require.NoError(t, err)

	ctx := context.Background()
	content := extract.Content{Text: "x", Selector: "main"}
	_, err = w.Persist(ctx, "https://a.com/x?y", content)
	require.NoError(t, err)
	_, err = w.Persist(ctx, "https://a.com/x?y", content)
	require.NoError(t, err)
	assert.Zero(t, logs.Len(), "same URL is not a collision")

	_, err = w.Persist(ctx, "https://a.com/x*y", content)
	require.NoError(t, err)
	entries := logs.FilterMessage("file name collision, overwriting").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "https://a.com/x?y", entries[0].ContextMap()["previous_url"])
}

func TestWriterWrapsStoreErrors(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	diskFull := errors.New("disk full")
	store.FailOn("a-com.metadata.json", diskFull)

	w, err := NewWriter(store, fixedClock{t: time.Now()}, nil)
	require.NoError(t, err)

	_, err = w.Persist(context.Background(), "https://a.com", extract.Content{Text: "x", Selector: "body"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrite)
	assert.ErrorIs(t, err, diskFull)
}

func TestNewWriterValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(nil, fixedClock{}, nil)
	assert.Error(t, err)
	_, err = NewWriter(memory.NewBlobStore(), nil, nil)
	assert.Error(t, err)
}
