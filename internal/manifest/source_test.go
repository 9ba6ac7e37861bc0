package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type staticSource struct {
	data []byte
	err  error
}

func (s staticSource) Fetch(context.Context) ([]byte, error) { return s.data, s.err }
func (s staticSource) Location() string                      { return "static://test" }

func TestLoadLogsSkippedEntries(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	src := staticSource{data: []byte(`["https://a.com", "nope", "https://a.com"]`)}

	urls, err := Load(context.Background(), src, FormatJSON, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com"}, urls)

	assert.Equal(t, 1, logs.FilterMessage("invalid url skipped").Len())
	assert.Equal(t, 1, logs.FilterMessage("duplicate url skipped").Len())
	loaded := logs.FilterMessage("manifest loaded").All()
	require.Len(t, loaded, 1)
	assert.Equal(t, int64(1), loaded[0].ContextMap()["urls"])
}

func TestLoadPropagatesErrors(t *testing.T) {
	t.Parallel()

	fetchErr := errors.Join(ErrManifestUnavailable, errors.New("boom"))
	_, err := Load(context.Background(), staticSource{err: fetchErr}, FormatJSON, nil)
	assert.ErrorIs(t, err, ErrManifestUnavailable)

	_, err = Load(context.Background(), staticSource{data: []byte("{")}, FormatJSON, nil)
	assert.ErrorIs(t, err, ErrMalformedManifest)
	assert.Contains(t, err.Error(), "static://test")
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "urls.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- https://a.com\n- https://b.com\n"), 0o600))

	src, err := NewFileSource(path)
	require.NoError(t, err)
	assert.Equal(t, "file://"+path, src.Location())

	urls, err := Load(context.Background(), src, FormatYAML, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, urls)

	missing, err := NewFileSource(filepath.Join(dir, "missing.txt"))
	require.NoError(t, err)
	_, err = missing.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrManifestUnavailable)

	_, err = NewFileSource("")
	assert.Error(t, err)
}
