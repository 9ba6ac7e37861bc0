package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cat-wiki/docwatcher/internal/config"
	"github.com/cat-wiki/docwatcher/internal/persist"
	localstore "github.com/cat-wiki/docwatcher/internal/storage/local"
)

// withEnv swaps loadEnv for the duration of the test. Tests using it must not
// run in parallel.
func withEnv(t *testing.T, cfg config.Config) {
	t.Helper()
	prev := loadEnv
	loadEnv = func(string) (*env, error) {
		return &env{cfg: cfg, logger: zap.NewNop()}, nil
	}
	t.Cleanup(func() { loadEnv = prev })
}

func baseConfig(t *testing.T, manifestBody string) config.Config {
	t.Helper()
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "urls.txt")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifestBody), 0o600))
	return config.Config{
		Manifest: config.ManifestConfig{Source: config.SourceFile, File: manifestPath},
		Scrape:   config.ScrapeConfig{RetryAttempts: 0},
		Renderer: config.RendererConfig{Engine: config.EngineStatic},
		Output:   config.OutputConfig{Backend: config.BackendLocal, Dir: filepath.Join(dir, "out")},
		Ledger:   config.LedgerConfig{Driver: config.LedgerNone},
		Metrics:  config.MetricsConfig{Textfile: filepath.Join(dir, "docwatcher.prom")},
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestManifestCommandPrintsURLs(t *testing.T) {
	cfg := baseConfig(t, "# legal pages\nhttps://a.com/terms\nnot a url\n\nhttps://b.com/privacy\nhttps://a.com/terms\n")
	withEnv(t, cfg)

	out, err := execute(t, "manifest")
	require.NoError(t, err)
	assert.Equal(t, "https://a.com/terms\nhttps://b.com/privacy\n", out)
}

func TestManifestCommandMissingFile(t *testing.T) {
	cfg := baseConfig(t, "")
	cfg.Manifest.File = filepath.Join(t.TempDir(), "absent.txt")
	withEnv(t, cfg)

	_, err := execute(t, "manifest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest unavailable")
}

func TestScrapeCommandEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/terms" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><nav>Menu</nav><main><h1>Terms</h1><p>Be   nice.</p></main></body></html>`))
	}))
	defer srv.Close()

	good, bad := srv.URL+"/terms", srv.URL+"/missing"
	cfg := baseConfig(t, good+"\n"+bad+"\n")
	withEnv(t, cfg)

	_, err := execute(t, "scrape")
	require.NoError(t, err)

	text, err := os.ReadFile(filepath.Join(cfg.Output.Dir, persist.FileName(good)))
	require.NoError(t, err)
	assert.Equal(t, "Terms\nBe nice.", string(text))

	raw, err := os.ReadFile(filepath.Join(cfg.Output.Dir, persist.MetadataName(good)))
	require.NoError(t, err)
	var meta persist.Metadata
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, good, meta.URL)
	assert.Equal(t, "main", meta.Selector)
	assert.Equal(t, len([]rune("Terms\nBe nice.")), meta.ContentLength)

	_, err = os.Stat(filepath.Join(cfg.Output.Dir, persist.FileName(bad)))
	assert.True(t, os.IsNotExist(err))

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "docwatcher_last_run_succeeded_urls 1")
	assert.Contains(t, string(prom), "docwatcher_last_run_failed_urls 1")
	assert.Contains(t, string(prom), "docwatcher_manifest_urls 2")
}

func TestScrapeCommandMalformedManifest(t *testing.T) {
	cfg := baseConfig(t, "")
	jsonPath := filepath.Join(t.TempDir(), "urls.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"urls": [`), 0o600))
	cfg.Manifest.File = jsonPath
	withEnv(t, cfg)

	_, err := execute(t, "scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed manifest")
}

func TestManifestFormatOverride(t *testing.T) {
	cfg := baseConfig(t, "- https://a.com/terms\n- https://b.com/terms\n")
	cfg.Manifest.Format = "yaml"
	w := newWiring(cfg, zap.NewNop())
	defer w.Close()

	src, format, err := w.manifestSource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "yaml", string(format))
	assert.True(t, strings.HasPrefix(src.Location(), "file://"))

	cfg.Manifest.Format = "csv"
	_, _, err = newWiring(cfg, zap.NewNop()).manifestSource(context.Background())
	require.Error(t, err)
}

func TestWiringLocalBlobStore(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(t, "")
	w := newWiring(cfg, zap.NewNop())
	defer w.Close()

	store, err := w.blobStore(context.Background())
	require.NoError(t, err)
	local, ok := store.(*localstore.BlobStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Clean(cfg.Output.Dir), local.Dir())
}

func TestWiringRejectsUnknownBackends(t *testing.T) {
	cfg := baseConfig(t, "")
	w := newWiring(cfg, zap.NewNop())
	defer w.Close()

	cfg.Renderer.Engine = "webkit"
	w.cfg = cfg
	_, err := w.renderer()
	require.Error(t, err)

	cfg.Output.Backend = "ftp"
	w.cfg = cfg
	_, err = w.blobStore(context.Background())
	require.Error(t, err)

	cfg.Ledger.Driver = "sqlite"
	w.cfg = cfg
	_, err = w.recorder(context.Background())
	require.Error(t, err)
}

func TestRootCommandWithoutEnv(t *testing.T) {
	t.Parallel()

	_, err := resolveEnv(context.Background())
	require.Error(t, err)
}
