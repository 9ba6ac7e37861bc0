package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/cat-wiki/docwatcher/internal/clock/system"
	"github.com/cat-wiki/docwatcher/internal/config"
	"github.com/cat-wiki/docwatcher/internal/ledger"
	pgledger "github.com/cat-wiki/docwatcher/internal/ledger/postgres"
	"github.com/cat-wiki/docwatcher/internal/manifest"
	"github.com/cat-wiki/docwatcher/internal/render/chrome"
	"github.com/cat-wiki/docwatcher/internal/render/static"
	"github.com/cat-wiki/docwatcher/internal/scrape"
	blobstore "github.com/cat-wiki/docwatcher/internal/storage"
	gcsstore "github.com/cat-wiki/docwatcher/internal/storage/gcs"
	localstore "github.com/cat-wiki/docwatcher/internal/storage/local"
	memorystore "github.com/cat-wiki/docwatcher/internal/storage/memory"
)

const manifestHTTPTimeout = 30 * time.Second

// wiring builds the run's components from config and owns their cleanup.
type wiring struct {
	cfg    config.Config
	logger *zap.Logger
	clock  *system.Clock

	gcs     *storage.Client
	closers []func()
}

func newWiring(cfg config.Config, logger *zap.Logger) *wiring {
	return &wiring{cfg: cfg, logger: logger, clock: system.New()}
}

// Close releases everything opened so far, newest first.
func (w *wiring) Close() {
	for i := len(w.closers) - 1; i >= 0; i-- {
		w.closers[i]()
	}
	w.closers = nil
}

func (w *wiring) gcsClient(ctx context.Context) (*storage.Client, error) {
	if w.gcs != nil {
		return w.gcs, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("init gcs client: %w", err)
	}
	w.gcs = client
	w.closers = append(w.closers, func() {
		if err := client.Close(); err != nil {
			w.logger.Warn("close gcs client", zap.Error(err))
		}
	})
	return client, nil
}

// manifestSource returns the configured source and the format to parse it
// with. An empty manifest.format is derived from the manifest path.
func (w *wiring) manifestSource(ctx context.Context) (manifest.Source, manifest.Format, error) {
	mc := w.cfg.Manifest
	var (
		src      manifest.Source
		location string
		err      error
	)
	switch mc.Source {
	case config.SourceGitHub:
		location = mc.Path
		src, err = manifest.NewGitHubSource(manifest.GitHubConfig{
			Owner:   mc.Owner,
			Repo:    mc.Repo,
			Path:    mc.Path,
			Branch:  mc.Branch,
			Token:   mc.Token,
			BaseURL: mc.BaseURL,
		}, &http.Client{Timeout: manifestHTTPTimeout})
	case config.SourceGCS:
		location = mc.GCSObject
		client, cerr := w.gcsClient(ctx)
		if cerr != nil {
			return nil, "", cerr
		}
		src, err = manifest.NewGCSSource(client, mc.GCSBucket, mc.GCSObject)
	case config.SourceFile:
		location = mc.File
		src, err = manifest.NewFileSource(mc.File)
	default:
		return nil, "", fmt.Errorf("manifest source %q is not supported", mc.Source)
	}
	if err != nil {
		return nil, "", fmt.Errorf("init manifest source: %w", err)
	}

	var format manifest.Format
	if mc.Format != "" {
		format, err = manifest.ParseFormat(mc.Format)
	} else {
		format, err = manifest.FormatFromPath(location)
	}
	if err != nil {
		return nil, "", fmt.Errorf("manifest format: %w", err)
	}
	return src, format, nil
}

func (w *wiring) renderer() (scrape.Renderer, error) {
	opts := w.cfg.RenderOptions()
	switch w.cfg.Renderer.Engine {
	case config.EngineChrome:
		r, err := chrome.New(opts, w.clock, w.clock, w.logger)
		if err != nil {
			return nil, fmt.Errorf("init chrome renderer: %w", err)
		}
		return r, nil
	case config.EngineStatic:
		return static.New(opts, nil, w.logger), nil
	default:
		return nil, fmt.Errorf("renderer engine %q is not supported", w.cfg.Renderer.Engine)
	}
}

func (w *wiring) blobStore(ctx context.Context) (blobstore.BlobStore, error) {
	oc := w.cfg.Output
	switch oc.Backend {
	case config.BackendLocal:
		s, err := localstore.New(localstore.Config{BaseDir: oc.Dir})
		if err != nil {
			return nil, fmt.Errorf("init local output: %w", err)
		}
		w.logger.Info("writing documents to local directory", zap.String("dir", s.Dir()))
		return s, nil
	case config.BackendGCS:
		client, err := w.gcsClient(ctx)
		if err != nil {
			return nil, err
		}
		s, err := gcsstore.New(client, gcsstore.Config{Bucket: oc.GCSBucket, Prefix: oc.GCSPrefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs output: %w", err)
		}
		return s, nil
	case config.BackendMemory:
		return memorystore.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("output backend %q is not supported", oc.Backend)
	}
}

func (w *wiring) recorder(ctx context.Context) (ledger.Recorder, error) {
	lc := w.cfg.Ledger
	switch lc.Driver {
	case config.LedgerNone:
		return ledger.Noop{}, nil
	case config.LedgerPostgres:
		store, err := pgledger.New(ctx, pgledger.Config{
			DSN:             lc.DSN,
			Table:           lc.Table,
			MaxConns:        lc.MaxConns,
			MaxConnLifetime: lc.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init ledger: %w", err)
		}
		w.closers = append(w.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ledger schema: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("ledger driver %q is not supported", lc.Driver)
	}
}
