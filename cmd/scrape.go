package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cat-wiki/docwatcher/internal/api"
	"github.com/cat-wiki/docwatcher/internal/extract"
	"github.com/cat-wiki/docwatcher/internal/ledger"
	"github.com/cat-wiki/docwatcher/internal/manifest"
	"github.com/cat-wiki/docwatcher/internal/metrics"
	"github.com/cat-wiki/docwatcher/internal/persist"
	"github.com/cat-wiki/docwatcher/internal/scrape"
)

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Scrapes every URL in the manifest",
		Long: `Fetches the URL manifest, then renders, extracts and saves each page in
order. A failing URL is retried and then recorded as failed; it never stops
the batch. The command fails only when the run cannot start.`,
		Args: cobra.NoArgs,
		RunE: runScrapeCommand,
	}
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	w := newWiring(e.cfg, e.logger)
	defer w.Close()

	summary, err := runScrape(cmd.Context(), w)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if summary.Failed > 0 {
		e.logger.Warn("some urls failed",
			zap.String("run_id", summary.RunID),
			zap.Int("failed", summary.Failed),
		)
	}
	return nil
}

// runScrape loads the manifest and runs one batch. The returned error is
// non-nil only when the run could not start or was interrupted.
func runScrape(ctx context.Context, w *wiring) (scrape.Summary, error) {
	cfg, logger := w.cfg, w.logger
	m := metrics.New()
	tracker := scrape.NewTracker()
	outcomes := ledger.NewMemory()

	if cfg.Metrics.ListenAddr != "" {
		srvCtx, stopServer := context.WithCancel(ctx)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv := api.NewServer(tracker, outcomes, m, logger)
			if err := srv.Serve(srvCtx, cfg.Metrics.ListenAddr); err != nil {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
		defer func() {
			stopServer()
			wg.Wait()
		}()
	}

	src, format, err := w.manifestSource(ctx)
	if err != nil {
		return scrape.Summary{}, err
	}
	urls, err := manifest.Load(ctx, src, format, logger.Named("manifest"))
	if err != nil {
		return scrape.Summary{}, fmt.Errorf("load manifest: %w", err)
	}
	m.SetManifestSize(len(urls))

	orch, err := buildOrchestrator(ctx, w, m, tracker, outcomes)
	if err != nil {
		return scrape.Summary{}, err
	}

	summary, runErr := orch.Run(ctx, urls)
	m.ObserveRun(summary.Succeeded, summary.Failed, summary.FinishedAt)
	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("metrics textfile not written", zap.Error(err))
		}
	}
	return summary, runErr
}

func buildOrchestrator(
	ctx context.Context,
	w *wiring,
	m *metrics.Metrics,
	tracker *scrape.Tracker,
	outcomes *ledger.Memory,
) (*scrape.Orchestrator, error) {
	renderer, err := w.renderer()
	if err != nil {
		return nil, err
	}
	extractor, err := extract.New(w.cfg.Extract.Regions, w.cfg.Extract.Excluded)
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}
	store, err := w.blobStore(ctx)
	if err != nil {
		return nil, err
	}
	writer, err := persist.NewWriter(store, w.clock, w.logger)
	if err != nil {
		return nil, fmt.Errorf("init writer: %w", err)
	}
	recorder, err := w.recorder(ctx)
	if err != nil {
		return nil, err
	}

	orch, err := scrape.New(w.cfg.ScrapePolicy(), scrape.Deps{
		Renderer:  renderer,
		Extractor: extractor,
		Persister: writer,
		Recorder:  ledger.Tee(outcomes, recorder),
		Observer:  m,
		Tracker:   tracker,
		Clock:     w.clock,
		Sleeper:   w.clock,
		Jitter:    w.clock,
		Logger:    w.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}
	return orch, nil
}
