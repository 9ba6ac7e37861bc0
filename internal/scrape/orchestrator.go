// Package scrape drives the per-URL render, extract and persist pipeline over
// a manifest, one URL at a time.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cat-wiki/docwatcher/internal/clock"
	"github.com/cat-wiki/docwatcher/internal/dom"
	"github.com/cat-wiki/docwatcher/internal/extract"
	"github.com/cat-wiki/docwatcher/internal/ledger"
	"github.com/cat-wiki/docwatcher/internal/metrics"
	"github.com/cat-wiki/docwatcher/internal/persist"
	"github.com/cat-wiki/docwatcher/internal/render"
)

// Renderer produces a fresh DOM for a URL on every call.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (dom.Node, error)
}

// Extractor pulls the content region out of a DOM.
type Extractor interface {
	Extract(root dom.Node) (extract.Content, error)
}

// Persister stores extracted content.
type Persister interface {
	Persist(ctx context.Context, rawURL string, content extract.Content) (persist.Result, error)
}

// Observer receives per-attempt and per-URL measurements.
type Observer interface {
	ObserveAttempt(rawURL, result string)
	ObserveOutcome(rawURL, state string, duration time.Duration, contentLength int)
}

// Config holds the retry and pacing policy.
type Config struct {
	// RetryAttempts is the number of retries after the first try.
	RetryAttempts int
	// RetryDelay is the fixed pause before each retry.
	RetryDelay time.Duration
	// MinWait and MaxWait bound the random pause after a successful URL.
	MinWait time.Duration
	MaxWait time.Duration
}

// DefaultConfig returns the stock retry and pacing policy.
func DefaultConfig() Config {
	return Config{
		RetryAttempts: 3,
		RetryDelay:    5 * time.Second,
		MinWait:       2 * time.Second,
		MaxWait:       5 * time.Second,
	}
}

// Validate checks the policy.
func (c Config) Validate() error {
	switch {
	case c.RetryAttempts < 0:
		return fmt.Errorf("retry attempts must be >= 0")
	case c.RetryDelay < 0:
		return fmt.Errorf("retry delay must be >= 0")
	case c.MinWait < 0 || c.MaxWait < 0:
		return fmt.Errorf("wait window must be >= 0")
	case c.MaxWait < c.MinWait:
		return fmt.Errorf("max wait %s is below min wait %s", c.MaxWait, c.MinWait)
	}
	return nil
}

// Deps are the collaborators of an Orchestrator. Renderer, Extractor,
// Persister, Clock, Sleeper and Jitter are required.
type Deps struct {
	Renderer  Renderer
	Extractor Extractor
	Persister Persister
	Recorder  ledger.Recorder
	Observer  Observer
	Tracker   *Tracker
	Clock     clock.Clock
	Sleeper   clock.Sleeper
	Jitter    clock.Jitter
	Logger    *zap.Logger
	// NewRunID overrides run ID generation.
	NewRunID func() string
}

// Summary reports a finished run.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	// Skipped counts URLs never started because the run was interrupted.
	Skipped    int
	Outcomes   []ledger.Outcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// Orchestrator runs scrape batches.
type Orchestrator struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
}

// New validates cfg and deps.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Renderer == nil:
		return nil, errors.New("renderer is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Persister == nil:
		return nil, errors.New("persister is required")
	case deps.Clock == nil || deps.Sleeper == nil || deps.Jitter == nil:
		return nil, errors.New("clock, sleeper and jitter are required")
	}
	if deps.Recorder == nil {
		deps.Recorder = ledger.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	return &Orchestrator{cfg: cfg, deps: deps, log: deps.Logger.Named("scrape")}, nil
}

// Run processes urls in order. A failing URL never stops the batch; only a
// cancelled ctx does, in which case the partial summary is returned with
// ctx's error.
func (o *Orchestrator) Run(ctx context.Context, urls []string) (Summary, error) {
	runID := o.deps.NewRunID()
	log := o.log.With(zap.String("run_id", runID))
	summary := Summary{
		RunID:     runID,
		Total:     len(urls),
		StartedAt: o.deps.Clock.Now(),
	}
	o.deps.Tracker.update(func(p *Progress) {
		*p = Progress{RunID: runID, Running: true, Total: len(urls), StartedAt: summary.StartedAt}
	})
	log.Info("scrape run started", zap.Int("urls", len(urls)))

	var runErr error
	for i, rawURL := range urls {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		outcome := o.scrapeURL(ctx, runID, rawURL, log.With(zap.String("url", rawURL)))
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.State == ledger.StateDone {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		o.finish(ctx, outcome, log)

		if outcome.State != ledger.StateDone || i == len(urls)-1 {
			continue
		}
		wait := o.deps.Jitter.Between(o.cfg.MinWait, o.cfg.MaxWait)
		log.Debug("waiting before next url", zap.Duration("delay", wait))
		if err := o.deps.Sleeper.Sleep(ctx, wait); err != nil {
			runErr = err
			break
		}
	}

	summary.Skipped = summary.Total - len(summary.Outcomes)
	summary.FinishedAt = o.deps.Clock.Now()
	finishedAt := summary.FinishedAt
	o.deps.Tracker.update(func(p *Progress) {
		p.Running = false
		p.CurrentURL = ""
		p.State = ""
		p.Attempt = 0
		p.FinishedAt = &finishedAt
	})

	fields := []zap.Field{
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	}
	if runErr != nil {
		log.Warn("scrape run interrupted", append(fields, zap.Error(runErr))...)
		return summary, fmt.Errorf("scrape run %s interrupted: %w", runID, runErr)
	}
	log.Info("scrape run finished", fields...)
	return summary, nil
}

func (o *Orchestrator) finish(ctx context.Context, outcome ledger.Outcome, log *zap.Logger) {
	if o.deps.Observer != nil {
		o.deps.Observer.ObserveOutcome(outcome.URL, outcome.State, outcome.Duration(), outcome.ContentLength)
	}
	// The ledger row is written even when ctx was cancelled mid-URL.
	if err := o.deps.Recorder.Record(context.WithoutCancel(ctx), outcome); err != nil {
		log.Warn("ledger record failed", zap.Error(err))
	}
	o.deps.Tracker.update(func(p *Progress) {
		p.Completed++
		if outcome.State == ledger.StateDone {
			p.Succeeded++
		} else {
			p.Failed++
		}
	})
}

// scrapeURL runs the attempt loop for one URL and returns its outcome.
func (o *Orchestrator) scrapeURL(ctx context.Context, runID, rawURL string, log *zap.Logger) ledger.Outcome {
	outcome := ledger.Outcome{
		RunID:     runID,
		URL:       rawURL,
		StartedAt: o.deps.Clock.Now(),
	}
	maxTries := o.cfg.RetryAttempts + 1
	state := StatePending
	move := func(next State, attempt int) {
		if !state.CanTransition(next) {
			log.DPanic("invalid state transition", zap.String("from", string(state)), zap.String("to", string(next)))
		}
		log.Debug("state transition",
			zap.String("from", string(state)),
			zap.String("to", string(next)),
			zap.Int("attempt", attempt),
		)
		state = next
		o.deps.Tracker.update(func(p *Progress) {
			p.CurrentURL = rawURL
			p.State = next
			p.Attempt = attempt
		})
	}

	for attempt := 1; ; attempt++ {
		outcome.Attempts = attempt
		move(StateRendering, attempt)

		res, err := o.attempt(ctx, rawURL, func(next State) { move(next, attempt) })
		o.observeAttempt(rawURL, err)
		if err == nil {
			move(StateDone, attempt)
			outcome.State = ledger.StateDone
			outcome.Error = ""
			outcome.Selector = res.Metadata.Selector
			outcome.ContentLength = res.Metadata.ContentLength
			outcome.Path = res.TextURI
			outcome.FinishedAt = o.deps.Clock.Now()
			log.Info("scrape succeeded",
				zap.Int("attempts", attempt),
				zap.String("selector", outcome.Selector),
				zap.Int("content_length", outcome.ContentLength),
				zap.String("path", outcome.Path),
			)
			return outcome
		}

		outcome.Error = err.Error()
		retryable := !errors.Is(err, persist.ErrWrite) && ctx.Err() == nil
		if !retryable || attempt >= maxTries {
			break
		}

		move(StateRetrying, attempt)
		log.Warn("attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxTries),
			zap.Duration("delay", o.cfg.RetryDelay),
			zap.Error(err),
		)
		if sleepErr := o.deps.Sleeper.Sleep(ctx, o.cfg.RetryDelay); sleepErr != nil {
			break
		}
	}

	move(StateFailed, outcome.Attempts)
	outcome.State = ledger.StateFailed
	outcome.FinishedAt = o.deps.Clock.Now()
	log.Error("scrape failed",
		zap.Int("attempts", outcome.Attempts),
		zap.String("error", outcome.Error),
	)
	return outcome
}

// attempt is one fresh render, extract and persist pass.
func (o *Orchestrator) attempt(ctx context.Context, rawURL string, move func(State)) (persist.Result, error) {
	root, err := o.deps.Renderer.Render(ctx, rawURL)
	if err != nil {
		return persist.Result{}, fmt.Errorf("render: %w", err)
	}
	move(StateExtracting)
	content, err := o.deps.Extractor.Extract(root)
	if err != nil {
		return persist.Result{}, fmt.Errorf("extract: %w", err)
	}
	move(StatePersisting)
	return o.deps.Persister.Persist(ctx, rawURL, content)
}

func (o *Orchestrator) observeAttempt(rawURL string, err error) {
	if o.deps.Observer == nil {
		return
	}
	o.deps.Observer.ObserveAttempt(rawURL, attemptResult(err))
}

func attemptResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, render.ErrNavigationTimeout):
		return metrics.ResultNavigationTimeout
	case errors.Is(err, render.ErrPageNotReady):
		return metrics.ResultPageNotReady
	case errors.Is(err, extract.ErrNoContentFound):
		return metrics.ResultNoContent
	case errors.Is(err, persist.ErrWrite):
		return metrics.ResultWriteError
	default:
		return metrics.ResultError
	}
}
