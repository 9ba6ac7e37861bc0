// Package chrome renders pages in a fresh headless Chrome per call and hands
// the live DOM to extraction as a dom.Snapshot.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/cat-wiki/docwatcher/internal/clock"
	"github.com/cat-wiki/docwatcher/internal/dom"
	"github.com/cat-wiki/docwatcher/internal/render"
)

// Renderer implements scrape.Renderer with chromedp.
type Renderer struct {
	opts      render.Options
	allocOpts []chromedp.ExecAllocatorOption
	limiter   *render.HostLimiter
	jitter    clock.Jitter
	sleeper   clock.Sleeper
	logger    *zap.Logger
}

// New builds a Renderer. No browser is started until Render.
func New(opts render.Options, jitter clock.Jitter, sleeper clock.Sleeper, logger *zap.Logger) (*Renderer, error) {
	if jitter == nil || sleeper == nil {
		return nil, errors.New("jitter and sleeper are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.WithDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(render.ViewportWidth, render.ViewportHeight),
		chromedp.UserAgent(opts.UserAgent),
	)

	return &Renderer{
		opts:      opts,
		allocOpts: allocOpts,
		limiter:   render.NewHostLimiter(opts.HostQPS),
		jitter:    jitter,
		sleeper:   sleeper,
		logger:    logger.Named("chrome"),
	}, nil
}

// Render loads rawURL in a new browser, lets it settle, scrolls it to the end
// and snapshots the DOM. The browser is torn down before returning.
func (r *Renderer) Render(ctx context.Context, rawURL string) (dom.Node, error) {
	if err := r.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, r.allocOpts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(r.logger.Sugar().Debugf),
	)
	defer browserCancel()

	idle := newIdleWatcher()
	chromedp.ListenTarget(browserCtx, idle.handle)

	if err := chromedp.Run(browserCtx, r.setup()); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	if err := r.navigate(browserCtx, rawURL, idle); err != nil {
		return nil, err
	}

	settle := r.jitter.Between(r.opts.SettleMin, r.opts.SettleMax)
	if err := r.sleeper.Sleep(ctx, settle); err != nil {
		return nil, err
	}

	if err := r.waitReady(browserCtx); err != nil {
		return nil, err
	}
	if err := r.autoScroll(browserCtx, rawURL, evalScroll); err != nil {
		return nil, err
	}

	var snap dom.Snapshot
	if err := chromedp.Run(browserCtx, chromedp.Evaluate(snapshotScript, &snap)); err != nil {
		return nil, fmt.Errorf("snapshot dom: %w", err)
	}
	if snap.Kind() != dom.KindElement {
		return nil, fmt.Errorf("snapshot dom: %w", render.ErrPageNotReady)
	}
	r.logger.Debug("page rendered",
		zap.String("url", rawURL),
		zap.Int("nodes", snap.CountNodes()),
	)
	return &snap, nil
}

func (r *Renderer) setup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		if err := emulation.SetUserAgentOverride(r.opts.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		if len(r.opts.Headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(r.opts.Headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return chromedp.EmulateViewport(render.ViewportWidth, render.ViewportHeight).Do(ctx)
	})
}

// navigate starts the load and waits for the new document's networkIdle
// lifecycle event, all within the navigation timeout.
func (r *Renderer) navigate(ctx context.Context, rawURL string, idle *idleWatcher) error {
	navCtx, cancel := context.WithTimeout(ctx, r.opts.NavigationTimeout)
	defer cancel()

	err := chromedp.Run(navCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, loaderID, errorText, _, err := page.Navigate(rawURL).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("navigate: %s", errorText)
		}
		return idle.wait(ctx, loaderID)
	}))
	switch {
	case err == nil:
		return nil
	case errors.Is(navCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return fmt.Errorf("%w: %s after %s", render.ErrNavigationTimeout, rawURL, r.opts.NavigationTimeout)
	default:
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
}

func (r *Renderer) waitReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, r.opts.ReadyTimeout)
	defer cancel()

	err := chromedp.Run(readyCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	switch {
	case err == nil:
		return nil
	case errors.Is(readyCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return fmt.Errorf("%w: body not ready after %s", render.ErrPageNotReady, r.opts.ReadyTimeout)
	default:
		return fmt.Errorf("wait for body: %w", err)
	}
}

// autoScroll steps down the page until the scrolled offset reaches the
// document height, which may grow as lazy content loads. The step cap stops
// infinite-scroll pages; what loaded so far is kept.
func (r *Renderer) autoScroll(ctx context.Context, rawURL string, scroll scrollFunc) error {
	var offset int64
	for step := 0; ; step++ {
		if step >= r.opts.ScrollMaxSteps {
			r.logger.Warn("scroll step limit reached",
				zap.String("url", rawURL),
				zap.Int("steps", step),
				zap.Int64("offset", offset),
			)
			break
		}
		height, err := scroll(ctx, r.opts.ScrollDistance)
		if err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		offset += int64(r.opts.ScrollDistance)
		if offset >= height {
			break
		}
		if err := r.sleeper.Sleep(ctx, r.opts.ScrollInterval); err != nil {
			return err
		}
	}
	return r.sleeper.Sleep(ctx, r.opts.ScrollPause)
}

// scrollFunc scrolls the page down by distance pixels and returns the
// document height afterwards.
type scrollFunc func(ctx context.Context, distance int) (int64, error)

func evalScroll(ctx context.Context, distance int) (int64, error) {
	var height int64
	err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(scrollStepScript, distance), &height))
	return height, err
}

// scrollStepScript scrolls by the given distance and reports the document
// height.
const scrollStepScript = `(() => {
	window.scrollBy(0, %d);
	return (document.body || document.documentElement).scrollHeight;
})()`

// snapshotScript serialises the document into the dom.Snapshot JSON shape,
// carrying computed visibility for every element.
const snapshotScript = `(() => {
	const walk = (node) => {
		if (node.nodeType === Node.TEXT_NODE) {
			return {kind: "text", text: node.nodeValue};
		}
		if (node.nodeType !== Node.ELEMENT_NODE) {
			return null;
		}
		const style = window.getComputedStyle(node);
		const attrs = {};
		for (const attr of node.attributes) {
			attrs[attr.name] = attr.value;
		}
		const children = [];
		for (const child of node.childNodes) {
			const c = walk(child);
			if (c) children.push(c);
		}
		return {
			kind: "element",
			tag: node.tagName.toLowerCase(),
			attrs: attrs,
			hidden: style.display === "none" || style.visibility === "hidden" || parseFloat(style.opacity) === 0,
			children: children,
		};
	};
	return walk(document.documentElement);
})()`

type idleWatcher struct {
	mu     sync.Mutex
	idle   map[cdp.LoaderID]bool
	notify chan struct{}
}

func newIdleWatcher() *idleWatcher {
	return &idleWatcher{
		idle:   make(map[cdp.LoaderID]bool),
		notify: make(chan struct{}, 1),
	}
}

func (w *idleWatcher) handle(ev any) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok || e.Name != "networkIdle" {
		return
	}
	w.mu.Lock()
	w.idle[e.LoaderID] = true
	w.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *idleWatcher) reached(loaderID cdp.LoaderID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.idle[loaderID]
}

// wait blocks until loaderID has gone network idle. Same-document navigations
// report no loader and return immediately.
func (w *idleWatcher) wait(ctx context.Context, loaderID cdp.LoaderID) error {
	if loaderID == "" {
		return nil
	}
	for !w.reached(loaderID) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.notify:
		}
	}
	return nil
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		if len(values) == 1 {
			headers[key] = values[0]
		} else {
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}

