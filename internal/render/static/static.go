// Package static renders pages without a browser: it fetches the HTML with
// colly and parses it into a dom.Node. Scripts do not run, so pages that build
// their content client-side come back thin.
package static

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/cat-wiki/docwatcher/internal/dom"
	"github.com/cat-wiki/docwatcher/internal/render"
)

// Headers managed by the HTTP transport rather than set by hand.
var transportHeaders = []string{"Accept-Encoding", "Connection"}

// Renderer implements scrape.Renderer over plain HTTP.
type Renderer struct {
	opts      render.Options
	limiter   *render.HostLimiter
	collector *colly.Collector
	logger    *zap.Logger
}

// New builds a Renderer. transport may be nil.
func New(opts render.Options, transport http.RoundTripper, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.WithDefaults()
	if transport == nil {
		transport = newHTTPTransport()
	}

	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.UserAgent(opts.UserAgent),
	)
	c.WithTransport(transport)
	c.SetRequestTimeout(opts.NavigationTimeout)

	return &Renderer{
		opts:      opts,
		limiter:   render.NewHostLimiter(opts.HostQPS),
		collector: c,
		logger:    logger.Named("static"),
	}
}

// Render fetches rawURL and parses the response body.
func (r *Renderer) Render(ctx context.Context, rawURL string) (dom.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}

	var (
		body     []byte
		fetchErr error
	)
	collector := r.collector.Clone()
	collector.OnRequest(func(req *colly.Request) {
		for key, values := range r.opts.Headers {
			if isTransportHeader(key) {
				continue
			}
			for _, v := range values {
				req.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(resp *colly.Response) {
		body = append([]byte(nil), resp.Body...)
	})
	collector.OnError(func(resp *colly.Response, err error) {
		if resp != nil && resp.StatusCode != 0 {
			fetchErr = fmt.Errorf("status %d: %w", resp.StatusCode, err)
			return
		}
		fetchErr = err
	})

	if err := r.run(ctx, collector, rawURL, &fetchErr); err != nil {
		return nil, err
	}

	root, err := dom.FromHTML(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", render.ErrPageNotReady, err)
	}
	r.logger.Debug("page fetched", zap.String("url", rawURL), zap.Int("bytes", len(body)))
	return root, nil
}

func (r *Renderer) run(ctx context.Context, collector *colly.Collector, rawURL string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch %s canceled: %w", rawURL, ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			err = *fetchErr
		}
		if err == nil {
			return nil
		}
		if isTimeout(err) {
			return fmt.Errorf("%w: %s: %v", render.ErrNavigationTimeout, rawURL, err)
		}
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTransportHeader(key string) bool {
	for _, h := range transportHeaders {
		if http.CanonicalHeaderKey(key) == h {
			return true
		}
	}
	return false
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
