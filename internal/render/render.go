// Package render holds what the page renderers share: their error taxonomy,
// request identity and per-host pacing.
package render

import (
	"errors"
	"net/http"
	"time"
)

// Per-attempt render failures. The orchestrator retries both.
var (
	ErrNavigationTimeout = errors.New("navigation timeout")
	ErrPageNotReady      = errors.New("page not ready")
)

// DefaultUserAgent is a desktop Chrome identity.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Viewport dimensions emulated by the browser renderer.
const (
	ViewportWidth  = 1920
	ViewportHeight = 1080
)

// DefaultHeaders returns the extra request headers sent with every page load.
func DefaultHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

// Options configures a renderer.
type Options struct {
	UserAgent string
	Headers   http.Header
	Headless  bool

	NavigationTimeout time.Duration
	ReadyTimeout      time.Duration
	SettleMin         time.Duration
	SettleMax         time.Duration

	ScrollDistance int
	ScrollInterval time.Duration
	ScrollPause    time.Duration
	ScrollMaxSteps int

	// HostQPS caps page loads per second against one host. Zero disables it.
	HostQPS float64
}

// DefaultOptions returns the stock renderer settings.
func DefaultOptions() Options {
	return Options{
		UserAgent:         DefaultUserAgent,
		Headers:           DefaultHeaders(),
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
		ReadyTimeout:      10 * time.Second,
		SettleMin:         time.Second,
		SettleMax:         3 * time.Second,
		ScrollDistance:    100,
		ScrollInterval:    100 * time.Millisecond,
		ScrollPause:       500 * time.Millisecond,
		ScrollMaxSteps:    1000,
	}
}

// WithDefaults fills zero fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	if o.Headers == nil {
		o.Headers = d.Headers
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = d.NavigationTimeout
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = d.ReadyTimeout
	}
	if o.SettleMax < o.SettleMin {
		o.SettleMin, o.SettleMax = o.SettleMax, o.SettleMin
	}
	if o.ScrollDistance <= 0 {
		o.ScrollDistance = d.ScrollDistance
	}
	if o.ScrollInterval <= 0 {
		o.ScrollInterval = d.ScrollInterval
	}
	if o.ScrollMaxSteps <= 0 {
		o.ScrollMaxSteps = d.ScrollMaxSteps
	}
	return o
}
