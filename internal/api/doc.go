// Package api hosts the status HTTP server that runs alongside a scrape.
// Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/progress for the live run state.
//   - GET /v1/outcomes for per-URL results of the current process.
package api
