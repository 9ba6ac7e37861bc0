package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cat-wiki/docwatcher/internal/ledger"
	"github.com/cat-wiki/docwatcher/internal/scrape"
)

const (
	defaultOutcomeLimit = 100
	maxOutcomeLimit     = 1000
)

// ProgressSource reports the live state of the current run.
type ProgressSource interface {
	Snapshot() scrape.Progress
}

// OutcomeLister returns the outcomes recorded so far, oldest first.
type OutcomeLister interface {
	Outcomes() []ledger.Outcome
}

// ProgressHandler exposes read-only run progress endpoints.
type ProgressHandler struct {
	progress ProgressSource
	outcomes OutcomeLister
	logger   *zap.Logger
}

// NewProgressHandler wires the progress source, outcome lister and logger.
// Either source may be nil; its endpoints then answer 503.
func NewProgressHandler(progress ProgressSource, outcomes OutcomeLister, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{
		progress: progress,
		outcomes: outcomes,
		logger:   logger,
	}
}

// GetProgress handles GET /v1/progress and returns {"progress": {...}}.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, _ *http.Request) {
	if h.progress == nil {
		writeError(w, http.StatusServiceUnavailable, "progress unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": h.progress.Snapshot()})
}

// ListOutcomes handles GET /v1/outcomes?state=&url=&limit=&offset=. It
// returns {"outcomes": [...], "total": n} where total counts matches before
// paging, or 400 for invalid filters.
func (h *ProgressHandler) ListOutcomes(w http.ResponseWriter, r *http.Request) {
	if h.outcomes == nil {
		writeError(w, http.StatusServiceUnavailable, "outcomes unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultOutcomeLimit, maxOutcomeLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := parseState(r.URL.Query().Get("state"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	url := strings.TrimSpace(r.URL.Query().Get("url"))

	matched := make([]outcomeDTO, 0)
	for _, o := range h.outcomes.Outcomes() {
		if state != "" && o.State != state {
			continue
		}
		if url != "" && o.URL != url {
			continue
		}
		matched = append(matched, toOutcomeDTO(o))
	}
	total := len(matched)
	offset = min(offset, total)
	page := matched[offset : offset+min(limit, total-offset)]
	h.logger.Debug("outcomes listed", zap.Int("total", total), zap.Int("returned", len(page)))
	writeJSON(w, http.StatusOK, map[string]any{
		"outcomes": page,
		"total":    total,
	})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseState(input string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "":
		return "", nil
	case ledger.StateDone, "success":
		return ledger.StateDone, nil
	case ledger.StateFailed, "error", "failure":
		return ledger.StateFailed, nil
	default:
		return "", errors.New("invalid state")
	}
}

func toOutcomeDTO(o ledger.Outcome) outcomeDTO {
	return outcomeDTO{
		RunID:         o.RunID,
		URL:           o.URL,
		State:         o.State,
		Attempts:      o.Attempts,
		Selector:      o.Selector,
		ContentLength: o.ContentLength,
		Path:          o.Path,
		Error:         o.Error,
		StartedAt:     o.StartedAt,
		FinishedAt:    o.FinishedAt,
		DurationMs:    o.Duration().Milliseconds(),
	}
}

type outcomeDTO struct {
	RunID         string    `json:"run_id"`
	URL           string    `json:"url"`
	State         string    `json:"state"`
	Attempts      int       `json:"attempts"`
	Selector      string    `json:"selector,omitempty"`
	ContentLength int       `json:"content_length"`
	Path          string    `json:"path,omitempty"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	DurationMs    int64     `json:"duration_ms"`
}
