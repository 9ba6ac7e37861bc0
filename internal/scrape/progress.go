package scrape

import (
	"sync"
	"time"
)

// Progress is a point-in-time view of a run, safe to hand to other
// goroutines.
type Progress struct {
	RunID      string     `json:"run_id"`
	Running    bool       `json:"running"`
	Total      int        `json:"total"`
	Completed  int        `json:"completed"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	CurrentURL string     `json:"current_url,omitempty"`
	State      State      `json:"state,omitempty"`
	Attempt    int        `json:"attempt,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Tracker holds the live Progress of the orchestrator. The orchestrator is
// the only writer; status handlers read snapshots.
type Tracker struct {
	mu sync.RWMutex
	p  Progress
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Snapshot returns the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p
}

func (t *Tracker) update(fn func(p *Progress)) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.p)
}
