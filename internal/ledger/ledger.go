// Package ledger records the outcome of every URL in a scrape run.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Terminal outcome states.
const (
	StateDone   = "done"
	StateFailed = "failed"
)

// Outcome is one URL's result within a run.
type Outcome struct {
	RunID         string
	URL           string
	State         string
	Attempts      int
	Selector      string
	ContentLength int
	Path          string
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Duration is the wall time spent on the URL, retries included.
func (o Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// Recorder stores outcomes.
type Recorder interface {
	Record(ctx context.Context, outcome Outcome) error
}

// Noop discards outcomes.
type Noop struct{}

// Record implements Recorder.
func (Noop) Record(context.Context, Outcome) error { return nil }

// Memory keeps outcomes in memory.
type Memory struct {
	mu       sync.Mutex
	outcomes []Outcome
}

// NewMemory returns an empty Memory recorder.
func NewMemory() *Memory {
	return &Memory{}
}

// Record implements Recorder.
func (m *Memory) Record(_ context.Context, outcome Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	return nil
}

// Outcomes returns a copy of the recorded outcomes in insertion order.
func (m *Memory) Outcomes() []Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Outcome(nil), m.outcomes...)
}

// Tee fans every outcome out to each recorder. All recorders are tried; their
// errors are joined.
func Tee(recorders ...Recorder) Recorder {
	return tee(recorders)
}

type tee []Recorder

func (t tee) Record(ctx context.Context, outcome Outcome) error {
	var errs []error
	for _, r := range t {
		if err := r.Record(ctx, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
