// Package system provides the wall-clock implementations of the clock
// interfaces.
package system

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// Clock implements clock.Clock, clock.Sleeper and clock.Jitter.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Sleep waits for d. It returns ctx.Err() if ctx ends first.
func (Clock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Between returns a uniformly random duration in [min, max]. Swapped bounds
// are tolerated.
func (Clock) Between(min, max time.Duration) time.Duration {
	if max < min {
		min, max = max, min
	}
	span := int64(max - min)
	if span <= 0 {
		return min
	}
	n, err := rand.Int(rand.Reader, big.NewInt(span+1))
	if err != nil {
		return min + time.Duration(span/2)
	}
	return min + time.Duration(n.Int64())
}
