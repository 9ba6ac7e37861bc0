// Package clock abstracts time so the scrape loop can be driven
// deterministically in tests.
package clock

import (
	"context"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Sleeper blocks for a duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Jitter picks a duration in [min, max].
type Jitter interface {
	Between(min, max time.Duration) time.Duration
}
