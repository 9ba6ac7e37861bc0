package render

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHeaders(t *testing.T) {
	t.Parallel()

	h := DefaultHeaders()
	assert.Equal(t, "en-US,en;q=0.9", h.Get("Accept-Language"))
	assert.Equal(t, "1", h.Get("Upgrade-Insecure-Requests"))
	assert.Len(t, h, 5)

	h.Set("Accept-Language", "fr")
	assert.Equal(t, "en-US,en;q=0.9", DefaultHeaders().Get("Accept-Language"), "each call returns a fresh copy")
}

func TestOptionsWithDefaults(t *testing.T) {
	t.Parallel()

	o := Options{SettleMin: 3 * time.Second, SettleMax: time.Second, ScrollMaxSteps: 5}.WithDefaults()
	assert.Equal(t, DefaultUserAgent, o.UserAgent)
	assert.Equal(t, 30*time.Second, o.NavigationTimeout)
	assert.Equal(t, 10*time.Second, o.ReadyTimeout)
	assert.Equal(t, time.Second, o.SettleMin)
	assert.Equal(t, 3*time.Second, o.SettleMax)
	assert.Equal(t, 100, o.ScrollDistance)
	assert.Equal(t, 5, o.ScrollMaxSteps)
	assert.NotNil(t, o.Headers)
}

func TestHostLimiter(t *testing.T) {
	t.Parallel()

	var disabled *HostLimiter
	require.Nil(t, NewHostLimiter(0))
	require.NoError(t, disabled.Wait(context.Background(), "https://a.com"))

	l := NewHostLimiter(1)
	require.NotNil(t, l)
	require.NoError(t, l.Wait(context.Background(), "https://a.com/x"))
	require.NoError(t, l.Wait(context.Background(), "https://b.com/x"), "hosts have separate budgets")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "https://A.com/y")
	assert.Error(t, err, "second load of the same host within a second must wait past the deadline")
}
