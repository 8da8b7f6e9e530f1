package gateway

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewRateLimiter(limit, window)
	l.now = clock.now
	return l, clock
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("1.2.3.4")
		assert.True(t, ok, "request %d", i)
		clock.advance(10 * time.Second)
	}

	// Requests at 0s, 10s, 20s; now 30s.
	ok, retry := l.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, retry)

	clock.advance(29 * time.Second)
	ok, _ = l.Allow("1.2.3.4")
	assert.False(t, ok)

	// At 60s the first request has left the window.
	clock.advance(time.Second)
	ok, _ = l.Allow("1.2.3.4")
	assert.True(t, ok)
	ok, _ = l.Allow("1.2.3.4")
	assert.False(t, ok)
}

func TestRateLimiter_RejectedRequestsDoNotCount(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	for i := 0; i < 5; i++ {
		clock.advance(time.Second)
		ok, _ = l.Allow("a")
		assert.False(t, ok)
	}

	clock.advance(time.Minute)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
}

func TestRateLimiter_PerClient(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("b")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.False(t, ok)
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)

	l.Allow("a")
	l.Allow("b")
	assert.Equal(t, 2, l.Len())

	clock.advance(2 * time.Minute)
	l.Allow("c")
	assert.Equal(t, 1, l.Len())
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := NewRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		ok, _ := l.Allow("a")
		assert.True(t, ok)
	}
	assert.Equal(t, 0, l.Len())
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	r.Header.Set("X-Forwarded-For", "1.1.1.1")
	assert.Equal(t, "10.0.0.7", clientIP(r))

	r.RemoteAddr = "[::1]:80"
	assert.Equal(t, "::1", clientIP(r))

	r.RemoteAddr = "unix"
	assert.Equal(t, "unix", clientIP(r))
}
