package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig caps how fast minichat calls the vendor API.
type RateLimitConfig struct {
	RequestsPerMinute int // 0 = unlimited
	TokensPerMinute   int // 0 = unlimited
	BurstSize         int // requests allowed back to back before pacing kicks in
}

// RateLimitProvider wraps a provider with request and token budgets.
type RateLimitProvider struct {
	inner  Provider
	config *RateLimitConfig
	now    func() time.Time

	mu               sync.Mutex
	requestTokens    int
	tokenBudget      int
	lastRefill       time.Time
	requestsInWindow int
	tokensInWindow   int
	windowStart      time.Time
}

// NewRateLimitProvider creates a rate-limited provider wrapper.
func NewRateLimitProvider(inner Provider, config *RateLimitConfig) *RateLimitProvider {
	if config == nil {
		config = &RateLimitConfig{}
	}

	burst := config.BurstSize
	if burst <= 0 {
		burst = config.RequestsPerMinute / 6
		if burst < 1 {
			burst = 1
		}
	}
	cfg := *config
	cfg.BurstSize = burst

	now := time.Now()
	return &RateLimitProvider{
		inner:         inner,
		config:        &cfg,
		now:           time.Now,
		requestTokens: burst,
		tokenBudget:   cfg.TokensPerMinute,
		lastRefill:    now,
		windowStart:   now,
	}
}

func (r *RateLimitProvider) Name() string { return r.inner.Name() }

func (r *RateLimitProvider) Info() Info { return r.inner.Info() }

// Complete waits for capacity and delegates to the inner provider.
func (r *RateLimitProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := r.waitForCapacity(ctx); err != nil {
		return nil, err
	}

	resp, err := r.inner.Complete(ctx, prompt, opts)
	if err == nil && resp != nil {
		r.trackTokenUsage(resp.InputTokens + resp.OutputTokens)
	}
	return resp, err
}

func (r *RateLimitProvider) waitForCapacity(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		hasRequests := r.config.RequestsPerMinute == 0 || r.requestTokens > 0
		hasTokens := r.config.TokensPerMinute == 0 || r.tokenBudget > 0
		if hasRequests && hasTokens {
			if r.config.RequestsPerMinute > 0 {
				r.requestTokens--
			}
			r.requestsInWindow++
			r.mu.Unlock()
			return nil
		}

		wait := r.waitTime()
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// refill must be called with mu held.
func (r *RateLimitProvider) refill() {
	now := r.now()

	if r.config.RequestsPerMinute > 0 {
		add := int(now.Sub(r.lastRefill).Minutes() * float64(r.config.RequestsPerMinute))
		if add > 0 {
			r.requestTokens += add
			if r.requestTokens > r.config.BurstSize {
				r.requestTokens = r.config.BurstSize
			}
			r.lastRefill = now
		}
	} else {
		r.lastRefill = now
	}

	if now.Sub(r.windowStart) >= time.Minute {
		r.windowStart = now
		r.requestsInWindow = 0
		r.tokensInWindow = 0
		r.tokenBudget = r.config.TokensPerMinute
	}
}

func (r *RateLimitProvider) trackTokenUsage(tokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokensInWindow += tokens
	r.tokenBudget -= tokens
	if r.tokenBudget < 0 {
		r.tokenBudget = 0
	}
}

// waitTime must be called with mu held.
func (r *RateLimitProvider) waitTime() time.Duration {
	if r.config.RequestsPerMinute > 0 && r.requestTokens <= 0 {
		return time.Minute / time.Duration(r.config.RequestsPerMinute)
	}
	if r.config.TokensPerMinute > 0 && r.tokenBudget <= 0 {
		if remaining := time.Minute - r.now().Sub(r.windowStart); remaining > 0 {
			return remaining
		}
	}
	return 100 * time.Millisecond
}

// RateLimitStats contains rate limiting statistics.
type RateLimitStats struct {
	RequestsInWindow  int
	TokensInWindow    int
	RemainingRequests int
	RemainingTokens   int
	WindowStart       time.Time
}

// Stats returns current rate limiting statistics.
func (r *RateLimitProvider) Stats() RateLimitStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RateLimitStats{
		RequestsInWindow:  r.requestsInWindow,
		TokensInWindow:    r.tokensInWindow,
		RemainingRequests: r.requestTokens,
		RemainingTokens:   r.tokenBudget,
		WindowStart:       r.windowStart,
	}
}
