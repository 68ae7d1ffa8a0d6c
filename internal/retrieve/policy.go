package retrieve

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUserAgents rotate per session, never per request, so one logical
// browsing session presents a consistent fingerprint.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// PolicyOptions configure the shared retrieval policy.
type PolicyOptions struct {
	// BaseDelay is the minimum inter-request spacing per target host.
	BaseDelay time.Duration
	// JitterFrac layers 0..JitterFrac*BaseDelay of random extra delay on top
	// of the base spacing so request cadence is never uniform.
	JitterFrac float64
	// UserAgents overrides DefaultUserAgents when non-empty.
	UserAgents []string
}

func (o PolicyOptions) withDefaults() PolicyOptions {
	if o.BaseDelay <= 0 {
		o.BaseDelay = 2 * time.Second
	}
	if o.JitterFrac < 0 {
		o.JitterFrac = 0
	}
	if len(o.UserAgents) == 0 {
		o.UserAgents = DefaultUserAgents
	}
	return o
}

// Policy holds the shared mutable retrieval state: one rate limiter per
// target host and the session-scoped user-agent selector. A single Policy is
// shared by every worker in a run; it is safe for concurrent use.
type Policy struct {
	opts PolicyOptions

	mu        sync.Mutex
	hosts     map[string]*rate.Limiter
	sessionUA string
}

// NewPolicy builds a Policy and selects the first session identity.
func NewPolicy(opts PolicyOptions) *Policy {
	p := &Policy{
		opts:  opts.withDefaults(),
		hosts: make(map[string]*rate.Limiter),
	}
	p.RotateSession()
	return p
}

// Wait blocks until a request to host is allowed, then applies jitter.
// The limiter is keyed per host so aggregate cadence to any single host is
// respected regardless of how many workers share the Policy.
func (p *Policy) Wait(ctx context.Context, host string) error {
	p.mu.Lock()
	lim, ok := p.hosts[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(p.opts.BaseDelay), 1)
		p.hosts[host] = lim
	}
	p.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return err
	}
	return p.jitterSleep(ctx)
}

func (p *Policy) jitterSleep(ctx context.Context) error {
	if p.opts.JitterFrac <= 0 {
		return nil
	}
	d := time.Duration(rand.Float64() * p.opts.JitterFrac * float64(p.opts.BaseDelay))
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UserAgent returns the identity of the current session.
func (p *Policy) UserAgent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionUA
}

// RotateSession picks a new user agent for the next session/batch.
func (p *Policy) RotateSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionUA = p.opts.UserAgents[rand.Intn(len(p.opts.UserAgents))]
}
