package retrieve_test

import (
	"context"
	"testing"
	"time"

	"github.com/leadscout/leadscout/internal/retrieve"
)

func TestPolicy_PerHostSpacing(t *testing.T) {
	t.Parallel()

	p := retrieve.NewPolicy(retrieve.PolicyOptions{BaseDelay: 60 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(ctx, "one.example"); err != nil {
			t.Fatalf("wait failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("three same-host requests finished too fast: %s", elapsed)
	}
}

func TestPolicy_HostsAreIndependent(t *testing.T) {
	t.Parallel()

	p := retrieve.NewPolicy(retrieve.PolicyOptions{BaseDelay: 500 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	for _, host := range []string{"a.example", "b.example", "c.example"} {
		if err := p.Wait(ctx, host); err != nil {
			t.Fatalf("wait failed: %v", err)
		}
	}
	// First token per host is immediate; distinct hosts must not serialize.
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Fatalf("distinct hosts serialized: %s", elapsed)
	}
}

func TestPolicy_WaitHonorsCancellation(t *testing.T) {
	t.Parallel()

	p := retrieve.NewPolicy(retrieve.PolicyOptions{BaseDelay: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_ = p.Wait(ctx, "slow.example") // consumes the burst token
	if err := p.Wait(ctx, "slow.example"); err == nil {
		t.Fatal("expected cancellation error on second wait")
	}
}

func TestPolicy_UserAgentStablePerSession(t *testing.T) {
	t.Parallel()

	p := retrieve.NewPolicy(retrieve.PolicyOptions{BaseDelay: time.Millisecond})
	ua := p.UserAgent()
	if ua == "" {
		t.Fatal("expected a session user agent")
	}
	for i := 0; i < 20; i++ {
		if got := p.UserAgent(); got != ua {
			t.Fatalf("user agent changed mid-session: %q vs %q", got, ua)
		}
	}

	found := false
	for _, candidate := range retrieve.DefaultUserAgents {
		if candidate == ua {
			found = true
		}
	}
	if !found {
		t.Fatalf("session user agent %q not from the configured pool", ua)
	}
}
