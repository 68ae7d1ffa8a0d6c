package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leadscout/leadscout/internal/retrieve"
	"github.com/leadscout/leadscout/internal/worker"
)

func TestProcessAll_RetriesTransient(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	failUntil := 2

	fn := func(_ context.Context, _ string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= failUntil {
			return "", &retrieve.Error{Kind: retrieve.KindHTTPError, Status: 502, URL: "https://x.example"}
		}
		return "ok", nil
	}

	out, err := worker.ProcessAll(context.Background(), []string{"https://x.example"}, fn, worker.Options{
		Workers:           1,
		MaxRetries:        3,
		RequestTimeout:    time.Second,
		BackoffInitial:    time.Millisecond,
		BackoffMax:        2 * time.Millisecond,
		BackoffJitterFrac: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Err != nil || out[0].Output != "ok" {
		t.Fatalf("unexpected output: %#v", out)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestProcessAll_DoesNotRetryBlocked(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0

	fn := func(_ context.Context, _ string) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "", &retrieve.Error{Kind: retrieve.KindBlocked, URL: "https://x.example"}
	}

	out, err := worker.ProcessAll(context.Background(), []string{"https://x.example"}, fn, worker.Options{
		Workers:           1,
		MaxRetries:        10,
		BackoffInitial:    time.Millisecond,
		BackoffMax:        time.Millisecond,
		BackoffJitterFrac: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !retrieve.IsBlocked(out[0].Err) {
		t.Fatalf("expected blocked error in result, got %v", out[0].Err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("blocked must not be retried: %d calls", calls)
	}
}

func TestProcessAll_DoesNotRetryNotFound(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0

	fn := func(_ context.Context, _ string) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "", &retrieve.Error{Kind: retrieve.KindNotFound, Status: 404, URL: "https://x.example"}
	}

	_, err := worker.ProcessAll(context.Background(), []string{"https://x.example"}, fn, worker.Options{
		Workers:    1,
		MaxRetries: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("not-found must not be retried: %d calls", calls)
	}
}

func TestProcessAll_OutputOrderMatchesInput(t *testing.T) {
	t.Parallel()

	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	fn := func(_ context.Context, n int) (int, error) {
		// Reverse the natural completion order.
		time.Sleep(time.Duration(50-n) * time.Millisecond / 10)
		return n * 2, nil
	}

	out, err := worker.ProcessAll(context.Background(), items, fn, worker.Options{Workers: 8})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, res := range out {
		if res.Input != i || res.Output != i*2 {
			t.Fatalf("slot %d holds wrong result: %+v", i, res)
		}
	}
}

func TestProcessAll_FailFastStops(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0

	items := make([]string, 100)
	for i := range items {
		items[i] = fmt.Sprintf("https://x.example/%d", i)
	}

	fn := func(_ context.Context, _ string) (string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "", errors.New("boom")
	}

	_, err := worker.ProcessAll(context.Background(), items, fn, worker.Options{
		Workers:       1,
		FailurePolicy: worker.FailurePolicyFailFast,
	})
	if err == nil {
		t.Fatal("expected fail-fast error")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls >= len(items) {
		t.Fatalf("fail-fast did not stop early: %d calls", calls)
	}
}

func TestProcessAll_CancellationStopsDispatch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	calls := 0

	items := make([]int, 100)
	fn := func(_ context.Context, _ int) (int, error) {
		mu.Lock()
		calls++
		if calls == 3 {
			cancel()
		}
		mu.Unlock()
		return 0, nil
	}

	_, err := worker.ProcessAll(ctx, items, fn, worker.Options{Workers: 1})
	if err == nil {
		t.Fatal("expected cancellation error")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls > 5 {
		t.Fatalf("cancellation did not stop dispatch promptly: %d calls", calls)
	}
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("plain"), false},
		{&retrieve.Error{Kind: retrieve.KindTimeout}, true},
		{&retrieve.Error{Kind: retrieve.KindHTTPError, Status: 503}, true},
		{&retrieve.Error{Kind: retrieve.KindHTTPError, Status: 429}, true},
		{&retrieve.Error{Kind: retrieve.KindHTTPError, Status: 400}, false},
		{&retrieve.Error{Kind: retrieve.KindBlocked}, false},
		{&retrieve.Error{Kind: retrieve.KindNotFound}, false},
		{fmt.Errorf("wrap: %w", &retrieve.Error{Kind: retrieve.KindTimeout}), true},
		{context.DeadlineExceeded, true},
	}
	for _, tc := range cases {
		if got := worker.IsTransient(tc.err); got != tc.want {
			t.Fatalf("IsTransient(%v) = %t, want %t", tc.err, got, tc.want)
		}
	}
}
