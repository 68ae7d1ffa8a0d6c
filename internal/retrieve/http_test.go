package retrieve_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leadscout/leadscout/internal/retrieve"
)

func testPolicy() *retrieve.Policy {
	return retrieve.NewPolicy(retrieve.PolicyOptions{
		BaseDelay:  time.Millisecond,
		UserAgents: []string{"test-agent/1.0"},
	})
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
<div class="result">
  <a class="result__a" href="https://www.linkedin.com/in/jane-doe">Jane Doe - Founder</a>
  <a class="result__snippet">Founder at Acme</a>
</div>
<div class="result"><span>malformed entry, no link</span></div>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%%3A%%2F%%2Facme.example%%2Fteam">Acme Team</a>
  <a class="result__snippet">Meet the team</a>
</div>
</body></html>`)
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Jane Doe</h1></body></html>`)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/denied", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/captcha", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>Please verify you are a human</body></html>`)
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTPStrategy_SearchSkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	s := retrieve.NewHTTPStrategy(testPolicy(), retrieve.HTTPOptions{
		SearchBaseURL: ts.URL + "/search",
	})

	cands, err := s.Search(context.Background(), "founder", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates (malformed skipped), got %d: %+v", len(cands), cands)
	}
	if cands[0].URL != "https://www.linkedin.com/in/jane-doe" {
		t.Fatalf("unexpected first URL: %q", cands[0].URL)
	}
	if cands[1].URL != "https://acme.example/team" {
		t.Fatalf("redirect link not unwrapped: %q", cands[1].URL)
	}
	if cands[0].SourceQuery != "founder" {
		t.Fatalf("source query not recorded: %q", cands[0].SourceQuery)
	}
}

func TestHTTPStrategy_SearchHonorsMaxResults(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	s := retrieve.NewHTTPStrategy(testPolicy(), retrieve.HTTPOptions{
		SearchBaseURL: ts.URL + "/search",
	})

	cands, err := s.Search(context.Background(), "founder", 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
}

func TestHTTPStrategy_FetchClassification(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	s := retrieve.NewHTTPStrategy(testPolicy(), retrieve.HTTPOptions{
		SearchBaseURL: ts.URL + "/search",
	})
	ctx := context.Background()

	page, err := s.Fetch(ctx, ts.URL+"/profile")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if page.HTML == "" || page.URL != ts.URL+"/profile" {
		t.Fatalf("unexpected page: %+v", page)
	}

	cases := []struct {
		path      string
		kind      retrieve.Kind
		transient bool
	}{
		{"/missing", retrieve.KindNotFound, false},
		{"/denied", retrieve.KindBlocked, false},
		{"/captcha", retrieve.KindBlocked, false},
		{"/flaky", retrieve.KindHTTPError, true},
	}
	for _, tc := range cases {
		_, err := s.Fetch(ctx, ts.URL+tc.path)
		var re *retrieve.Error
		if !errors.As(err, &re) {
			t.Fatalf("%s: expected *retrieve.Error, got %v", tc.path, err)
		}
		if re.Kind != tc.kind {
			t.Fatalf("%s: expected kind %v, got %v", tc.path, tc.kind, re.Kind)
		}
		if re.Transient() != tc.transient {
			t.Fatalf("%s: expected transient=%t", tc.path, tc.transient)
		}
	}
}

func TestSplitProfileCandidates(t *testing.T) {
	t.Parallel()

	cands := []retrieve.Candidate{
		{Title: "a", URL: "https://www.linkedin.com/in/jane-doe"},
		{Title: "b", URL: "https://acme.example/about"},
		{Title: "c", URL: "https://www.LinkedIn.com/in/jane-doe/"},
		{Title: "d", URL: "https://www.linkedin.com/in/john-roe?trk=search"},
	}
	profiles, others := retrieve.SplitProfileCandidates(cands)
	if len(profiles) != 2 {
		t.Fatalf("expected 2 unique profiles, got %d: %+v", len(profiles), profiles)
	}
	if profiles[0].Title != "a" || profiles[1].Title != "d" {
		t.Fatalf("input order not preserved: %+v", profiles)
	}
	if len(others) != 1 || others[0].URL != "https://acme.example/about" {
		t.Fatalf("unexpected provenance rest: %+v", others)
	}
}
