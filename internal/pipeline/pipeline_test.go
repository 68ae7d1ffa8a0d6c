package pipeline_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leadscout/leadscout/internal/criteria"
	"github.com/leadscout/leadscout/internal/mocksite"
	"github.com/leadscout/leadscout/internal/pipeline"
	"github.com/leadscout/leadscout/internal/retrieve"
)

func newTestStrategy(t *testing.T, site *mocksite.Server) (*retrieve.HTTPStrategy, *retrieve.Policy, string) {
	t.Helper()
	srv := httptest.NewServer(site.Handler())
	t.Cleanup(srv.Close)

	policy := retrieve.NewPolicy(retrieve.PolicyOptions{
		BaseDelay:  time.Millisecond,
		UserAgents: []string{"test-agent/1.0"},
	})
	strategy := retrieve.NewHTTPStrategy(policy, retrieve.HTTPOptions{
		SearchBaseURL: srv.URL + "/html/",
	})
	return strategy, policy, srv.URL
}

func setResultsForAllQueries(site *mocksite.Server, text string, results []mocksite.Result) {
	for _, q := range criteria.Plan(criteria.Extract(text), criteria.DefaultMaxQueries) {
		site.SetResults(q, results)
	}
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	site := mocksite.New()
	strategy, policy, base := newTestStrategy(t, site)

	janeURL := base + "/linkedin.com/in/jane-doe"
	johnURL := base + "/linkedin.com/in/john-roe"
	site.SetPage("/linkedin.com/in/jane-doe", mocksite.ProfileHTML(
		"Jane Doe", "Founder at Acme", "Austin, TX",
		"Jane builds payment infrastructure for small teams across Texas.",
		"jane@acme.io",
	))
	site.SetPage("/linkedin.com/in/john-roe", mocksite.ProfileHTML(
		"John Roe", "CTO at BigCo", "Dallas, TX", "",
	))

	text := "Looking for founders of fintech startups in Austin"
	setResultsForAllQueries(site, text, []mocksite.Result{
		{Title: "Jane Doe - Founder", URL: janeURL, Snippet: "Founder at Acme"},
		{Title: "John Roe - CTO", URL: johnURL, Snippet: "CTO at BigCo"},
		{Title: "Fintech news roundup", URL: base + "/news/fintech", Snippet: "industry news"},
	})

	p := pipeline.New(strategy, pipeline.Options{Policy: policy, Workers: 2})
	leads, summary, err := p.Run(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(leads) != 2 {
		t.Fatalf("expected 2 leads, got %d: %+v", len(leads), leads)
	}
	jane := leads[0]
	if jane.Person.Name != "Jane Doe" {
		t.Fatalf("first lead should be first-seen candidate: %+v", jane.Person)
	}
	if jane.Person.CurrentPosition != "Founder" || jane.Person.CurrentCompany != "Acme" {
		t.Fatalf("headline not split: %+v", jane.Person)
	}
	if jane.Person.Location != "Austin, TX" {
		t.Fatalf("location missing: %+v", jane.Person)
	}
	if len(jane.Contact.Emails) != 1 || jane.Contact.Emails[0] != "jane@acme.io" {
		t.Fatalf("contact email not enriched: %+v", jane.Contact)
	}
	if len(jane.SourceQueries) == 0 {
		t.Fatalf("source queries not attached: %+v", jane)
	}

	if summary.Profiles != 2 {
		t.Fatalf("expected 2 profile candidates, got %d", summary.Profiles)
	}
	if summary.Fetched != 2 {
		t.Fatalf("expected 2 fetches, got %d", summary.Fetched)
	}
	if len(summary.Failures) != 0 {
		t.Fatalf("unexpected failures: %+v", summary.Failures)
	}
}

func TestRun_FailuresCountedLeadsSurvive(t *testing.T) {
	t.Parallel()

	site := mocksite.New()
	strategy, policy, base := newTestStrategy(t, site)

	site.SetPage("/linkedin.com/in/jane-doe", mocksite.ProfileHTML("Jane Doe", "Founder at Acme", "Austin, TX", ""))
	site.SetStatus("/linkedin.com/in/blocked", 403, "forbidden")
	// The third candidate's path is never registered, so it 404s.

	text := "startup founders in Austin"
	setResultsForAllQueries(site, text, []mocksite.Result{
		{Title: "Jane Doe", URL: base + "/linkedin.com/in/jane-doe", Snippet: "Founder"},
		{Title: "Blocked", URL: base + "/linkedin.com/in/blocked", Snippet: "x"},
		{Title: "Gone", URL: base + "/linkedin.com/in/gone", Snippet: "x"},
	})

	p := pipeline.New(strategy, pipeline.Options{Policy: policy})
	leads, summary, err := p.Run(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(leads) != 1 || leads[0].Person.Name != "Jane Doe" {
		t.Fatalf("surviving lead missing: %+v", leads)
	}
	if summary.Blocked != 1 {
		t.Fatalf("expected 1 blocked, got %d", summary.Blocked)
	}
	if len(summary.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %+v", summary.Failures)
	}
}

func TestRun_TotalFailureYieldsEmptySetWithSummary(t *testing.T) {
	t.Parallel()

	site := mocksite.New()
	strategy, policy, base := newTestStrategy(t, site)

	site.SetStatus("/linkedin.com/in/a", 403, "forbidden")
	site.SetStatus("/linkedin.com/in/b", 403, "forbidden")

	text := "startup founders in Austin"
	setResultsForAllQueries(site, text, []mocksite.Result{
		{Title: "A", URL: base + "/linkedin.com/in/a", Snippet: "x"},
		{Title: "B", URL: base + "/linkedin.com/in/b", Snippet: "x"},
	})

	p := pipeline.New(strategy, pipeline.Options{Policy: policy})
	leads, summary, err := p.Run(context.Background(), text)
	if err != nil {
		t.Fatalf("total failure must not be an error: %v", err)
	}
	if len(leads) != 0 {
		t.Fatalf("expected empty lead set, got %+v", leads)
	}
	if summary.Blocked != 2 || len(summary.Failures) != 2 {
		t.Fatalf("summary must account for every failure: %+v", summary)
	}
}

func TestRun_TransientFetchRetried(t *testing.T) {
	t.Parallel()

	site := mocksite.New()
	strategy, policy, base := newTestStrategy(t, site)

	site.SetPage("/linkedin.com/in/jane-doe", mocksite.ProfileHTML("Jane Doe", "Founder at Acme", "Austin, TX", ""))
	site.FailFirst("/linkedin.com/in/jane-doe", 1)

	text := "startup founders in Austin"
	setResultsForAllQueries(site, text, []mocksite.Result{
		{Title: "Jane Doe", URL: base + "/linkedin.com/in/jane-doe", Snippet: "Founder"},
	})

	p := pipeline.New(strategy, pipeline.Options{Policy: policy, MaxRetries: 2})
	leads, summary, err := p.Run(context.Background(), text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("retry did not recover the fetch: %+v", summary.Failures)
	}
	if summary.Fetched != 1 {
		t.Fatalf("expected 1 fetched, got %d", summary.Fetched)
	}
}

func TestRunNames_ProfilePlusContactScan(t *testing.T) {
	t.Parallel()

	site := mocksite.New()
	strategy, policy, base := newTestStrategy(t, site)

	site.SetPage("/linkedin.com/in/jane-doe", mocksite.ProfileHTML("Jane Doe", "Founder at Acme", "Austin, TX", ""))
	site.SetPage("/acme/team", `<html><body><p>Reach Jane at jane@acme.io or call 512-555-0188.</p></body></html>`)

	query := criteria.PlanPerson("Jane Doe", "Acme")
	site.SetResults(query, []mocksite.Result{
		{Title: "Jane Doe - Founder", URL: base + "/linkedin.com/in/jane-doe", Snippet: "Founder at Acme"},
		{Title: "Acme team page", URL: base + "/acme/team", Snippet: "our team"},
	})

	p := pipeline.New(strategy, pipeline.Options{Policy: policy})
	leads, summary, err := p.RunNames(context.Background(), []string{"Jane Doe"}, "Acme", "Founder")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(leads) != 1 {
		t.Fatalf("profile record and contact-scan record must merge into one lead: %+v", leads)
	}
	got := leads[0]
	if got.Person.Name != "Jane Doe" || got.Person.CurrentCompany != "Acme" {
		t.Fatalf("person fields wrong: %+v", got.Person)
	}
	if len(got.Contact.Emails) != 1 || got.Contact.Emails[0] != "jane@acme.io" {
		t.Fatalf("contact scan emails not merged: %+v", got.Contact)
	}
	if len(got.Contact.Phones) != 1 {
		t.Fatalf("contact scan phones not merged: %+v", got.Contact)
	}
	if summary.Fetched != 2 {
		t.Fatalf("expected profile + team page fetches, got %d", summary.Fetched)
	}
}

func TestRunNames_SeedsLeadWhenNothingFound(t *testing.T) {
	t.Parallel()

	site := mocksite.New()
	strategy, policy, _ := newTestStrategy(t, site)

	p := pipeline.New(strategy, pipeline.Options{Policy: policy})
	leads, _, err := p.RunNames(context.Background(), []string{"Jane Doe"}, "Acme", "Founder")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("named person must appear even without results: %+v", leads)
	}
	if leads[0].Person.Name != "Jane Doe" || leads[0].Person.CurrentPosition != "Founder" {
		t.Fatalf("seed record wrong: %+v", leads[0].Person)
	}
}

func TestRunCompany_BackfillsCompanyAndHonorsLimit(t *testing.T) {
	t.Parallel()

	site := mocksite.New()
	strategy, policy, base := newTestStrategy(t, site)

	// Headlines without a separator leave the extracted company empty.
	site.SetPage("/linkedin.com/in/jane-doe", mocksite.ProfileHTML("Jane Doe", "Chief Executive", "Austin, TX", ""))
	site.SetPage("/linkedin.com/in/john-roe", mocksite.ProfileHTML("John Roe", "Engineering leader", "Dallas, TX", ""))

	for _, title := range pipeline.DefaultCompanyTitles {
		site.SetResults(criteria.PlanCompanyEmployees("Acme", title), []mocksite.Result{
			{Title: "Jane Doe", URL: base + "/linkedin.com/in/jane-doe", Snippet: "x"},
			{Title: "John Roe", URL: base + "/linkedin.com/in/john-roe", Snippet: "x"},
		})
	}

	p := pipeline.New(strategy, pipeline.Options{Policy: policy})
	leads, _, err := p.RunCompany(context.Background(), "Acme", nil, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leads) != 1 {
		t.Fatalf("limit not honored: %+v", leads)
	}
	if leads[0].Person.CurrentCompany != "Acme" {
		t.Fatalf("company not backfilled: %+v", leads[0].Person)
	}
}

func TestRun_Cancellation(t *testing.T) {
	t.Parallel()

	site := mocksite.New()
	strategy, policy, base := newTestStrategy(t, site)

	site.SetPage("/linkedin.com/in/jane-doe", mocksite.ProfileHTML("Jane Doe", "Founder at Acme", "Austin, TX", ""))
	text := "startup founders in Austin"
	setResultsForAllQueries(site, text, []mocksite.Result{
		{Title: "Jane Doe", URL: base + "/linkedin.com/in/jane-doe", Snippet: "Founder"},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := pipeline.New(strategy, pipeline.Options{Policy: policy})
	_, _, err := p.Run(ctx, text)
	if err == nil {
		t.Fatal("cancelled run must report an error")
	}
}
