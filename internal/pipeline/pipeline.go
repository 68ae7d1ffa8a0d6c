// Package pipeline wires criteria extraction, query planning, retrieval,
// profile extraction, contact enrichment, and merging into complete runs.
// Per-candidate failures are recovered and counted; only cancellation and
// fail-fast policy abort a run.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/leadscout/leadscout/internal/contact"
	"github.com/leadscout/leadscout/internal/criteria"
	"github.com/leadscout/leadscout/internal/lead"
	"github.com/leadscout/leadscout/internal/profile"
	"github.com/leadscout/leadscout/internal/retrieve"
	"github.com/leadscout/leadscout/internal/worker"
)

// DefaultCompanyTitles seed the per-title employee search when the caller
// does not narrow by title.
var DefaultCompanyTitles = []string{"CEO", "CTO", "VP", "Director", "Manager"}

// Options configure one pipeline instance.
type Options struct {
	// Policy is the shared retrieval policy; when set, each run starts a
	// fresh identity session.
	Policy *retrieve.Policy

	MaxQueries         int
	MaxResultsPerQuery int
	// MaxLeads bounds how many profile candidates are fetched per run.
	MaxLeads int

	Workers        int
	MaxRetries     int
	RequestTimeout time.Duration
	FailFast       bool

	// VerifyEmailDomains gates extracted emails on a live MX lookup.
	VerifyEmailDomains bool

	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxQueries <= 0 {
		o.MaxQueries = criteria.DefaultMaxQueries
	}
	if o.MaxResultsPerQuery <= 0 {
		o.MaxResultsPerQuery = 10
	}
	if o.MaxLeads <= 0 {
		o.MaxLeads = 10
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
	return o
}

// Failure records one candidate that could not be fetched or parsed.
type Failure struct {
	URL   string `json:"url"`
	Query string `json:"query,omitempty"`
	Kind  string `json:"kind"`
	Err   string `json:"error"`
}

// RunSummary is the retrievable account of what a run did, including the
// failure breakdown when the lead set comes back empty.
type RunSummary struct {
	Criteria   criteria.SearchCriteria `json:"criteria"`
	Queries    []string                `json:"queries"`
	Candidates int                     `json:"candidates"`
	Profiles   int                     `json:"profiles"`
	Fetched    int                     `json:"fetched"`
	Blocked    int                     `json:"blocked"`
	Failures   []Failure               `json:"failures,omitempty"`
	Duration   time.Duration           `json:"duration"`
}

// Pipeline runs lead acquisition against one retrieval strategy.
type Pipeline struct {
	strategy retrieve.Strategy
	enricher contact.Enricher
	opts     Options
	logger   *log.Logger
}

// New builds a pipeline around a strategy.
func New(strategy retrieve.Strategy, opts Options) *Pipeline {
	opts = opts.withDefaults()
	p := &Pipeline{
		strategy: strategy,
		opts:     opts,
		logger:   opts.Logger,
	}
	if opts.VerifyEmailDomains {
		p.enricher.Verifier = contact.NewDomainVerifier().Verify
	}
	return p
}

// Run executes a free-text run: derive criteria, plan queries, search,
// filter to profile candidates, fetch, extract, enrich, merge.
func (p *Pipeline) Run(ctx context.Context, text string) ([]lead.Lead, RunSummary, error) {
	start := time.Now()
	p.startSession()

	crit := criteria.Extract(text)
	queries := criteria.Plan(crit, p.opts.MaxQueries)
	summary := RunSummary{Criteria: crit, Queries: queries}

	candidates := p.searchAll(ctx, queries, &summary)
	profiles, others := retrieve.SplitProfileCandidates(candidates)
	summary.Candidates = len(candidates)
	summary.Profiles = len(profiles)
	p.logger.Printf("run: %d candidates, %d profile matches, %d provenance-only", len(candidates), len(profiles), len(others))

	if len(profiles) > p.opts.MaxLeads {
		profiles = profiles[:p.opts.MaxLeads]
	}

	records, contacts, err := p.fetchAndExtract(ctx, profiles, &summary)
	if err != nil {
		summary.Duration = time.Since(start)
		return nil, summary, err
	}

	leads := lead.Merge(records, contacts)
	attachSourceQueries(leads, candidates)
	summary.Duration = time.Since(start)
	return leads, summary, nil
}

// RunNames looks up each named person: a profile-restricted search, the
// profile fetch, and a contact scan over the top non-profile results.
func (p *Pipeline) RunNames(ctx context.Context, names []string, company, title string) ([]lead.Lead, RunSummary, error) {
	start := time.Now()
	p.startSession()

	var summary RunSummary
	var records []profile.PersonRecord
	contacts := map[string]contact.ContactInfo{}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			return nil, summary, err
		}

		query := criteria.PlanPerson(name, company)
		summary.Queries = append(summary.Queries, query)

		// Seed the lead so the person appears even when retrieval comes up
		// empty for them.
		records = append(records, profile.PersonRecord{
			Name:            name,
			CurrentCompany:  company,
			CurrentPosition: title,
		})

		cands, err := p.strategy.Search(ctx, query, p.opts.MaxResultsPerQuery)
		if err != nil {
			p.recordFailure(&summary, Failure{URL: query, Query: query, Kind: failureKind(err), Err: err.Error()})
			continue
		}
		summary.Candidates += len(cands)
		profileCands, others := retrieve.SplitProfileCandidates(cands)
		summary.Profiles += len(profileCands)

		if len(profileCands) > 0 {
			if rec, info, ok := p.fetchOne(ctx, profileCands[0], &summary); ok {
				records = append(records, rec)
				contacts[rec.SourceURL] = info
			}
		}

		// Personal sites and team pages carry the addresses the profile
		// page withholds.
		scanned := 0
		for _, cand := range others {
			if scanned == 3 {
				break
			}
			scanned++
			page, err := p.strategy.Fetch(ctx, cand.URL)
			if err != nil {
				p.recordFailure(&summary, Failure{URL: cand.URL, Query: cand.SourceQuery, Kind: failureKind(err), Err: err.Error()})
				continue
			}
			summary.Fetched++
			info := p.enricher.Enrich(page)
			if info.IsEmpty() {
				continue
			}
			contacts[cand.URL] = info
			records = append(records, profile.PersonRecord{
				Name:           name,
				CurrentCompany: company,
				SourceURL:      cand.URL,
			})
		}
	}

	leads := lead.Merge(records, contacts)
	summary.Duration = time.Since(start)
	return leads, summary, nil
}

// RunCompany discovers employees of one company across the given titles.
func (p *Pipeline) RunCompany(ctx context.Context, company string, titles []string, limit int) ([]lead.Lead, RunSummary, error) {
	start := time.Now()
	p.startSession()

	if len(titles) == 0 {
		titles = DefaultCompanyTitles
	}
	if limit <= 0 {
		limit = p.opts.MaxLeads
	}

	var summary RunSummary
	queries := make([]string, 0, len(titles))
	for _, title := range titles {
		queries = append(queries, criteria.PlanCompanyEmployees(company, title))
	}
	summary.Queries = queries

	candidates := p.searchAll(ctx, queries, &summary)
	profiles, _ := retrieve.SplitProfileCandidates(candidates)
	summary.Candidates = len(candidates)
	summary.Profiles = len(profiles)

	if len(profiles) > limit {
		profiles = profiles[:limit]
	}

	records, contacts, err := p.fetchAndExtract(ctx, profiles, &summary)
	if err != nil {
		summary.Duration = time.Since(start)
		return nil, summary, err
	}
	for i := range records {
		if records[i].CurrentCompany == "" {
			records[i].CurrentCompany = company
		}
	}

	leads := lead.Merge(records, contacts)
	attachSourceQueries(leads, candidates)
	summary.Duration = time.Since(start)
	return leads, summary, nil
}

func (p *Pipeline) startSession() {
	if p.opts.Policy != nil {
		p.opts.Policy.RotateSession()
	}
}

// searchAll runs every planned query, tolerating per-query failures.
func (p *Pipeline) searchAll(ctx context.Context, queries []string, summary *RunSummary) []retrieve.Candidate {
	var out []retrieve.Candidate
	for _, q := range queries {
		if ctx.Err() != nil {
			return out
		}
		cands, err := p.strategy.Search(ctx, q, p.opts.MaxResultsPerQuery)
		if err != nil {
			p.recordFailure(summary, Failure{URL: q, Query: q, Kind: failureKind(err), Err: err.Error()})
			continue
		}
		out = append(out, cands...)
	}
	return out
}

// fetchAndExtract fetches profile candidates through the worker pool and
// turns each page into a record plus contact info. Records come back in
// candidate-rank order regardless of fetch completion order.
func (p *Pipeline) fetchAndExtract(
	ctx context.Context,
	cands []retrieve.Candidate,
	summary *RunSummary,
) ([]profile.PersonRecord, map[string]contact.ContactInfo, error) {
	policy := worker.FailurePolicyPartialOutput
	if p.opts.FailFast {
		policy = worker.FailurePolicyFailFast
	}

	results, err := worker.ProcessAll(ctx, cands, func(ctx context.Context, cand retrieve.Candidate) (*retrieve.Page, error) {
		return p.strategy.Fetch(ctx, cand.URL)
	}, worker.Options{
		Workers:        p.opts.Workers,
		MaxRetries:     p.opts.MaxRetries,
		RequestTimeout: p.opts.RequestTimeout,
		FailurePolicy:  policy,
	})
	if err != nil {
		return nil, nil, err
	}

	var records []profile.PersonRecord
	contacts := make(map[string]contact.ContactInfo)
	for _, res := range results {
		if res.Err != nil {
			p.recordFailure(summary, Failure{
				URL:   res.Input.URL,
				Query: res.Input.SourceQuery,
				Kind:  failureKind(res.Err),
				Err:   res.Err.Error(),
			})
			continue
		}
		summary.Fetched++

		rec, err := profile.Extract(res.Output)
		if err != nil {
			p.recordFailure(summary, Failure{
				URL:   res.Input.URL,
				Query: res.Input.SourceQuery,
				Kind:  "malformed_page",
				Err:   err.Error(),
			})
			continue
		}
		records = append(records, rec)

		if info := p.enricher.Enrich(res.Output); !info.IsEmpty() {
			contacts[rec.SourceURL] = info
		}
	}
	return records, contacts, nil
}

// fetchOne fetches and extracts a single candidate outside the pool.
func (p *Pipeline) fetchOne(ctx context.Context, cand retrieve.Candidate, summary *RunSummary) (profile.PersonRecord, contact.ContactInfo, bool) {
	page, err := p.strategy.Fetch(ctx, cand.URL)
	if err != nil {
		p.recordFailure(summary, Failure{URL: cand.URL, Query: cand.SourceQuery, Kind: failureKind(err), Err: err.Error()})
		return profile.PersonRecord{}, contact.ContactInfo{}, false
	}
	summary.Fetched++

	rec, err := profile.Extract(page)
	if err != nil {
		p.recordFailure(summary, Failure{URL: cand.URL, Query: cand.SourceQuery, Kind: "malformed_page", Err: err.Error()})
		return profile.PersonRecord{}, contact.ContactInfo{}, false
	}
	return rec, p.enricher.Enrich(page), true
}

func (p *Pipeline) recordFailure(summary *RunSummary, f Failure) {
	if f.Kind == retrieve.KindBlocked.String() {
		summary.Blocked++
	}
	summary.Failures = append(summary.Failures, f)
	p.logger.Printf("candidate failed: url=%s kind=%s err=%s", f.URL, f.Kind, f.Err)
}

func failureKind(err error) string {
	var re *retrieve.Error
	if errors.As(err, &re) {
		return re.Kind.String()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retrieve.KindTimeout.String()
	}
	return "error"
}

// attachSourceQueries maps each lead's profile URL back to the planned
// queries that surfaced it.
func attachSourceQueries(leads []lead.Lead, cands []retrieve.Candidate) {
	queriesByURL := map[string][]string{}
	for _, cand := range cands {
		key := retrieve.NormalizeURL(cand.URL)
		qs := queriesByURL[key]
		seen := false
		for _, q := range qs {
			if q == cand.SourceQuery {
				seen = true
				break
			}
		}
		if !seen && cand.SourceQuery != "" {
			queriesByURL[key] = append(qs, cand.SourceQuery)
		}
	}
	for i := range leads {
		if leads[i].ProfileURL == "" {
			continue
		}
		leads[i].SourceQueries = queriesByURL[leads[i].ProfileURL]
	}
}
