// Package retrieve executes search queries and fetches candidate pages from
// external sources under a shared rate-limit and identity-rotation policy.
// Two interchangeable strategies implement the same contract: a direct-HTTP
// client and a chromedp-driven browser.
package retrieve

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Candidate is one search-result entry, prior to fetch and extraction.
type Candidate struct {
	Title       string
	URL         string
	Snippet     string
	SourceQuery string
}

// Page is the raw content of one fetched URL.
type Page struct {
	URL       string
	HTML      string
	FetchedAt time.Time
}

// Strategy is one concrete way of searching and fetching. Implementations
// must apply the shared Policy before every outbound request and classify
// every failure as an *Error.
type Strategy interface {
	Search(ctx context.Context, query string, maxResults int) ([]Candidate, error)
	Fetch(ctx context.Context, pageURL string) (*Page, error)
}

// profileURLMarker identifies candidate URLs that point at a person profile.
const profileURLMarker = "linkedin.com/in/"

// IsProfileURL reports whether a candidate URL matches the profile source.
func IsProfileURL(raw string) bool {
	return strings.Contains(strings.ToLower(raw), profileURLMarker)
}

// SplitProfileCandidates partitions candidates into profile-source matches
// (deduplicated by normalized URL, input order preserved) and the rest, which
// are kept for provenance only.
func SplitProfileCandidates(cands []Candidate) (profiles, others []Candidate) {
	seen := map[string]bool{}
	for _, c := range cands {
		if !IsProfileURL(c.URL) {
			others = append(others, c)
			continue
		}
		key := NormalizeURL(c.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		profiles = append(profiles, c)
	}
	return profiles, others
}

// NormalizeURL canonicalizes a URL for deduplication: lowercased scheme and
// host, query and fragment stripped, trailing slash trimmed.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.TrimSpace(strings.ToLower(raw)), "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/")
}
