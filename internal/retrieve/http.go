package retrieve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultSearchBaseURL = "https://html.duckduckgo.com/html/"
	defaultMaxBodyBytes  = 2 << 20 // cap reads; profile pages past 2MB are noise
)

// HTTPOptions configure the direct-HTTP strategy.
type HTTPOptions struct {
	// SearchBaseURL is the HTML search endpoint. Tests point this at a local
	// server; the default is the DuckDuckGo HTML endpoint.
	SearchBaseURL string
	Timeout       time.Duration
	MaxBodyBytes  int64
	Logger        *log.Logger
}

// HTTPStrategy searches and fetches over plain HTTP. Faster and less
// fingerprintable than the browser, but blind to JS-rendered content.
type HTTPStrategy struct {
	client    *http.Client
	policy    *Policy
	searchURL string
	maxBody   int64
	logger    *log.Logger
}

// NewHTTPStrategy builds the strategy around a shared Policy.
func NewHTTPStrategy(policy *Policy, opts HTTPOptions) *HTTPStrategy {
	if opts.SearchBaseURL == "" {
		opts.SearchBaseURL = defaultSearchBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &HTTPStrategy{
		client:    &http.Client{Timeout: opts.Timeout},
		policy:    policy,
		searchURL: strings.TrimRight(opts.SearchBaseURL, "?"),
		maxBody:   opts.MaxBodyBytes,
		logger:    opts.Logger,
	}
}

// Search runs one query against the HTML search endpoint and parses result
// entries defensively: a malformed entry is skipped, never fatal.
func (s *HTTPStrategy) Search(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	target := s.searchURL + "?q=" + url.QueryEscape(query)

	doc, err := s.getDocument(ctx, target)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	doc.Find("div.result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Find("a.result__a").First().Text())
		href, _ := sel.Find("a.result__a").First().Attr("href")
		href = decodeResultURL(href)
		if title == "" || href == "" {
			return true
		}
		out = append(out, Candidate{
			Title:       title,
			URL:         href,
			Snippet:     strings.TrimSpace(sel.Find("a.result__snippet").First().Text()),
			SourceQuery: query,
		})
		return len(out) < maxResults
	})

	s.logger.Printf("search %q: %d results", query, len(out))
	return out, nil
}

// Fetch retrieves one page. Failures are classified as *Error.
func (s *HTTPStrategy) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	html, err := s.getBody(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return &Page{URL: pageURL, HTML: html, FetchedAt: time.Now()}, nil
}

func (s *HTTPStrategy) getDocument(ctx context.Context, target string) (*goquery.Document, error) {
	body, err := s.getBody(ctx, target)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindHTTPError, URL: target, Err: err}
	}
	return doc, nil
}

func (s *HTTPStrategy) getBody(ctx context.Context, target string) (string, error) {
	host := hostOf(target)
	if err := s.policy.Wait(ctx, host); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", target, err)
	}
	req.Header.Set("User-Agent", s.policy.UserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", classifyTransportErr(target, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if clsErr := classifyStatus(target, resp.StatusCode); clsErr != nil {
		return "", clsErr
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return "", classifyTransportErr(target, err)
	}
	body := string(b)
	if looksBlocked(body) {
		return "", &Error{Kind: KindBlocked, URL: target, Status: resp.StatusCode}
	}
	return body, nil
}

func classifyTransportErr(target string, err error) *Error {
	kind := KindHTTPError
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, URL: target, Err: err}
}

// blockMarkers are challenge-page phrases that mean the source is refusing
// automated traffic even behind a 200.
var blockMarkers = []string{
	"detected unusual traffic",
	"g-recaptcha",
	"cf-challenge",
	"verify you are a human",
	"are you a robot",
}

func looksBlocked(body string) bool {
	if len(body) > 4096 {
		body = body[:4096]
	}
	lower := strings.ToLower(body)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// decodeResultURL unwraps the search engine's redirect links
// (//duckduckgo.com/l/?uddg=<encoded target>) to the real target.
func decodeResultURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || !strings.Contains(href, "uddg=") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return strings.ToLower(u.Host)
}
