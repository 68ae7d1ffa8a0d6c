package retrieve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// Credentials optionally authenticate the browser session against the
// profile source. Guest mode when absent.
type Credentials struct {
	Email    string
	Password string
}

// BrowserOptions configure the chromedp strategy.
type BrowserOptions struct {
	Headless bool
	// ExecPath overrides browser discovery; defaults to $CHROME_PATH.
	ExecPath      string
	NavTimeout    time.Duration
	SearchBaseURL string
	Credentials   *Credentials
	Logger        *log.Logger
}

const defaultBrowserSearchURL = "https://www.google.com/search"

// BrowserStrategy renders pages in a real browser. Higher fidelity on
// JS-heavy pages than HTTPStrategy, at the cost of a visible fingerprint and
// a running Chrome. Start must be called before Search/Fetch.
type BrowserStrategy struct {
	policy *Policy
	opts   BrowserOptions

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	loggedIn      bool
}

// NewBrowserStrategy builds the strategy around a shared Policy.
func NewBrowserStrategy(policy *Policy, opts BrowserOptions) *BrowserStrategy {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}
	if opts.SearchBaseURL == "" {
		opts.SearchBaseURL = defaultBrowserSearchURL
	}
	if opts.ExecPath == "" {
		opts.ExecPath = os.Getenv("CHROME_PATH")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &BrowserStrategy{policy: policy, opts: opts}
}

// Start launches the browser. A browser that cannot launch is fatal to the
// run, so the error is returned as-is rather than classified.
func (s *BrowserStrategy) Start(ctx context.Context) error {
	allocOpts := append([]chromedp.ExecAllocatorOption{},
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("headless", s.opts.Headless),
		chromedp.UserAgent(s.policy.UserAgent()),
		chromedp.WindowSize(1365, 768),
	)
	if s.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(s.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("launch browser: %w", err)
	}

	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel

	if s.opts.Credentials != nil && s.opts.Credentials.Email != "" {
		if err := s.login(ctx); err != nil {
			s.opts.Logger.Printf("login failed, continuing in guest mode: %v", err)
		}
	}
	return nil
}

// Close tears the browser down. Safe to call multiple times.
func (s *BrowserStrategy) Close() {
	if s.browserCancel != nil {
		s.browserCancel()
		s.browserCancel = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
	}
}

// login authenticates against the profile source with the configured
// credentials. A feed URL after submit means success.
func (s *BrowserStrategy) login(ctx context.Context) error {
	runCtx, cancel := s.opCtx(ctx)
	defer cancel()

	var currentURL string
	err := chromedp.Run(runCtx,
		chromedp.Navigate("https://www.linkedin.com/login"),
		chromedp.WaitVisible(`#username`, chromedp.ByID),
		chromedp.SendKeys(`#username`, s.opts.Credentials.Email, chromedp.ByID),
		chromedp.SendKeys(`#password`, s.opts.Credentials.Password, chromedp.ByID),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
		chromedp.Sleep(5*time.Second),
		chromedp.Location(&currentURL),
	)
	if err != nil {
		return err
	}
	if !strings.Contains(currentURL, "feed") {
		return fmt.Errorf("login did not reach feed (landed on %s)", currentURL)
	}
	s.loggedIn = true
	s.opts.Logger.Printf("authenticated session established")
	return nil
}

// LoggedIn reports whether the session authenticated during Start.
func (s *BrowserStrategy) LoggedIn() bool { return s.loggedIn }

// Search renders a results page and extracts entries, skipping any entry
// with a missing heading or link.
func (s *BrowserStrategy) Search(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	target := s.opts.SearchBaseURL + "?q=" + url.QueryEscape(query)

	html, err := s.render(ctx, target)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &Error{Kind: KindHTTPError, URL: target, Err: err}
	}

	var out []Candidate
	doc.Find("div.g").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Find("h3").First().Text())
		href, _ := sel.Find("a[href]").First().Attr("href")
		if title == "" || !strings.HasPrefix(href, "http") {
			return true
		}
		out = append(out, Candidate{
			Title:       title,
			URL:         href,
			Snippet:     strings.TrimSpace(sel.Find("div[data-sncf], span.aCOpRe").First().Text()),
			SourceQuery: query,
		})
		return len(out) < maxResults
	})

	s.logger().Printf("browser search %q: %d results", query, len(out))
	return out, nil
}

// Fetch navigates to a page and captures its rendered HTML.
func (s *BrowserStrategy) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	html, err := s.render(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return &Page{URL: pageURL, HTML: html, FetchedAt: time.Now()}, nil
}

func (s *BrowserStrategy) render(ctx context.Context, target string) (string, error) {
	if s.browserCtx == nil {
		return "", fmt.Errorf("browser not started")
	}
	if err := s.policy.Wait(ctx, hostOf(target)); err != nil {
		return "", err
	}

	runCtx, cancel := s.opCtx(ctx)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &Error{Kind: KindTimeout, URL: target, Err: err}
		}
		return "", &Error{Kind: KindHTTPError, URL: target, Err: err}
	}
	if looksBlocked(html) || strings.Contains(html, "captcha-form") {
		return "", &Error{Kind: KindBlocked, URL: target}
	}
	return html, nil
}

// opCtx derives a per-operation tab context honoring both the caller's
// cancellation and the navigation timeout.
func (s *BrowserStrategy) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	tabCtx, tabCancel := context.WithTimeout(s.browserCtx, s.opts.NavTimeout)
	stop := context.AfterFunc(ctx, tabCancel)
	return tabCtx, func() {
		stop()
		tabCancel()
	}
}

func (s *BrowserStrategy) logger() *log.Logger { return s.opts.Logger }
