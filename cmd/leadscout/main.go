package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/leadscout/leadscout/internal/config"
	"github.com/leadscout/leadscout/internal/export"
	"github.com/leadscout/leadscout/internal/lead"
	"github.com/leadscout/leadscout/internal/pipeline"
	"github.com/leadscout/leadscout/internal/retrieve"
	"github.com/leadscout/leadscout/internal/util"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "query":
		os.Exit(runQuery(ctx, os.Args[2:]))
	case "names":
		os.Exit(runNames(ctx, os.Args[2:]))
	case "company":
		os.Exit(runCompany(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

// commonFlags binds the flags every subcommand shares, defaulted from the
// resolved config.
type commonFlags struct {
	configPath string
	strategy   string
	workers    int
	maxRetries int
	timeout    time.Duration
	maxResults int
	maxLeads   int
	failFast   bool
	verify     bool
	format     string
	outDir     string
	verbose    bool
}

func bindCommon(fs *flag.FlagSet, cfg config.Config, f *commonFlags) {
	fs.StringVar(&f.configPath, "config", "", "Optional YAML config file path")
	fs.StringVar(&f.strategy, "strategy", cfg.Strategy, "Retrieval strategy: http or browser (env: SEARCH_STRATEGY)")
	fs.IntVar(&f.workers, "workers", cfg.Workers, "Concurrent fetch workers (env: WORKERS)")
	fs.IntVar(&f.maxRetries, "max-retries", cfg.MaxRetries, "Max retries per page for transient failures (env: MAX_RETRIES)")
	fs.DurationVar(&f.timeout, "request-timeout", cfg.RequestTimeout, "Per-page request timeout (env: TIMEOUT)")
	fs.IntVar(&f.maxResults, "max-results", cfg.MaxResultsPerQuery, "Max results per search query (env: MAX_RESULTS_PER_SEARCH)")
	fs.IntVar(&f.maxLeads, "max-leads", cfg.MaxLeads, "Max profiles fetched per run (env: MAX_LEADS)")
	fs.BoolVar(&f.failFast, "fail-fast", cfg.FailFast, "Stop on first fetch error (env: FAIL_FAST)")
	fs.BoolVar(&f.verify, "verify-domains", cfg.VerifyEmailDomains, "Verify email domains via MX lookup (env: VERIFY_EMAIL_DOMAINS)")
	fs.StringVar(&f.format, "format", cfg.OutputFormat, "Output format: csv, json, or excel (env: OUTPUT_FORMAT)")
	fs.StringVar(&f.outDir, "output-dir", cfg.OutputDir, "Output directory (env: OUTPUT_DIRECTORY)")
	fs.BoolVar(&f.verbose, "verbose", false, "Log progress to stderr")
}

// setup builds the policy, strategy, and pipeline from resolved flags. The
// returned cleanup stops the browser when one was started.
func setup(ctx context.Context, cfg config.Config, f commonFlags) (*pipeline.Pipeline, func(), error) {
	logger := log.New(io.Discard, "", 0)
	if f.verbose {
		logger = log.New(os.Stderr, "leadscout: ", log.LstdFlags)
	}

	policy := retrieve.NewPolicy(retrieve.PolicyOptions{
		BaseDelay:  cfg.BaseDelay,
		JitterFrac: cfg.JitterFrac,
	})

	var strategy retrieve.Strategy
	cleanup := func() {}
	switch f.strategy {
	case config.StrategyHTTP:
		strategy = retrieve.NewHTTPStrategy(policy, retrieve.HTTPOptions{
			SearchBaseURL: cfg.SearchBaseURL,
			Timeout:       f.timeout,
			Logger:        logger,
		})
	case config.StrategyBrowser:
		var creds *retrieve.Credentials
		if cfg.LinkedInEmail != "" && cfg.LinkedInPassword != "" {
			creds = &retrieve.Credentials{Email: cfg.LinkedInEmail, Password: cfg.LinkedInPassword}
		}
		browser := retrieve.NewBrowserStrategy(policy, retrieve.BrowserOptions{
			Headless:      cfg.Headless,
			ExecPath:      cfg.ChromePath,
			NavTimeout:    f.timeout,
			SearchBaseURL: cfg.SearchBaseURL,
			Credentials:   creds,
			Logger:        logger,
		})
		if err := browser.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("start browser: %w", err)
		}
		strategy = browser
		cleanup = browser.Close
	default:
		return nil, nil, fmt.Errorf("unknown strategy %q", f.strategy)
	}

	p := pipeline.New(strategy, pipeline.Options{
		Policy:             policy,
		MaxResultsPerQuery: f.maxResults,
		MaxLeads:           f.maxLeads,
		MaxQueries:         cfg.MaxQueries,
		Workers:            f.workers,
		MaxRetries:         f.maxRetries,
		RequestTimeout:     f.timeout,
		FailFast:           f.failFast,
		VerifyEmailDomains: f.verify,
		Logger:             logger,
	})
	return p, cleanup, nil
}

func runQuery(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	cfg, err := config.Load(peekConfigPath(args))
	if err != nil {
		return configError(err)
	}
	var f commonFlags
	bindCommon(fs, cfg, &f)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		_, _ = fmt.Fprintln(os.Stderr, "query requires the search text as positional arguments")
		return 2
	}

	p, cleanup, err := setup(ctx, cfg, f)
	if err != nil {
		return fatal(err)
	}
	defer cleanup()

	leads, summary, err := p.Run(ctx, text)
	if err != nil {
		return fatal(err)
	}
	return finish(leads, summary, f)
}

func runNames(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("names", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	cfg, err := config.Load(peekConfigPath(args))
	if err != nil {
		return configError(err)
	}
	var f commonFlags
	bindCommon(fs, cfg, &f)
	var inputPath string
	var company string
	var title string
	fs.StringVar(&inputPath, "input", "", "Input CSV file path (must include a 'name' column)")
	fs.StringVar(&company, "company", "", "Company to pair with each name")
	fs.StringVar(&title, "title", "", "Title to seed each lead with")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var names []string
	if inputPath != "" {
		file, err := os.Open(inputPath)
		if err != nil {
			return fatal(fmt.Errorf("open input: %w", err))
		}
		names, err = export.ReadNamesCSV(file)
		_ = file.Close()
		if err != nil {
			return fatal(fmt.Errorf("read input: %w", err))
		}
	}
	for _, arg := range fs.Args() {
		if arg = strings.TrimSpace(arg); arg != "" {
			names = append(names, arg)
		}
	}
	if len(names) == 0 {
		_, _ = fmt.Fprintln(os.Stderr, "names requires --input or positional names")
		return 2
	}

	p, cleanup, err := setup(ctx, cfg, f)
	if err != nil {
		return fatal(err)
	}
	defer cleanup()

	leads, summary, err := p.RunNames(ctx, names, company, title)
	if err != nil {
		return fatal(err)
	}
	return finish(leads, summary, f)
}

func runCompany(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("company", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	cfg, err := config.Load(peekConfigPath(args))
	if err != nil {
		return configError(err)
	}
	var f commonFlags
	bindCommon(fs, cfg, &f)
	var titles string
	var limit int
	fs.StringVar(&titles, "titles", "", "Comma-separated titles to search (default: common leadership titles)")
	fs.IntVar(&limit, "limit", 0, "Max employees to fetch (default: --max-leads)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	company := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if company == "" {
		_, _ = fmt.Fprintln(os.Stderr, "company requires the company name as positional arguments")
		return 2
	}

	var titleList []string
	for _, t := range strings.Split(titles, ",") {
		if t = strings.TrimSpace(t); t != "" {
			titleList = append(titleList, t)
		}
	}

	p, cleanup, err := setup(ctx, cfg, f)
	if err != nil {
		return fatal(err)
	}
	defer cleanup()

	leads, summary, err := p.RunCompany(ctx, company, titleList, limit)
	if err != nil {
		return fatal(err)
	}
	return finish(leads, summary, f)
}

// finish exports the lead set and prints the run report.
func finish(leads []lead.Lead, summary pipeline.RunSummary, f commonFlags) int {
	path, err := export.WriteFile(f.outDir, "leads", f.format, leads)
	if err != nil {
		return fatal(err)
	}

	s := export.Summarize(leads)
	fmt.Printf("wrote %s\n", path)
	fmt.Printf("leads: %d (%d with emails, %d with profiles), emails: %d, companies: %d\n",
		s.TotalLeads, s.LeadsWithEmails, s.LeadsWithProfile, s.TotalEmails, s.UniqueCompanies)
	if len(summary.Failures) > 0 {
		fmt.Printf("failures: %d (%d blocked); run with --verbose for details\n",
			len(summary.Failures), summary.Blocked)
	}
	return 0
}

// peekConfigPath pre-scans args for --config so the config file can seed
// flag defaults before the flag set parses.
func peekConfigPath(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "-config" || arg == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, "-config="):
			return strings.TrimPrefix(arg, "-config=")
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

func configError(err error) int {
	_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
	return 2
}

func fatal(err error) int {
	_, _ = fmt.Fprintf(os.Stderr, "leadscout: %s\n", util.RedactSecrets(err.Error()))
	return 1
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `leadscout: search-driven lead acquisition pipeline

Usage:
  leadscout <command> [flags] [args]

Commands:
  query    Find leads from a free-text description
           leadscout query "founders of fintech startups in Austin"
  names    Look up specific people by name
           leadscout names --company Acme "Jane Doe" "John Roe"
           leadscout names --input people.csv --company Acme
  company  Discover employees of one company
           leadscout company --titles CEO,CTO Acme

Common flags:
  --strategy         http (default) or browser
  --format           csv (default), json, or excel
  --output-dir       Output directory (default: output)
  --workers          Concurrent fetch workers
  --verify-domains   Verify email domains via MX lookup
  --config           Optional YAML config file

Environment:
  SEARCH_STRATEGY, HEADLESS_MODE, CHROME_PATH, DELAY_BETWEEN_REQUESTS,
  TIMEOUT, MAX_RESULTS_PER_SEARCH, MAX_LEADS, WORKERS, MAX_RETRIES,
  FAIL_FAST, VERIFY_EMAIL_DOMAINS, OUTPUT_FORMAT, OUTPUT_DIRECTORY,
  LINKEDIN_EMAIL, LINKEDIN_PASSWORD (browser login, optional)

A .env file in the working directory is loaded first; real environment
variables win over it.

`)
}
