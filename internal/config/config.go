// Package config resolves runtime settings from defaults, a .env file, the
// process environment, and an optional YAML file, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Strategy selector values.
const (
	StrategyHTTP    = "http"
	StrategyBrowser = "browser"
)

// Config holds every tunable the pipeline and exporters read.
type Config struct {
	// Strategy selects the retrieval backend: "http" or "browser".
	Strategy string `yaml:"strategy"`

	Headless   bool   `yaml:"headless"`
	ChromePath string `yaml:"chrome_path"`

	// SearchBaseURL overrides the search endpoint; tests point it at a
	// local listener.
	SearchBaseURL string `yaml:"search_base_url"`

	BaseDelay      time.Duration `yaml:"delay_between_requests"`
	JitterFrac     float64       `yaml:"jitter_frac"`
	RequestTimeout time.Duration `yaml:"timeout"`

	MaxResultsPerQuery int `yaml:"max_results_per_search"`
	MaxQueries         int `yaml:"max_queries"`
	MaxLeads           int `yaml:"max_leads"`

	Workers    int  `yaml:"workers"`
	MaxRetries int  `yaml:"max_retries"`
	FailFast   bool `yaml:"fail_fast"`

	VerifyEmailDomains bool `yaml:"verify_email_domains"`

	OutputFormat string `yaml:"output_format"`
	OutputDir    string `yaml:"output_directory"`

	// Optional login for the browser strategy. Never required; retrieval
	// continues in guest mode without it.
	LinkedInEmail    string `yaml:"linkedin_email"`
	LinkedInPassword string `yaml:"linkedin_password"`
}

// Default returns the baseline configuration before any overrides.
func Default() Config {
	return Config{
		Strategy:           StrategyHTTP,
		Headless:           true,
		BaseDelay:          2 * time.Second,
		JitterFrac:         0.5,
		RequestTimeout:     30 * time.Second,
		MaxResultsPerQuery: 10,
		MaxQueries:         5,
		MaxLeads:           10,
		Workers:            1,
		MaxRetries:         3,
		OutputFormat:       "csv",
		OutputDir:          "output",
	}
}

// Load resolves the configuration. A .env file in the working directory is
// applied to the environment first (existing variables win), then environment
// overrides, then the YAML file at path when non-empty.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg, err := fromEnv(Default())
	if err != nil {
		return Config{}, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		// Unmarshal over the env-resolved config so absent keys keep their
		// values.
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects selector values nothing downstream understands.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyHTTP, StrategyBrowser:
	default:
		return fmt.Errorf("invalid strategy %q (want %q or %q)", c.Strategy, StrategyHTTP, StrategyBrowser)
	}
	switch c.OutputFormat {
	case "csv", "json", "excel":
	default:
		return fmt.Errorf("invalid output format %q (want csv, json, or excel)", c.OutputFormat)
	}
	if c.BaseDelay < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	return nil
}

func fromEnv(cfg Config) (Config, error) {
	var err error
	if v := strings.TrimSpace(os.Getenv("SEARCH_STRATEGY")); v != "" {
		cfg.Strategy = strings.ToLower(v)
	}
	if cfg.Headless, err = envBool("HEADLESS_MODE", cfg.Headless); err != nil {
		return cfg, err
	}
	if v := strings.TrimSpace(os.Getenv("CHROME_PATH")); v != "" {
		cfg.ChromePath = v
	}
	if v := strings.TrimSpace(os.Getenv("SEARCH_BASE_URL")); v != "" {
		cfg.SearchBaseURL = v
	}
	if cfg.BaseDelay, err = envDuration("DELAY_BETWEEN_REQUESTS", cfg.BaseDelay); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = envDuration("TIMEOUT", cfg.RequestTimeout); err != nil {
		return cfg, err
	}
	if cfg.MaxResultsPerQuery, err = envInt("MAX_RESULTS_PER_SEARCH", cfg.MaxResultsPerQuery); err != nil {
		return cfg, err
	}
	if cfg.MaxQueries, err = envInt("MAX_QUERIES", cfg.MaxQueries); err != nil {
		return cfg, err
	}
	if cfg.MaxLeads, err = envInt("MAX_LEADS", cfg.MaxLeads); err != nil {
		return cfg, err
	}
	if cfg.Workers, err = envInt("WORKERS", cfg.Workers); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = envInt("MAX_RETRIES", cfg.MaxRetries); err != nil {
		return cfg, err
	}
	if cfg.FailFast, err = envBool("FAIL_FAST", cfg.FailFast); err != nil {
		return cfg, err
	}
	if cfg.VerifyEmailDomains, err = envBool("VERIFY_EMAIL_DOMAINS", cfg.VerifyEmailDomains); err != nil {
		return cfg, err
	}
	if v := strings.TrimSpace(os.Getenv("OUTPUT_FORMAT")); v != "" {
		cfg.OutputFormat = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("OUTPUT_DIRECTORY")); v != "" {
		cfg.OutputDir = v
	}
	if v := strings.TrimSpace(os.Getenv("LINKEDIN_EMAIL")); v != "" {
		cfg.LinkedInEmail = v
	}
	if v := strings.TrimSpace(os.Getenv("LINKEDIN_PASSWORD")); v != "" {
		cfg.LinkedInPassword = v
	}
	return cfg, nil
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envBool(varName string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envDuration(varName string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	// Plain numbers read as seconds, matching common .env habits.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
