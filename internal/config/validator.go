package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rohankatakam/defectminer/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextCommits - the commit-level dataset needs dates, keys and Jira
	ValidationContextCommits ValidationContext = "commits"
	// ValidationContextCommitsOffline - keyword detection only, no tracker
	ValidationContextCommitsOffline ValidationContext = "commits-offline"
	// ValidationContextReleases - the release-level dataset needs tags, keys and Jira
	ValidationContextReleases ValidationContext = "releases"
	// ValidationContextAttribute - a single attribution only needs the repository
	ValidationContextAttribute ValidationContext = "attribute"
	// ValidationContextGini - contributor inequality only needs GitHub
	ValidationContextGini ValidationContext = "gini"
	// ValidationContextAll - validate all configuration
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nwarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}

	return sb.String()
}

// Err converts a failed result into a config error, nil otherwise
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}
	return errors.New(errors.ErrorTypeConfig, errors.SeverityHigh, strings.TrimSpace(vr.Error()))
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextCommits:
		c.validateRepo(result)
		c.validateCommits(result, true)
		c.validateJira(result)
		c.validateStorage(result)
	case ValidationContextCommitsOffline:
		c.validateRepo(result)
		c.validateCommits(result, false)
		c.validateStorage(result)
	case ValidationContextReleases:
		c.validateRepo(result)
		c.validateReleases(result)
		c.validateJira(result)
		c.validateStorage(result)
	case ValidationContextAttribute:
		c.validateRepo(result)
	case ValidationContextGini:
		c.validateGitHub(result)
	case ValidationContextAll:
		c.validateRepo(result)
		c.validateCommits(result, true)
		c.validateReleases(result)
		c.validateJira(result)
		c.validateGitHub(result)
		c.validateStorage(result)
	}

	return result
}

func (c *Config) validateRepo(result *ValidationResult) {
	if c.Repo.Path == "" && c.Repo.URL == "" {
		result.AddError("repo.path or repo.url is required")
	}
	if c.Repo.PathPattern != "" {
		if _, err := regexp.Compile(c.Repo.PathPattern); err != nil {
			result.AddError("repo.path_pattern is not a valid regular expression: %v", err)
		}
	}
	if c.Repo.GitTimeout < 0 {
		result.AddError("repo.git_timeout must not be negative")
	}
}

// validateWindow checks that both ends parse and since comes before until
func validateWindow(result *ValidationResult, name, since, until string, required bool) {
	start, err := ParseDate(since)
	if err != nil {
		result.AddError("%s.since: %v", name, err)
		return
	}
	end, err := ParseDate(until)
	if err != nil {
		result.AddError("%s.until: %v", name, err)
		return
	}
	if required && (start.IsZero() || end.IsZero()) {
		result.AddError("%s window needs both a start and an end date", name)
		return
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		result.AddError("%s window is empty: %s is not before %s", name, since, until)
	}
}

func (c *Config) validateCommits(result *ValidationResult, requireKeys bool) {
	validateWindow(result, "commits", c.Commits.Since, c.Commits.Until, true)
	validateWindow(result, "commits.fix", c.Commits.FixSince, c.Commits.FixUntil, true)

	history, err := ParseDate(c.Commits.HistoryStart)
	if err != nil {
		result.AddError("commits.history_start: %v", err)
	} else if since, err := ParseDate(c.Commits.Since); err == nil && !history.IsZero() && history.After(since) {
		result.AddWarning("commits.history_start %s is after commits.since; commit metrics of early commits will be empty", c.Commits.HistoryStart)
	}

	if requireKeys && len(c.Commits.IssueKeys) == 0 {
		result.AddError("commits.issue_keys needs at least one Jira project key")
	}
	validateProjectKeys(result, "commits.issue_keys", c.Commits.IssueKeys)
}

func (c *Config) validateReleases(result *ValidationResult) {
	if len(c.Releases.Tags) < 2 {
		result.AddError("releases.tags needs at least two tags; the first one only opens the first window")
	}
	seen := make(map[string]bool)
	for _, tag := range c.Releases.Tags {
		if seen[tag] {
			result.AddError("releases.tags lists %s twice", tag)
		}
		seen[tag] = true
	}

	if len(c.Releases.JiraKeys) == 0 {
		result.AddError("releases.jira_keys needs at least one Jira project key")
	}
	validateProjectKeys(result, "releases.jira_keys", c.Releases.JiraKeys)

	if _, err := ParseDate(c.Releases.BugsSince); err != nil {
		result.AddError("releases.bugs_since: %v", err)
	}
}

var projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

func validateProjectKeys(result *ValidationResult, name string, keys []string) {
	for _, k := range keys {
		if !projectKeyPattern.MatchString(k) {
			result.AddError("%s: %q is not a Jira project key", name, k)
		}
	}
}

func (c *Config) validateJira(result *ValidationResult) {
	if c.Jira.BaseURL == "" {
		result.AddError("jira.base_url is required (set JIRA_URL)")
	} else if u, err := url.Parse(c.Jira.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		result.AddError("jira.base_url %q is not an absolute URL", c.Jira.BaseURL)
	}

	if c.Jira.PageSize <= 0 {
		result.AddError("jira.page_size must be positive")
	}
	if c.Jira.RateLimit <= 0 {
		result.AddError("jira.rate_limit must be positive")
	}
	if c.Jira.MaxRetries < 0 {
		result.AddError("jira.max_retries must not be negative")
	}
	if c.Jira.User != "" && c.Jira.Token == "" {
		result.AddWarning("jira.user is set without a token; requests will be anonymous")
	}
}

func (c *Config) validateGitHub(result *ValidationResult) {
	if c.GitHub.Token == "" {
		result.AddWarning("GITHUB_TOKEN is not set; unauthenticated requests are limited to 60 per hour")
	}
	if c.GitHub.RateLimit <= 0 {
		result.AddError("github.rate_limit must be positive")
	}
	if c.GitHub.BaseURL != "" {
		if u, err := url.Parse(c.GitHub.BaseURL); err != nil || u.Scheme == "" {
			result.AddError("github.base_url %q is not an absolute URL", c.GitHub.BaseURL)
		}
	}
}

func (c *Config) validateStorage(result *ValidationResult) {
	switch c.Storage.Type {
	case "", "sqlite":
		if c.Storage.LocalPath == "" {
			result.AddWarning("storage.local_path is empty; the default location will be used")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			result.AddError("storage.postgres_dsn is required for postgres storage (set POSTGRES_DSN)")
		}
	case "none":
	default:
		result.AddError("storage.type %q is not one of sqlite, postgres, none", c.Storage.Type)
	}
}
