package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DateLayout is the layout of every date option
const DateLayout = "2006-01-02"

// Config holds all configuration settings
type Config struct {
	Repo     RepoConfig     `yaml:"repo" mapstructure:"repo"`
	Commits  CommitsConfig  `yaml:"commits" mapstructure:"commits"`
	Releases ReleasesConfig `yaml:"releases" mapstructure:"releases"`
	Jira     JiraConfig     `yaml:"jira" mapstructure:"jira"`
	GitHub   GitHubConfig   `yaml:"github" mapstructure:"github"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
}

// RepoConfig locates the local clone under analysis
type RepoConfig struct {
	Path        string        `yaml:"path" mapstructure:"path"`
	URL         string        `yaml:"url" mapstructure:"url"`                   // cloned under ~/.defectminer/repos when set
	Name        string        `yaml:"name" mapstructure:"name"`                 // used in output file names
	PathPattern string        `yaml:"path_pattern" mapstructure:"path_pattern"` // regexp over repository paths
	Branch      string        `yaml:"branch" mapstructure:"branch"`
	GitTimeout  time.Duration `yaml:"git_timeout" mapstructure:"git_timeout"`
}

// CommitsConfig drives the commit-level dataset
type CommitsConfig struct {
	Since        string   `yaml:"since" mapstructure:"since"`
	Until        string   `yaml:"until" mapstructure:"until"`
	HistoryStart string   `yaml:"history_start" mapstructure:"history_start"`
	FixSince     string   `yaml:"fix_since" mapstructure:"fix_since"`
	FixUntil     string   `yaml:"fix_until" mapstructure:"fix_until"`
	IssueKeys    []string `yaml:"issue_keys" mapstructure:"issue_keys"`
	Keywords     []string `yaml:"keywords" mapstructure:"keywords"`
}

// ReleasesConfig drives the release-level dataset
type ReleasesConfig struct {
	Tags      []string `yaml:"tags" mapstructure:"tags"` // ordered by date
	JiraKeys  []string `yaml:"jira_keys" mapstructure:"jira_keys"`
	BugsSince string   `yaml:"bugs_since" mapstructure:"bugs_since"` // defaults to the first tag's date
}

type JiraConfig struct {
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	User       string        `yaml:"user" mapstructure:"user"`
	Token      string        `yaml:"token" mapstructure:"token"`
	PageSize   int           `yaml:"page_size" mapstructure:"page_size"`
	RateLimit  float64       `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	Burst      int           `yaml:"burst" mapstructure:"burst"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	CachePath  string        `yaml:"cache_path" mapstructure:"cache_path"` // empty disables the response cache
}

type GitHubConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	Workers   int     `yaml:"workers" mapstructure:"workers"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
}

type StorageConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "sqlite", "postgres", "none"
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	LocalPath   string `yaml:"local_path" mapstructure:"local_path"`
}

type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// Default returns default configuration, set up for the Lucene core study
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Repo: RepoConfig{
			Path:        ".",
			PathPattern: `^lucene/core/src/java/org/apache/lucene.*?\.java$`,
			Branch:      "HEAD",
			GitTimeout:  5 * time.Minute,
		},
		Commits: CommitsConfig{
			Since:        "2013-01-01",
			Until:        "2014-01-01",
			HistoryStart: "2011-01-01",
			FixSince:     "2013-01-01",
			FixUntil:     "2016-01-01",
			IssueKeys:    []string{"LUCENE"},
		},
		Jira: JiraConfig{
			BaseURL:    "https://issues.apache.org/jira",
			PageSize:   50,
			RateLimit:  0.5,
			Burst:      1,
			MaxRetries: 8,
			Timeout:    30 * time.Second,
			CachePath:  filepath.Join(homeDir, ".defectminer", "jira.db"),
		},
		GitHub: GitHubConfig{
			RateLimit: 1,
			Workers:   4,
		},
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".defectminer", "runs.db"),
		},
		Output: OutputConfig{
			Dir: "out",
		},
	}
}

// setDefaults registers every leaf of cfg so env variables can override it
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("repo.path", cfg.Repo.Path)
	v.SetDefault("repo.url", cfg.Repo.URL)
	v.SetDefault("repo.name", cfg.Repo.Name)
	v.SetDefault("repo.path_pattern", cfg.Repo.PathPattern)
	v.SetDefault("repo.branch", cfg.Repo.Branch)
	v.SetDefault("repo.git_timeout", cfg.Repo.GitTimeout)

	v.SetDefault("commits.since", cfg.Commits.Since)
	v.SetDefault("commits.until", cfg.Commits.Until)
	v.SetDefault("commits.history_start", cfg.Commits.HistoryStart)
	v.SetDefault("commits.fix_since", cfg.Commits.FixSince)
	v.SetDefault("commits.fix_until", cfg.Commits.FixUntil)
	v.SetDefault("commits.issue_keys", cfg.Commits.IssueKeys)
	v.SetDefault("commits.keywords", cfg.Commits.Keywords)

	v.SetDefault("releases.tags", cfg.Releases.Tags)
	v.SetDefault("releases.jira_keys", cfg.Releases.JiraKeys)
	v.SetDefault("releases.bugs_since", cfg.Releases.BugsSince)

	v.SetDefault("jira.base_url", cfg.Jira.BaseURL)
	v.SetDefault("jira.user", cfg.Jira.User)
	v.SetDefault("jira.token", cfg.Jira.Token)
	v.SetDefault("jira.page_size", cfg.Jira.PageSize)
	v.SetDefault("jira.rate_limit", cfg.Jira.RateLimit)
	v.SetDefault("jira.burst", cfg.Jira.Burst)
	v.SetDefault("jira.max_retries", cfg.Jira.MaxRetries)
	v.SetDefault("jira.timeout", cfg.Jira.Timeout)
	v.SetDefault("jira.cache_path", cfg.Jira.CachePath)

	v.SetDefault("github.token", cfg.GitHub.Token)
	v.SetDefault("github.rate_limit", cfg.GitHub.RateLimit)
	v.SetDefault("github.workers", cfg.GitHub.Workers)
	v.SetDefault("github.base_url", cfg.GitHub.BaseURL)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.postgres_dsn", cfg.Storage.PostgresDSN)
	v.SetDefault("storage.local_path", cfg.Storage.LocalPath)

	v.SetDefault("output.dir", cfg.Output.Dir)
}

// Load loads configuration from file. An empty path searches
// .defectminer/config.yaml, ./config.yaml and ~/.defectminer/config.yaml.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	setDefaults(v, cfg)

	// DEFECTMINER_JIRA_PAGE_SIZE overrides jira.page_size
	v.SetEnvPrefix("DEFECTMINER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".defectminer")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".defectminer"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg, NewKeyringManager(nil))

	if cfg.Repo.Name == "" {
		if cfg.Repo.URL != "" {
			cfg.Repo.Name = repoName(strings.TrimSuffix(strings.TrimSuffix(cfg.Repo.URL, "/"), ".git"))
		} else {
			cfg.Repo.Name = repoName(cfg.Repo.Path)
		}
	}

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence. godotenv never
// overrides a variable that is already set, so earlier files win.
func loadEnvFiles() {
	envFiles := []string{
		".env.local",
		".env",
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".defectminer", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// secretSource reads a secret that was not configured anywhere else
type secretSource interface {
	Get(item string) (string, error)
}

// applyEnvOverrides applies the conventional un-prefixed variables.
// Precedence for secrets: env var, then config file, then OS keychain.
func applyEnvOverrides(cfg *Config, secrets secretSource) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.ParseFloat(rateLimit, 64); err == nil {
			cfg.GitHub.RateLimit = rate
		}
	}

	if url := os.Getenv("JIRA_URL"); url != "" {
		cfg.Jira.BaseURL = url
	}
	if user := os.Getenv("JIRA_USER"); user != "" {
		cfg.Jira.User = user
	}
	if token := os.Getenv("JIRA_TOKEN"); token != "" {
		cfg.Jira.Token = token
	}

	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}

	if secrets != nil {
		if cfg.GitHub.Token == "" {
			if token, err := secrets.Get(KeyringGitHubTokenItem); err == nil && token != "" {
				cfg.GitHub.Token = token
			}
		}
		if cfg.Jira.Token == "" {
			if token, err := secrets.Get(KeyringJiraTokenItem); err == nil && token != "" {
				cfg.Jira.Token = token
			}
		}
	}

	cfg.Repo.Path = expandPath(cfg.Repo.Path)
	cfg.Storage.LocalPath = expandPath(cfg.Storage.LocalPath)
	cfg.Jira.CachePath = expandPath(cfg.Jira.CachePath)
	cfg.Output.Dir = expandPath(cfg.Output.Dir)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

func repoName(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.Base(abs)
}

// ParseDate parses a DateLayout value as UTC midnight. An empty value is the
// zero time.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", value, err)
	}
	return t, nil
}

// Save writes the configuration as YAML, omitting secrets
func (c *Config) Save(path string) error {
	out := *c
	out.GitHub.Token = ""
	out.Jira.Token = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
