package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

type fakeSecrets map[string]string

func (f fakeSecrets) Get(item string) (string, error) {
	return f[item], nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GITHUB_TOKEN", "GITHUB_RATE_LIMIT", "JIRA_URL", "JIRA_USER", "JIRA_TOKEN", "STORAGE_TYPE", "POSTGRES_DSN"} {
		t.Setenv(key, "")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	keyring.MockInit()
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
repo:
  path: /src/hadoop
  path_pattern: '\.java$'
releases:
  tags: [release-2.4.1, release-2.5.0, release-2.5.1]
  jira_keys: [HADOOP, HDFS]
jira:
  page_size: 100
  timeout: 1m
storage:
  type: none
`), 0644))

	t.Setenv("DEFECTMINER_JIRA_MAX_RETRIES", "3")
	t.Setenv("JIRA_TOKEN", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/src/hadoop", cfg.Repo.Path)
	assert.Equal(t, "hadoop", cfg.Repo.Name)
	assert.Equal(t, `\.java$`, cfg.Repo.PathPattern)
	assert.Equal(t, []string{"release-2.4.1", "release-2.5.0", "release-2.5.1"}, cfg.Releases.Tags)
	assert.Equal(t, []string{"HADOOP", "HDFS"}, cfg.Releases.JiraKeys)
	assert.Equal(t, 100, cfg.Jira.PageSize)
	assert.Equal(t, time.Minute, cfg.Jira.Timeout)
	assert.Equal(t, 3, cfg.Jira.MaxRetries)
	assert.Equal(t, "secret", cfg.Jira.Token)
	assert.Equal(t, "none", cfg.Storage.Type)
	// untouched defaults survive
	assert.Equal(t, "https://issues.apache.org/jira", cfg.Jira.BaseURL)
	assert.Equal(t, "2011-01-01", cfg.Commits.HistoryStart)
}

func TestLoad_MissingFileIsError(t *testing.T) {
	keyring.MockInit()
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITHUB_TOKEN", "gh-env")
	t.Setenv("GITHUB_RATE_LIMIT", "2.5")
	t.Setenv("STORAGE_TYPE", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/dm")

	cfg := Default()
	applyEnvOverrides(cfg, fakeSecrets{KeyringGitHubTokenItem: "gh-keychain", KeyringJiraTokenItem: "jira-keychain"})

	assert.Equal(t, "gh-env", cfg.GitHub.Token, "env wins over keychain")
	assert.Equal(t, "jira-keychain", cfg.Jira.Token, "keychain fills missing secrets")
	assert.Equal(t, 2.5, cfg.GitHub.RateLimit)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "postgres://localhost/dm", cfg.Storage.PostgresDSN)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), expandPath("~/data"))
	assert.Equal(t, "/abs", expandPath("/abs"))
	assert.Equal(t, "", expandPath(""))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2013-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = ParseDate("01/01/2013")
	assert.Error(t, err)
}

func TestSave_OmitsSecrets(t *testing.T) {
	keyring.MockInit()
	clearEnv(t)

	cfg := Default()
	cfg.Jira.Token = "do-not-write"
	cfg.GitHub.Token = "do-not-write-either"
	cfg.Releases.Tags = []string{"a", "b"}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "do-not-write")
	assert.Contains(t, string(data), "path_pattern")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, loaded.Releases.Tags)
	assert.Equal(t, cfg.Jira.Timeout, loaded.Jira.Timeout)
	assert.Equal(t, "do-not-write", cfg.Jira.Token, "Save must not mutate the receiver")
}
