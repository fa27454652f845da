// Package gittest builds throwaway git repositories with controlled authors
// and dates for tests.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Repo is a temporary repository under t.TempDir().
type Repo struct {
	t   *testing.T
	Dir string
}

// New initialises an empty repository, skipping the test when git is not
// installed.
func New(t *testing.T) *Repo {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	r := &Repo{t: t, Dir: t.TempDir()}
	r.Git(time.Time{}, "", "init", "-q")
	r.Git(time.Time{}, "", "config", "user.email", "test@example.com")
	r.Git(time.Time{}, "", "config", "user.name", "Test User")
	r.Git(time.Time{}, "", "config", "commit.gpgsign", "false")
	return r
}

// Git runs a git command. When date is non-zero it is used for both author
// and committer dates; when author is non-empty it overrides the author
// email for this invocation.
func (r *Repo) Git(date time.Time, author string, args ...string) string {
	r.t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(), "GIT_CONFIG_NOSYSTEM=1")
	if !date.IsZero() {
		stamp := date.Format(time.RFC3339)
		cmd.Env = append(cmd.Env, "GIT_AUTHOR_DATE="+stamp, "GIT_COMMITTER_DATE="+stamp)
	}
	if author != "" {
		name := strings.SplitN(author, "@", 2)[0]
		cmd.Env = append(cmd.Env,
			"GIT_AUTHOR_NAME="+name, "GIT_AUTHOR_EMAIL="+author,
			"GIT_COMMITTER_NAME="+name, "GIT_COMMITTER_EMAIL="+author)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// Write replaces the content of path (relative to the repo root).
func (r *Repo) Write(path string, lines ...string) {
	r.t.Helper()

	full := filepath.Join(r.Dir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		r.t.Fatalf("mkdir: %v", err)
	}
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		r.t.Fatalf("write %s: %v", path, err)
	}
}

// Commit stages everything and commits it, returning the new hash.
func (r *Repo) Commit(author string, date time.Time, message string) string {
	r.t.Helper()

	r.Git(date, author, "add", "-A")
	r.Git(date, author, "commit", "-q", "-m", message)
	return r.Git(time.Time{}, "", "rev-parse", "HEAD")
}

// Tag creates a lightweight tag at HEAD.
func (r *Repo) Tag(name string) {
	r.t.Helper()
	r.Git(time.Time{}, "", "tag", name)
}

// EmptyCommit records a commit that changes nothing, returning its hash.
func (r *Repo) EmptyCommit(author string, date time.Time, message string) string {
	r.t.Helper()

	r.Git(date, author, "commit", "-q", "--allow-empty", "-m", message)
	return r.Git(time.Time{}, "", "rev-parse", "HEAD")
}
