package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
)

// Repo runs read-only git queries against a local clone.
type Repo struct {
	path    string
	timeout time.Duration
}

// NewRepo creates a Repo for the clone at path. A zero timeout means each
// git invocation is bounded only by the caller's context.
func NewRepo(path string, timeout time.Duration) *Repo {
	return &Repo{path: path, timeout: timeout}
}

// Path returns the clone directory.
func (r *Repo) Path() string {
	return r.path
}

// stderr fragments git prints when a path or revision does not exist at the
// queried point in history
var notFoundMarkers = []string{
	"no such path",
	"does not exist",
	"unknown revision",
	"bad revision",
	"ambiguous argument",
	"bad object",
	"not a valid object name",
	"invalid object name",
	"no such ref",
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", append([]string{"--no-pager"}, args...)...)
	cmd.Dir = r.path

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 128 && isNotFound(msg) {
			return "", dmerrors.NotFoundErrorf(err, "git %s: %s", args[0], msg).
				WithContext("repo", r.path).
				WithContext("args", strings.Join(args, " "))
		}
		return "", fmt.Errorf("git %s failed: %w (stderr: %s)", strings.Join(args, " "), err, msg)
	}

	return stdout.String(), nil
}

func isNotFound(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, marker := range notFoundMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Verify checks that the path is inside a git work tree
func (r *Repo) Verify(ctx context.Context) error {
	if _, err := r.run(ctx, "rev-parse", "--is-inside-work-tree"); err != nil {
		return fmt.Errorf("not a git repository: %s: %w", r.path, err)
	}
	return nil
}

// ListFiles returns every tracked path at rev (git ls-tree -r --name-only)
func (r *Repo) ListFiles(ctx context.Context, rev string) ([]string, error) {
	out, err := r.run(ctx, "ls-tree", "-r", "--name-only", rev)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// RefTime returns the author date of the commit a ref points to.
func (r *Repo) RefTime(ctx context.Context, ref string) (time.Time, error) {
	out, err := r.run(ctx, "log", "-1", "--format=%aI", ref)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(out))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date of %s: %w", ref, err)
	}
	return ts, nil
}

// LogFormat is the --pretty format consumed by temporal.ParseLog: a record
// separator, then hash, strict ISO author date, author email and subject
// separated by unit separators, followed by one changed path per line.
const LogFormat = "format:%x1e%H%x1f%aI%x1f%ae%x1f%s"

// LogNameOnly lists commits in (after, before) with their changed paths,
// newest first. Zero times leave that side of the window open.
func (r *Repo) LogNameOnly(ctx context.Context, rev string, after, before time.Time) (string, error) {
	args := []string{"log", "--name-only", "--pretty=" + LogFormat}
	args = appendWindow(args, after, before)
	if rev != "" {
		args = append(args, rev)
	}
	return r.run(ctx, args...)
}

// LogSubjects lists commits in the window without changed paths.
func (r *Repo) LogSubjects(ctx context.Context, rev string, after, before time.Time) (string, error) {
	args := []string{"log", "--pretty=" + LogFormat}
	args = appendWindow(args, after, before)
	if rev != "" {
		args = append(args, rev)
	}
	return r.run(ctx, args...)
}

// Numstat returns `git log --numstat` for the window with rename detection
// off, so every path is a plain tracked path.
func (r *Repo) Numstat(ctx context.Context, rev string, after, before time.Time) (string, error) {
	args := []string{"log", "--pretty=format:", "--numstat", "--no-renames"}
	args = appendWindow(args, after, before)
	if rev != "" {
		args = append(args, rev)
	}
	return r.run(ctx, args...)
}

// AuthorEmails returns the author email of every commit reachable from rev
// that touched path inside the window, one per commit.
func (r *Repo) AuthorEmails(ctx context.Context, rev, path string, after, before time.Time) ([]string, error) {
	args := []string{"log", "--pretty=format:%ae"}
	args = appendWindow(args, after, before)
	if rev != "" {
		args = append(args, rev)
	}
	args = append(args, "--", path)

	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ChangedFiles returns the paths touched by a single commit
func (r *Repo) ChangedFiles(ctx context.Context, commit string) ([]string, error) {
	out, err := r.run(ctx, "show", "--name-only", "--pretty=format:", commit)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ShowDiff returns the zero-context unified diff of path between commit and
// its first parent.
func (r *Repo) ShowDiff(ctx context.Context, commit, path string) (string, error) {
	return r.run(ctx, "show", "--no-color", "--format=", "--unified=0", commit, "--", path)
}

// Blame returns `git blame --line-porcelain` of path at rev.
func (r *Repo) Blame(ctx context.Context, rev, path string) (string, error) {
	return r.run(ctx, "blame", "--line-porcelain", rev, "--", path)
}

func appendWindow(args []string, after, before time.Time) []string {
	if !after.IsZero() {
		args = append(args, "--after="+after.Format(time.RFC3339))
	}
	if !before.IsZero() {
		args = append(args, "--before="+before.Format(time.RFC3339))
	}
	return args
}

func splitLines(out string) []string {
	var result []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return result
}

// ParseRepoURL extracts owner and repo name from a remote or API URL
// Supports multiple URL formats:
//   - API: https://api.github.com/repos/owner/repo
//   - HTTPS: https://github.com/owner/repo.git
//   - SSH: git@github.com:owner/repo.git
//   - Git protocol: git://github.com/owner/repo.git
func ParseRepoURL(remoteURL string) (owner, repo string, err error) {
	remoteURL = strings.TrimSuffix(strings.TrimSuffix(remoteURL, "/"), ".git")

	apiRegex := regexp.MustCompile(`^https?://api\.[^/]+/repos/([^/]+)/([^/]+)`)
	if matches := apiRegex.FindStringSubmatch(remoteURL); len(matches) == 3 {
		return matches[1], matches[2], nil
	}

	httpsRegex := regexp.MustCompile(`^https?://[^/]+/([^/]+)/([^/]+)`)
	if matches := httpsRegex.FindStringSubmatch(remoteURL); len(matches) == 3 {
		return matches[1], matches[2], nil
	}

	sshRegex := regexp.MustCompile(`^git@[^:]+:([^/]+)/([^/]+)`)
	if matches := sshRegex.FindStringSubmatch(remoteURL); len(matches) == 3 {
		return matches[1], matches[2], nil
	}

	gitRegex := regexp.MustCompile(`^git://[^/]+/([^/]+)/([^/]+)`)
	if matches := gitRegex.FindStringSubmatch(remoteURL); len(matches) == 3 {
		return matches[1], matches[2], nil
	}

	return "", "", fmt.Errorf("unrecognized git URL format: %s", remoteURL)
}
