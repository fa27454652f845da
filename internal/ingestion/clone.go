package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultReposDir is where remote repositories are cloned
func DefaultReposDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".defectminer", "repos")
	}
	return filepath.Join(homeDir, ".defectminer", "repos")
}

// CloneRepository makes a full clone of url under reposDir/<url-hash> and
// returns its path. An existing valid clone is fetched instead of recloned.
// History mining needs every commit, so the clone is never shallow.
func CloneRepository(ctx context.Context, url, reposDir string) (string, error) {
	repoPath := filepath.Join(reposDir, generateRepoHash(url))

	if _, err := os.Stat(repoPath); err == nil {
		if isValidGitRepo(repoPath) {
			if err := runGit(ctx, repoPath, "fetch", "--tags", "--quiet", "origin"); err != nil {
				return "", err
			}
			return repoPath, nil
		}
		// Invalid repo, remove and re-clone
		if err := os.RemoveAll(repoPath); err != nil {
			return "", fmt.Errorf("failed to remove broken clone: %w", err)
		}
	}

	if err := os.MkdirAll(reposDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}

	if err := runGit(ctx, "", "clone", "--quiet", url, repoPath); err != nil {
		return "", err
	}
	return repoPath, nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s failed: %w, output: %s", args[0], err, strings.TrimSpace(string(output)))
	}
	return nil
}

// generateRepoHash creates a unique hash from repository URL
func generateRepoHash(url string) string {
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, ".git")

	h := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", h)[:16]
}

// isValidGitRepo checks if directory is a valid git repository
func isValidGitRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	if err != nil {
		return false
	}
	return info.IsDir()
}
