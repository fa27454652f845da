package temporal

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LogSource is the slice of the git oracle the history extractor needs
type LogSource interface {
	LogNameOnly(ctx context.Context, rev string, after, before time.Time) (string, error)
	LogSubjects(ctx context.Context, rev string, after, before time.Time) (string, error)
	Numstat(ctx context.Context, rev string, after, before time.Time) (string, error)
}

// LoadCommits returns the commits in (after, before) with their changed
// paths narrowed by filter. Commits left without paths are dropped.
func LoadCommits(ctx context.Context, src LogSource, rev string, after, before time.Time, filter *PathFilter) ([]Commit, error) {
	out, err := src.LogNameOnly(ctx, rev, after, before)
	if err != nil {
		return nil, fmt.Errorf("git log failed: %w", err)
	}

	commits, err := ParseLog(out)
	if err != nil {
		return nil, err
	}

	result := commits[:0]
	for _, c := range commits {
		c.Files = filter.Filter(c.Files)
		if len(c.Files) == 0 {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

// LoadSubjects returns every commit in the window without changed paths
func LoadSubjects(ctx context.Context, src LogSource, rev string, after, before time.Time) ([]Commit, error) {
	out, err := src.LogSubjects(ctx, rev, after, before)
	if err != nil {
		return nil, fmt.Errorf("git log failed: %w", err)
	}
	return ParseLog(out)
}

// ParseLog parses output produced with git.LogFormat: each record starts
// with \x1e, the header fields are separated by \x1f, and the changed
// paths (if --name-only was given) follow one per line.
func ParseLog(output string) ([]Commit, error) {
	var commits []Commit

	for _, record := range strings.Split(output, "\x1e") {
		if strings.TrimSpace(record) == "" {
			continue
		}

		header, rest, _ := strings.Cut(record, "\n")
		parts := strings.SplitN(header, "\x1f", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("malformed log header: %q", header)
		}

		timestamp, err := time.Parse(time.RFC3339, parts[1])
		if err != nil {
			return nil, fmt.Errorf("parse date of %s: %w", parts[0], err)
		}

		commit := Commit{
			Hash:      parts[0],
			Timestamp: timestamp,
			Author:    parts[2],
			Message:   parts[3],
		}

		for _, line := range strings.Split(rest, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				commit.Files = append(commit.Files, line)
			}
		}

		commits = append(commits, commit)
	}

	return commits, nil
}

// LoadNumstat returns every numstat change in the window
func LoadNumstat(ctx context.Context, src LogSource, rev string, after, before time.Time) ([]FileChange, error) {
	out, err := src.Numstat(ctx, rev, after, before)
	if err != nil {
		return nil, fmt.Errorf("git log --numstat failed: %w", err)
	}
	return ParseNumstat(out)
}

// ParseNumstat parses "added<TAB>deleted<TAB>path" lines. Binary changes
// (reported as "-") are skipped.
func ParseNumstat(output string) ([]FileChange, error) {
	var changes []FileChange

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed numstat line: %q", line)
		}

		// Skip binary files (marked with "-")
		if fields[0] == "-" || fields[1] == "-" {
			continue
		}

		additions, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("malformed numstat line: %q", line)
		}
		deletions, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("malformed numstat line: %q", line)
		}

		changes = append(changes, FileChange{
			Path:      fields[2],
			Additions: additions,
			Deletions: deletions,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning numstat output: %w", err)
	}

	return changes, nil
}
