package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	devStatusPath = "/rest/dev-status/1.0/issue/detail"

	// DevStatusBucket is the cache bucket holding raw dev-status responses
	DevStatusBucket = "devstatus"

	// TimestampLayout is how the dev-status endpoint formats authorTimestamp
	TimestampLayout = "2006-01-02T15:04:05.000-0700"
)

// ChangedFile is one file of a commit linked to an issue
type ChangedFile struct {
	Path         string `json:"path"`
	LinesAdded   int    `json:"linesAdded"`
	LinesRemoved int    `json:"linesRemoved"`
	ChangeType   string `json:"changeType"`
}

// LinkedCommit is a commit the tracker links to an issue
type LinkedCommit struct {
	ID              string        `json:"id"`
	Message         string        `json:"message"`
	AuthorTimestamp Timestamp     `json:"authorTimestamp"`
	Files           []ChangedFile `json:"files"`
}

type devStatusResponse struct {
	Errors []json.RawMessage `json:"errors"`
	Detail []struct {
		Repositories []struct {
			Name    string         `json:"name"`
			Commits []LinkedCommit `json:"commits"`
		} `json:"repositories"`
	} `json:"detail"`
}

// Timestamp accepts the dev-status string layout, RFC 3339 or epoch
// milliseconds
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	if data[0] != '"' {
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", data, err)
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano} {
		if ts, err := time.Parse(layout, s); err == nil {
			t.Time = ts
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// LinkedCommits returns every commit linked to the issue across all of its
// repositories. Responses are served from the cache when one is configured.
func (c *Client) LinkedCommits(ctx context.Context, issueID string) ([]LinkedCommit, error) {
	raw, err := c.devStatus(ctx, issueID)
	if err != nil {
		return nil, err
	}

	var resp devStatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode dev-status of issue %s: %w", issueID, err)
	}

	var commits []LinkedCommit
	for _, d := range resp.Detail {
		for _, repo := range d.Repositories {
			commits = append(commits, repo.Commits...)
		}
	}
	return commits, nil
}

func (c *Client) devStatus(ctx context.Context, issueID string) (json.RawMessage, error) {
	if c.cache != nil {
		data, ok, err := c.cache.Get(DevStatusBucket, issueID)
		if err != nil {
			c.logger.WithError(err).Warn("cache read failed")
		} else if ok {
			return data, nil
		}
	}

	q := url.Values{}
	q.Set("issueId", issueID)
	q.Set("applicationType", "fecru")
	q.Set("dataType", "repository")

	var raw json.RawMessage
	if err := c.do(ctx, "GET", devStatusPath+"?"+q.Encode(), nil, &raw); err != nil {
		return nil, fmt.Errorf("dev-status of issue %s: %w", issueID, err)
	}

	if c.cache != nil {
		if err := c.cache.Put(DevStatusBucket, issueID, raw); err != nil {
			c.logger.WithError(err).Warn("cache write failed")
		}
	}
	return raw, nil
}

// FixCommit is a bug-fixing commit and the files it removed lines from
type FixCommit struct {
	Hash      string
	Timestamp time.Time
	Files     []string
	IssueKey  string
}

// FixCollector gathers fix commits from issues. A commit linked to several
// issues keeps its first occurrence.
type FixCollector struct {
	client *Client
	match  func(path string) bool
	seen   map[string]struct{}
	fixes  []FixCommit
}

// NewFixCollector creates a collector keeping only files accepted by match.
// A nil match accepts every path.
func NewFixCollector(client *Client, match func(path string) bool) *FixCollector {
	if match == nil {
		match = func(string) bool { return true }
	}
	return &FixCollector{client: client, match: match, seen: make(map[string]struct{})}
}

// AddIssue fetches the commits linked to issue and records the new ones
// that removed at least one line from a matching file
func (f *FixCollector) AddIssue(ctx context.Context, issue Issue) error {
	commits, err := f.client.LinkedCommits(ctx, issue.ID)
	if err != nil {
		return err
	}

	for _, lc := range commits {
		if _, dup := f.seen[lc.ID]; dup {
			continue
		}

		var files []string
		for _, file := range lc.Files {
			if file.LinesRemoved != 0 && f.match(file.Path) {
				files = append(files, file.Path)
			}
		}
		if len(files) == 0 {
			continue
		}

		f.seen[lc.ID] = struct{}{}
		f.fixes = append(f.fixes, FixCommit{
			Hash:      lc.ID,
			Timestamp: lc.AuthorTimestamp.Time,
			Files:     files,
			IssueKey:  issue.Key,
		})
	}
	return nil
}

// Fixes returns the collected fix commits in discovery order
func (f *FixCollector) Fixes() []FixCommit {
	return f.fixes
}

// CollectFixes runs jql and gathers the fix commits of every matching issue
func (c *Client) CollectFixes(ctx context.Context, jql string, match func(path string) bool) ([]FixCommit, error) {
	collector := NewFixCollector(c, match)
	processed := 0

	err := c.Search(ctx, jql, func(issue Issue) error {
		processed++
		c.logger.WithFields(logrus.Fields{"issue": issue.Key, "n": processed}).Debug("retrieving linked commits")
		return collector.AddIssue(ctx, issue)
	})
	if err != nil {
		return nil, err
	}

	return collector.Fixes(), nil
}

// IssueKeys returns the keys of issues, preserving order
func IssueKeys(issues []Issue) []string {
	keys := make([]string, len(issues))
	for i, is := range issues {
		keys[i] = strings.TrimSpace(is.Key)
	}
	return keys
}
