package jira

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const searchPath = "/rest/api/2/search"

// Issue is the subset of a Jira issue the miner needs
type Issue struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

type searchRequest struct {
	JQL        string   `json:"jql"`
	Fields     []string `json:"fields"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
}

type searchResponse struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// BugQuery builds the JQL for fixed bugs of the given projects created on or
// after since. A zero since drops the date clause.
func BugQuery(projectKeys []string, since time.Time) string {
	projects := make([]string, 0, len(projectKeys))
	for _, k := range projectKeys {
		projects = append(projects, "project = "+k)
	}

	clauses := []string{
		"(" + strings.Join(projects, " OR ") + ")",
		"issuetype = Bug",
		"resolution = Fixed",
	}
	if !since.IsZero() {
		clauses = append(clauses, "created >= "+since.Format("2006-01-02"))
	}
	return strings.Join(clauses, " AND ")
}

// Search pages through every issue matching jql, calling fn for each one in
// server order. Paging advances by the number of issues actually returned
// and stops once total is reached or a page comes back empty.
func (c *Client) Search(ctx context.Context, jql string, fn func(Issue) error) error {
	startAt := 0

	for {
		req := searchRequest{
			JQL:        jql,
			Fields:     []string{"key"},
			StartAt:    startAt,
			MaxResults: c.cfg.PageSize,
		}

		var page searchResponse
		if err := c.do(ctx, "POST", searchPath, req, &page); err != nil {
			return fmt.Errorf("search issues at %d: %w", startAt, err)
		}

		for _, issue := range page.Issues {
			if err := fn(issue); err != nil {
				return err
			}
		}

		startAt += len(page.Issues)
		c.logger.WithFields(logrus.Fields{
			"fetched": startAt,
			"total":   page.Total,
		}).Info("jira search progress")

		if len(page.Issues) == 0 || startAt >= page.Total {
			return nil
		}
	}
}

// SearchAll collects every issue matching jql
func (c *Client) SearchAll(ctx context.Context, jql string) ([]Issue, error) {
	var issues []Issue
	err := c.Search(ctx, jql, func(issue Issue) error {
		issues = append(issues, issue)
		return nil
	})
	return issues, err
}
