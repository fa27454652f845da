package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
	"github.com/rohankatakam/defectminer/internal/git"
	"github.com/rohankatakam/defectminer/internal/logging"
	"github.com/rohankatakam/defectminer/internal/metrics"
)

// Client wraps the GitHub API client with rate limiting and concurrency
type Client struct {
	client      *github.Client
	rateLimiter *rate.Limiter
	maxWorkers  int
	maxRetries  int
	logger      logrus.FieldLogger
}

// Option customises a Client
type Option func(*Client) error

// WithBaseURL points the client at another API root (GitHub Enterprise or a
// test server)
func WithBaseURL(base string) Option {
	return func(c *Client) error {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		c.client.BaseURL = u
		return nil
	}
}

// WithWorkers bounds how many projects are fetched at once
func WithWorkers(n int) Option {
	return func(c *Client) error {
		if n > 0 {
			c.maxWorkers = n
		}
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// NewClient creates a new GitHub client with rate limiting. An empty token
// makes unauthenticated requests.
func NewClient(token string, rateLimit float64, opts ...Option) (*Client, error) {
	client := github.NewClient(&http.Client{Timeout: 30 * time.Second})
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if rateLimit <= 0 {
		rateLimit = 1
	}

	c := &Client{
		client:      client,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		maxWorkers:  4,
		maxRetries:  5,
		logger:      logging.Discard(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Project identifies a repository to analyse
type Project struct {
	Name string
	URL  string // any form accepted by git.ParseRepoURL
}

// ProjectGini is the contribution inequality of one project. Available is
// false when the repository could not be read; the other fields are then
// zero.
type ProjectGini struct {
	Name          string
	Available     bool
	Gini          float64
	Contributions int
	Contributors  int
	Counts        []int // per contributor, in API order
}

// Contributions returns the contribution count of every contributor of
// owner/repo, following pagination to the last page
func (c *Client) Contributions(ctx context.Context, owner, repo string) ([]int, error) {
	opts := &github.ListContributorsOptions{
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var counts []int
	for {
		page, resp, err := c.listContributors(ctx, owner, repo, opts)
		if err != nil {
			return nil, err
		}

		for _, contributor := range page {
			counts = append(counts, contributor.GetContributions())
		}

		c.logRateLimit(resp)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return counts, nil
}

func (c *Client) listContributors(ctx context.Context, owner, repo string, opts *github.ListContributorsOptions) ([]*github.Contributor, *github.Response, error) {
	type page struct {
		contributors []*github.Contributor
		resp         *github.Response
	}

	retryable := false
	operation := func() (page, error) {
		retryable = false
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return page{}, backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
		}

		contributors, resp, err := c.client.Repositories.ListContributors(ctx, owner, repo, opts)
		if err == nil {
			return page{contributors, resp}, nil
		}

		var rle *github.RateLimitError
		if errors.As(err, &rle) {
			wait := max(int(time.Until(rle.Rate.Reset.Time).Seconds())+1, 1)
			c.logger.WithField("wait_seconds", wait).Warn("GitHub rate limit hit")
			retryable = true
			return page{}, errors.Join(err, backoff.RetryAfter(wait))
		}
		var abuse *github.AbuseRateLimitError
		if errors.As(err, &abuse) {
			wait := int(abuse.GetRetryAfter().Seconds())
			retryable = true
			return page{}, errors.Join(err, backoff.RetryAfter(wait))
		}
		if resp != nil && resp.StatusCode >= 500 {
			retryable = true
			return page{}, err
		}
		return page{}, backoff.Permanent(err)
	}

	p, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.maxRetries)),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, nil, perm.Unwrap()
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		if !retryable {
			return nil, nil, err
		}
		return nil, nil, dmerrors.RetriesExhausted(err, "list contributors of %s/%s", owner, repo)
	}
	return p.contributors, p.resp, nil
}

// ProjectGini computes the Gini index of one project. Repositories that do
// not exist or report no contributors yield Available=false.
func (c *Client) ProjectGini(ctx context.Context, p Project) (ProjectGini, error) {
	result := ProjectGini{Name: p.Name}

	owner, repo, err := git.ParseRepoURL(p.URL)
	if err != nil {
		return result, dmerrors.ValidationErrorf("project %s: %v", p.Name, err)
	}

	counts, err := c.Contributions(ctx, owner, repo)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			c.logger.WithField("project", p.Name).Warn("repository not found, skipping")
			return result, nil
		}
		return result, fmt.Errorf("project %s: %w", p.Name, err)
	}
	if len(counts) == 0 {
		c.logger.WithField("project", p.Name).Warn("no contributors reported, skipping")
		return result, nil
	}

	values := make([]float64, len(counts))
	for i, n := range counts {
		values[i] = float64(n)
		result.Contributions += n
	}
	result.Available = true
	result.Contributors = len(counts)
	result.Counts = counts
	result.Gini = metrics.Gini(values)
	return result, nil
}

// GiniAll computes ProjectGini for every project with a bounded worker pool.
// Results keep the input order.
func (c *Client) GiniAll(ctx context.Context, projects []Project) ([]ProjectGini, error) {
	results := make([]ProjectGini, len(projects))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxWorkers)

	for i, p := range projects {
		g.Go(func() error {
			res, err := c.ProjectGini(ctx, p)
			if err != nil {
				return err
			}
			results[i] = res
			c.logger.WithFields(logrus.Fields{
				"project":      p.Name,
				"contributors": res.Contributors,
				"gini":         res.Gini,
			}).Info("project analysed")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// logRateLimit warns when the remaining quota gets low
func (c *Client) logRateLimit(resp *github.Response) {
	if resp == nil {
		return
	}

	remaining := resp.Rate.Remaining
	limit := resp.Rate.Limit

	if limit > 0 && remaining < 100 {
		c.logger.WithFields(logrus.Fields{"remaining": remaining, "limit": limit}).Warn("GitHub rate limit low")
	}
}
