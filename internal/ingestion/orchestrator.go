// Package ingestion runs the dataset pipelines: it mines a repository's
// history, asks the bug oracle which commits fixed bugs, attributes those
// fixes to the commits that introduced them and writes the labelled rows.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/defectminer/internal/attribution"
	"github.com/rohankatakam/defectminer/internal/config"
	"github.com/rohankatakam/defectminer/internal/git"
	"github.com/rohankatakam/defectminer/internal/jira"
	"github.com/rohankatakam/defectminer/internal/logging"
	"github.com/rohankatakam/defectminer/internal/output"
	"github.com/rohankatakam/defectminer/internal/storage"
	"github.com/rohankatakam/defectminer/internal/temporal"
)

// BugOracle answers which tracker issues are fixed bugs and which commits
// fixed them. *jira.Client satisfies it.
type BugOracle interface {
	SearchAll(ctx context.Context, jql string) ([]jira.Issue, error)
	CollectFixes(ctx context.Context, jql string, match func(path string) bool) ([]jira.FixCommit, error)
}

// Orchestrator coordinates the dataset pipelines for one repository
type Orchestrator struct {
	repo   *git.Repo
	engine *attribution.Engine
	oracle BugOracle
	store  storage.Store
	logger *logrus.Logger
	config *config.Config
	now    func() time.Time
}

// NewOrchestrator creates a new orchestrator. A nil oracle disables the
// tracker: the commit pipeline then detects development-time fixes only and
// the release pipeline refuses to run. A nil store disables persistence.
func NewOrchestrator(
	repo *git.Repo,
	oracle BugOracle,
	store storage.Store,
	logger *logrus.Logger,
	config *config.Config,
) *Orchestrator {
	if store == nil {
		store = storage.NopStore{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{
		repo:   repo,
		engine: attribution.NewEngine(repo, logger.WithField("component", "attribution")),
		oracle: oracle,
		store:  store,
		logger: logger,
		config: config,
		now:    time.Now,
	}
}

func (o *Orchestrator) pathFilter() (*temporal.PathFilter, error) {
	filter, err := temporal.NewPathFilter(o.config.Repo.PathPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid path pattern: %w", err)
	}
	return filter, nil
}

// run wraps a pipeline in a persisted run record. The run is marked failed
// when the pipeline returns an error.
func (o *Orchestrator) run(ctx context.Context, kind string, pipeline func(runID string, summary *output.RunSummary) error) (*output.RunSummary, error) {
	startTime := time.Now()
	repoName := o.config.Repo.Name

	o.logger.WithFields(logrus.Fields{
		"kind": kind,
		"repo": repoName,
	}).Info("Starting dataset run")

	if err := o.repo.Verify(ctx); err != nil {
		return nil, err
	}

	runID, err := o.store.BeginRun(ctx, kind, repoName)
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	summary := &output.RunSummary{
		Kind:  kind,
		Repo:  repoName,
		RunID: runID,
	}

	runErr := pipeline(runID, summary)
	if err := o.store.FinishRun(ctx, runID, summary.Rows, runErr); err != nil {
		o.logger.WithError(err).Warn("failed to finish run record")
	}
	if runErr != nil {
		return nil, runErr
	}

	summary.Duration = time.Since(startTime)

	o.logger.WithFields(logrus.Fields{
		"run_id":       runID,
		"duration":     summary.Duration.String(),
		"commits":      summary.Commits,
		"fixes":        summary.Fixes,
		"attributions": summary.Attributions,
		"rows":         summary.Rows,
	}).Info("Dataset run completed")

	return summary, nil
}
