package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/defectminer/internal/bugfix"
	"github.com/rohankatakam/defectminer/internal/config"
	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
	"github.com/rohankatakam/defectminer/internal/git"
	"github.com/rohankatakam/defectminer/internal/jira"
	"github.com/rohankatakam/defectminer/internal/metrics"
	"github.com/rohankatakam/defectminer/internal/models"
	"github.com/rohankatakam/defectminer/internal/output"
	"github.com/rohankatakam/defectminer/internal/temporal"
)

// commitWindows are the parsed dates of the commits section
type commitWindows struct {
	since, until       time.Time
	historyStart       time.Time
	fixSince, fixUntil time.Time
}

func parseCommitWindows(cfg config.CommitsConfig) (commitWindows, error) {
	var w commitWindows
	var err error

	dates := []struct {
		dst   *time.Time
		value string
		name  string
	}{
		{&w.since, cfg.Since, "commits.since"},
		{&w.until, cfg.Until, "commits.until"},
		{&w.historyStart, cfg.HistoryStart, "commits.history_start"},
		{&w.fixSince, cfg.FixSince, "commits.fix_since"},
		{&w.fixUntil, cfg.FixUntil, "commits.fix_until"},
	}
	for _, d := range dates {
		if *d.dst, err = config.ParseDate(d.value); err != nil {
			return w, fmt.Errorf("%s: %w", d.name, err)
		}
	}
	return w, nil
}

// commitDataset is the in-memory commit-level dataset. index maps every
// file revision to its row.
type commitDataset struct {
	rows  []models.CommitRow
	index map[temporal.FileRevision]int
}

func newCommitDataset(commits []temporal.Commit) *commitDataset {
	ds := &commitDataset{index: make(map[temporal.FileRevision]int)}
	for _, c := range commits {
		for _, path := range c.Files {
			key := temporal.FileRevision{Commit: c.Hash, Path: path}
			if _, dup := ds.index[key]; dup {
				continue
			}
			ds.index[key] = len(ds.rows)
			ds.rows = append(ds.rows, models.CommitRow{
				CommitHash: c.Hash,
				Path:       path,
				Author:     c.Author,
				Timestamp:  c.Timestamp,
			})
		}
	}
	return ds
}

// credit records that fix fixed a bug introduced by the revision key. It
// returns false when the revision is outside the dataset.
func (ds *commitDataset) credit(key temporal.FileRevision, fix temporal.Commit, cls bugfix.Classification) bool {
	i, ok := ds.index[key]
	if !ok {
		return false
	}

	bugs := &ds.rows[i].Bugs
	if cls.PostRelease {
		bugs.PostRelease++
	}
	if cls.DevTime {
		bugs.DevTime++
	}
	bugs.FixCommits = append(bugs.FixCommits, fix.Hash)
	bugs.FixTimestamps = append(bugs.FixTimestamps, fix.Timestamp)
	return true
}

// RunCommits builds the commit-level dataset, writes it as CSV and persists
// the rows.
func (o *Orchestrator) RunCommits(ctx context.Context) (*output.RunSummary, error) {
	return o.run(ctx, models.RunKindCommits, func(runID string, summary *output.RunSummary) error {
		ds, err := o.buildCommitDataset(ctx, summary)
		if err != nil {
			return err
		}

		path, err := output.WriteCommitFile(o.config.Output.Dir, o.config.Repo.Name, ds.rows)
		if err != nil {
			return err
		}
		summary.Outputs = append(summary.Outputs, path)

		if err := o.store.SaveCommitRows(ctx, runID, ds.rows); err != nil {
			return fmt.Errorf("failed to save commit rows: %w", err)
		}
		summary.Rows = len(ds.rows)
		return nil
	})
}

func (o *Orchestrator) buildCommitDataset(ctx context.Context, summary *output.RunSummary) (*commitDataset, error) {
	windows, err := parseCommitWindows(o.config.Commits)
	if err != nil {
		return nil, err
	}
	filter, err := o.pathFilter()
	if err != nil {
		return nil, err
	}
	branch := o.config.Repo.Branch

	// Phase 1: file revisions in the analysis window
	commits, err := temporal.LoadCommits(ctx, o.repo, branch, windows.since, windows.until, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load commits: %w", err)
	}
	ds := newCommitDataset(commits)
	summary.Commits = len(commits)

	o.logger.WithFields(logrus.Fields{
		"commits":   len(commits),
		"revisions": len(ds.rows),
	}).Info("Loaded file revisions")

	// Phase 2: line and commit contributor metrics
	for i := range ds.rows {
		row := &ds.rows[i]
		if row.Line, err = o.lineMetrics(ctx, row); err != nil {
			return nil, err
		}
		if row.Commit, err = o.commitMetrics(ctx, row, windows.historyStart); err != nil {
			return nil, err
		}
		o.logger.WithFields(logrus.Fields{
			"n":    i + 1,
			"of":   len(ds.rows),
			"path": row.Path,
		}).Debug("computed contributor metrics")
	}
	o.logger.Info("Computed contributor metrics")

	// Phase 3: bug fixes and their introducing revisions
	detector, err := o.newDetector(ctx)
	if err != nil {
		return nil, err
	}

	candidates, err := temporal.LoadSubjects(ctx, o.repo, branch, windows.fixSince, windows.fixUntil)
	if err != nil {
		return nil, fmt.Errorf("failed to load fix candidates: %w", err)
	}

	for _, fix := range candidates {
		cls := detector.Classify(fix.Message)
		if !cls.IsFix() {
			continue
		}
		summary.Fixes++

		credited, err := o.attributeFix(ctx, ds, fix, cls, filter)
		if err != nil {
			return nil, err
		}
		summary.Attributions += credited
	}

	o.logger.WithFields(logrus.Fields{
		"candidates":   len(candidates),
		"fixes":        summary.Fixes,
		"attributions": summary.Attributions,
	}).Info("Attributed bug fixes")

	return ds, nil
}

// attributeFix credits every dataset revision that introduced a line the fix
// removed. A revision is credited at most once per fix.
func (o *Orchestrator) attributeFix(ctx context.Context, ds *commitDataset, fix temporal.Commit, cls bugfix.Classification, filter *temporal.PathFilter) (int, error) {
	files, err := o.repo.ChangedFiles(ctx, fix.Hash)
	if err != nil {
		if dmerrors.IsNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list files of %s: %w", fix.Hash, err)
	}

	credited := 0
	seen := make(map[temporal.FileRevision]struct{})

	for _, path := range filter.Filter(files) {
		sites, err := o.engine.Attribute(ctx, fix.Hash, path)
		if err != nil {
			return credited, err
		}
		for _, site := range sites {
			key := site.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if ds.credit(key, fix, cls) {
				credited++
			}
		}
	}

	o.logger.WithFields(logrus.Fields{
		"fix":          fix.Hash,
		"post_release": cls.PostRelease,
		"dev_time":     cls.DevTime,
		"credited":     credited,
	}).Debug("processed bug fix")

	return credited, nil
}

// newDetector builds the fix classifier. Tracker bug keys are loaded when an
// oracle is configured; without one only keyword fixes are detected.
func (o *Orchestrator) newDetector(ctx context.Context) (*bugfix.Detector, error) {
	detector, err := bugfix.NewDetector(o.config.Commits.IssueKeys, o.config.Commits.Keywords)
	if err != nil {
		return nil, err
	}

	if o.oracle == nil || len(o.config.Commits.IssueKeys) == 0 {
		o.logger.Warn("No issue tracker configured, detecting development-time fixes only")
		return detector, nil
	}

	issues, err := o.oracle.SearchAll(ctx, jira.BugQuery(o.config.Commits.IssueKeys, time.Time{}))
	if err != nil {
		return nil, fmt.Errorf("failed to load tracker bugs: %w", err)
	}
	detector.AddBugKeys(jira.IssueKeys(issues)...)

	o.logger.WithField("bugs", detector.BugKeys()).Info("Loaded tracker bug keys")
	return detector, nil
}

// lineMetrics measures line authorship of the file just before the commit.
// A file that did not exist yet has no metrics.
func (o *Orchestrator) lineMetrics(ctx context.Context, row *models.CommitRow) (*metrics.Metrics, error) {
	out, err := o.repo.Blame(ctx, row.CommitHash+"^1", row.Path)
	if err != nil {
		if dmerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to blame %s^1 -- %s: %w", row.CommitHash, row.Path, err)
	}

	lines, err := git.ParseBlame(out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse blame of %s^1 -- %s: %w", row.CommitHash, row.Path, err)
	}

	counter := make(metrics.Counter)
	for _, l := range lines {
		counter.Add(l.AuthorMail, 1)
	}
	return computeOptional(counter, row.Author)
}

// commitMetrics measures the authors of every commit to the file from the
// history start up to the commit itself.
func (o *Orchestrator) commitMetrics(ctx context.Context, row *models.CommitRow, historyStart time.Time) (*metrics.Metrics, error) {
	authors, err := o.repo.AuthorEmails(ctx, o.config.Repo.Branch, row.Path, historyStart, row.Timestamp)
	if err != nil {
		if dmerrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list authors of %s: %w", row.Path, err)
	}
	return computeOptional(metrics.NewCounter(authors), row.Author)
}

// computeOptional returns nil metrics for an empty counter
func computeOptional(counter metrics.Counter, subject string) (*metrics.Metrics, error) {
	m, err := metrics.Compute(counter, subject)
	if errors.Is(err, metrics.ErrEmptyCounter) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
