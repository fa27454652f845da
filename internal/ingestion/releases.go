package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/defectminer/internal/config"
	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
	"github.com/rohankatakam/defectminer/internal/git"
	"github.com/rohankatakam/defectminer/internal/jira"
	"github.com/rohankatakam/defectminer/internal/metrics"
	"github.com/rohankatakam/defectminer/internal/models"
	"github.com/rohankatakam/defectminer/internal/output"
	"github.com/rohankatakam/defectminer/internal/temporal"
)

// RunReleases builds the release-level dataset: one CSV per release window.
func (o *Orchestrator) RunReleases(ctx context.Context) (*output.RunSummary, error) {
	return o.run(ctx, models.RunKindReleases, func(runID string, summary *output.RunSummary) error {
		windows, err := o.buildReleaseWindows(ctx, summary)
		if err != nil {
			return err
		}

		for _, w := range windows {
			rows := models.ReleaseRows(w)

			path, err := output.WriteReleaseFile(o.config.Output.Dir, o.config.Repo.Name, w.End, w.Tag, rows)
			if err != nil {
				return err
			}
			if err := o.store.SaveReleaseRows(ctx, runID, rows); err != nil {
				return fmt.Errorf("failed to save rows of %s: %w", w.Tag, err)
			}

			rs := output.ReleaseSummary{Tag: w.Tag, Date: w.End, Files: len(rows), Path: path}
			for _, row := range rows {
				if row.Buggy {
					rs.Buggy++
				}
				if row.AfterNext {
					rs.AfterNext++
				}
			}
			summary.Releases = append(summary.Releases, rs)
			summary.Outputs = append(summary.Outputs, path)
			summary.Rows += len(rows)
		}
		return nil
	})
}

func (o *Orchestrator) buildReleaseWindows(ctx context.Context, summary *output.RunSummary) ([]*temporal.ReleaseWindow, error) {
	if o.oracle == nil {
		return nil, dmerrors.ConfigError("the release dataset needs an issue tracker")
	}

	filter, err := o.pathFilter()
	if err != nil {
		return nil, err
	}

	// Phase 1: windows and their snapshots
	windows, err := temporal.BuildWindows(ctx, o.repo, o.config.Releases.Tags, filter, o.now())
	if err != nil {
		return nil, err
	}
	for _, w := range windows {
		o.logger.WithFields(logrus.Fields{
			"release":      w.Tag,
			"start":        w.Start,
			"end":          w.End,
			"next_release": w.NextRelease,
			"files":        len(w.Files),
		}).Info("Added release window")
	}

	// Phase 2: tracker fixes bound to the windows they were introduced in
	bugsSince, err := config.ParseDate(o.config.Releases.BugsSince)
	if err != nil {
		return nil, fmt.Errorf("releases.bugs_since: %w", err)
	}
	if bugsSince.IsZero() {
		bugsSince = windows[0].Start
	}

	jql := jira.BugQuery(o.config.Releases.JiraKeys, bugsSince)
	o.logger.WithField("jql", jql).Info("Retrieving defect information from the tracker")

	fixes, err := o.oracle.CollectFixes(ctx, jql, filter.Match)
	if err != nil {
		return nil, fmt.Errorf("failed to collect bug fixes: %w", err)
	}
	summary.Fixes = len(fixes)

	var bound temporal.BindResult
	for i, fix := range fixes {
		o.logger.WithFields(logrus.Fields{
			"n":   i + 1,
			"of":  len(fixes),
			"fix": fix.Hash,
		}).Debug("processing bug-fixing commit")

		for _, path := range fix.Files {
			sites, err := o.engine.Attribute(ctx, fix.Hash, path)
			if err != nil {
				return nil, err
			}
			for _, site := range sites {
				res := temporal.Bind(windows, site.Timestamp, site.Path, fix.Timestamp)
				bound.Windows += res.Windows
				bound.MarkedBuggy += res.MarkedBuggy
				bound.MarkedAfterNext += res.MarkedAfterNext
			}
			summary.Attributions += len(sites)
		}
	}

	o.logger.WithFields(logrus.Fields{
		"fixes":        len(fixes),
		"attributions": summary.Attributions,
		"buggy":        bound.MarkedBuggy,
		"after_next":   bound.MarkedAfterNext,
	}).Info("Linked bug fixes to releases")

	// Phase 3: process metrics
	for _, w := range windows {
		if err := o.computeReleaseMetrics(ctx, w, filter, summary); err != nil {
			return nil, fmt.Errorf("failed to compute metrics of %s: %w", w.Tag, err)
		}
		o.logger.WithField("release", w.Tag).Info("Computed release metrics")
	}

	return windows, nil
}

func (o *Orchestrator) computeReleaseMetrics(ctx context.Context, w *temporal.ReleaseWindow, filter *temporal.PathFilter, summary *output.RunSummary) error {
	// COMM and ADEV
	commits, err := temporal.LoadCommits(ctx, o.repo, w.Tag, w.Start, w.End, filter)
	if err != nil {
		return err
	}
	summary.Commits += len(commits)

	authors := make(map[string]map[string]struct{})
	for _, c := range commits {
		for _, path := range c.Files {
			rec, ok := w.Files[path]
			if !ok {
				continue
			}
			rec.Metrics.Comm++
			if authors[path] == nil {
				authors[path] = make(map[string]struct{})
			}
			authors[path][c.Author] = struct{}{}
		}
	}
	for path, set := range authors {
		w.Files[path].Metrics.Adev = len(set)
	}

	// ADD and DEL, normalised by every change in the window
	changes, err := temporal.LoadNumstat(ctx, o.repo, w.Tag, w.Start, w.End)
	if err != nil {
		return err
	}
	applyChurn(w, changes)

	// DDEV, OWN and MINOR need one git call per file
	for i, path := range w.Paths() {
		rec := w.Files[path]

		if rec.Metrics.Ddev, err = o.distinctDevelopers(ctx, w.Tag, path); err != nil {
			return err
		}

		own, minor, err := o.windowOwnership(ctx, w, path)
		if err != nil {
			return err
		}
		rec.Metrics.Own, rec.Metrics.Minor = own, minor

		o.logger.WithFields(logrus.Fields{
			"release": w.Tag,
			"n":       i + 1,
			"of":      len(w.Files),
		}).Debug("computed file metrics")
	}

	return nil
}

// applyChurn sets ADD and DEL of every window file. A window without added
// (or deleted) lines leaves the matching metric at zero.
func applyChurn(w *temporal.ReleaseWindow, changes []temporal.FileChange) {
	totalAdded, totalDeleted := 0, 0
	added := make(map[string]int)
	deleted := make(map[string]int)

	for _, ch := range changes {
		totalAdded += ch.Additions
		totalDeleted += ch.Deletions
		if _, ok := w.Files[ch.Path]; ok {
			added[ch.Path] += ch.Additions
			deleted[ch.Path] += ch.Deletions
		}
	}

	for path, rec := range w.Files {
		if totalAdded > 0 {
			rec.Metrics.Add = float64(added[path]) / float64(totalAdded)
		}
		if totalDeleted > 0 {
			rec.Metrics.Del = float64(deleted[path]) / float64(totalDeleted)
		}
	}
}

// distinctDevelopers counts the authors of the file since the beginning of
// history up to the release
func (o *Orchestrator) distinctDevelopers(ctx context.Context, tag, path string) (int, error) {
	emails, err := o.repo.AuthorEmails(ctx, tag, path, time.Time{}, time.Time{})
	if err != nil {
		if dmerrors.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return len(metrics.NewCounter(emails)), nil
}

// windowOwnership computes OWN and MINOR from the blame just before the
// release, counting only lines authored after the window start. Files with
// no such line keep zero.
func (o *Orchestrator) windowOwnership(ctx context.Context, w *temporal.ReleaseWindow, path string) (float64, int, error) {
	out, err := o.repo.Blame(ctx, w.Tag+"^1", path)
	if err != nil {
		if dmerrors.IsNotFound(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	lines, err := git.ParseBlame(out)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse blame of %s^1 -- %s: %w", w.Tag, path, err)
	}

	counter := make(metrics.Counter)
	for _, l := range lines {
		if l.AuthorTime.After(w.Start) {
			counter.Add(l.AuthorMail, 1)
		}
	}

	m, err := computeOptional(counter, "")
	if err != nil || m == nil {
		return 0, 0, err
	}
	return m.Ownership, m.Minor, nil
}
