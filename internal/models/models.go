package models

import (
	"path"
	"time"

	"github.com/rohankatakam/defectminer/internal/metrics"
	"github.com/rohankatakam/defectminer/internal/temporal"
)

// Run kinds
const (
	RunKindCommits  = "commits"
	RunKindReleases = "releases"
)

// Run statuses
const (
	RunStatusRunning  = "running"
	RunStatusFinished = "finished"
	RunStatusFailed   = "failed"
)

// Run is one execution of a dataset pipeline
type Run struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Repo       string     `json:"repo"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Rows       int        `json:"rows"`
}

// BugInfo accumulates the fixes attributed to one file revision
type BugInfo struct {
	PostRelease   int         `json:"post_release_bugs"`
	DevTime       int         `json:"dev_time_bugs"`
	FixCommits    []string    `json:"fix_commits"`
	FixTimestamps []time.Time `json:"fix_timestamps"`
}

// Induced is the total number of bugs credited to the revision
func (b BugInfo) Induced() int {
	return b.PostRelease + b.DevTime
}

// CommitRow is one (commit, file) record of the commit-level dataset. Nil
// metrics mean the file had no history to measure at that point.
type CommitRow struct {
	CommitHash string           `json:"commit_hash"`
	Path       string           `json:"path"`
	Author     string           `json:"commit_author"`
	Timestamp  time.Time        `json:"timestamp"`
	Line       *metrics.Metrics `json:"line_contributors,omitempty"`
	Commit     *metrics.Metrics `json:"commit_contributors,omitempty"`
	Bugs       BugInfo          `json:"bugs"`
}

// Key returns the file revision the row describes
func (r *CommitRow) Key() temporal.FileRevision {
	return temporal.FileRevision{Commit: r.CommitHash, Path: r.Path}
}

// FileName is the last path element
func (r *CommitRow) FileName() string {
	return path.Base(r.Path)
}

// Directory is the path without its last element, empty at the root
func (r *CommitRow) Directory() string {
	dir := path.Dir(r.Path)
	if dir == "." {
		return ""
	}
	return dir
}

// ReleaseRow is one file of one release in the release-level dataset
type ReleaseRow struct {
	Release     string                  `json:"release"`
	ReleaseDate time.Time               `json:"release_date"`
	Path        string                  `json:"file_name"`
	Metrics     temporal.ReleaseMetrics `json:"metrics"`
	Buggy       bool                    `json:"buggy"`
	AfterNext   bool                    `json:"bug_discovered_after_next_release"`
}

// ReleaseRows flattens a window into rows in snapshot order
func ReleaseRows(w *temporal.ReleaseWindow) []ReleaseRow {
	rows := make([]ReleaseRow, 0, len(w.Files))
	for _, p := range w.Paths() {
		rec := w.Files[p]
		rows = append(rows, ReleaseRow{
			Release:     w.Tag,
			ReleaseDate: w.End,
			Path:        p,
			Metrics:     rec.Metrics,
			Buggy:       rec.Buggy,
			AfterNext:   rec.BugDiscoveredAfterNextRelease,
		})
	}
	return rows
}
