package storage

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rohankatakam/defectminer/internal/metrics"
	"github.com/rohankatakam/defectminer/internal/models"
)

type runRecord struct {
	ID         string       `db:"id"`
	Kind       string       `db:"kind"`
	Repo       string       `db:"repo"`
	StartedAt  time.Time    `db:"started_at"`
	FinishedAt sql.NullTime `db:"finished_at"`
	Status     string       `db:"status"`
	RowCount   int          `db:"row_count"`
	Error      string       `db:"error"`
}

func newRunRecord(kind, repo string) runRecord {
	return runRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Repo:      repo,
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}
}

func (r runRecord) toModel() *models.Run {
	run := &models.Run{
		ID:        r.ID,
		Kind:      r.Kind,
		Repo:      r.Repo,
		StartedAt: r.StartedAt,
		Status:    r.Status,
		Rows:      r.RowCount,
	}
	if r.FinishedAt.Valid {
		t := r.FinishedAt.Time
		run.FinishedAt = &t
	}
	return run
}

func finishStatus(runErr error) (string, string) {
	if runErr != nil {
		return models.RunStatusFailed, runErr.Error()
	}
	return models.RunStatusFinished, ""
}

// commitRecord is a CommitRow flattened into columns; nil pointers are NULL
type commitRecord struct {
	RunID      string    `db:"run_id"`
	CommitHash string    `db:"commit_hash"`
	Path       string    `db:"path"`
	FileName   string    `db:"file_name"`
	Directory  string    `db:"directory_name"`
	Author     string    `db:"commit_author"`
	Timestamp  time.Time `db:"timestamp"`

	LineTotal       *int     `db:"line_total"`
	LineMinor       *int     `db:"line_minor"`
	LineMajor       *int     `db:"line_major"`
	LineOwnership   *float64 `db:"line_ownership"`
	LineAuthor      *float64 `db:"line_author"`
	LineAuthorOwner *bool    `db:"line_author_owner"`

	CommitTotal       *int     `db:"commit_total"`
	CommitMinor       *int     `db:"commit_minor"`
	CommitMajor       *int     `db:"commit_major"`
	CommitOwnership   *float64 `db:"commit_ownership"`
	CommitAuthor      *float64 `db:"commit_author_ratio"`
	CommitAuthorOwner *bool    `db:"commit_author_owner"`

	BugsInduced   int    `db:"bugs_induced"`
	PostRelease   int    `db:"post_release_bugs"`
	DevTime       int    `db:"dev_time_bugs"`
	FixCommits    string `db:"fix_commits"`
	FixTimestamps string `db:"fix_timestamps"`
}

type metricColumns struct {
	total, minor, major *int
	ownership, author   *float64
	authorOwner         *bool
}

func flattenMetrics(m *metrics.Metrics) metricColumns {
	if m == nil {
		return metricColumns{}
	}
	v := *m
	return metricColumns{
		total:       &v.Total,
		minor:       &v.Minor,
		major:       &v.Major,
		ownership:   &v.Ownership,
		author:      &v.AuthorShare,
		authorOwner: &v.AuthorIsOwner,
	}
}

func newCommitRecord(runID string, row models.CommitRow) commitRecord {
	line := flattenMetrics(row.Line)
	commit := flattenMetrics(row.Commit)

	stamps := make([]string, len(row.Bugs.FixTimestamps))
	for i, t := range row.Bugs.FixTimestamps {
		stamps[i] = strconv.FormatInt(t.Unix(), 10)
	}

	return commitRecord{
		RunID:      runID,
		CommitHash: row.CommitHash,
		Path:       row.Path,
		FileName:   row.FileName(),
		Directory:  row.Directory(),
		Author:     row.Author,
		Timestamp:  row.Timestamp,

		LineTotal:       line.total,
		LineMinor:       line.minor,
		LineMajor:       line.major,
		LineOwnership:   line.ownership,
		LineAuthor:      line.author,
		LineAuthorOwner: line.authorOwner,

		CommitTotal:       commit.total,
		CommitMinor:       commit.minor,
		CommitMajor:       commit.major,
		CommitOwnership:   commit.ownership,
		CommitAuthor:      commit.author,
		CommitAuthorOwner: commit.authorOwner,

		BugsInduced:   row.Bugs.Induced(),
		PostRelease:   row.Bugs.PostRelease,
		DevTime:       row.Bugs.DevTime,
		FixCommits:    strings.Join(row.Bugs.FixCommits, ","),
		FixTimestamps: strings.Join(stamps, ","),
	}
}

type releaseRecord struct {
	RunID       string    `db:"run_id"`
	Release     string    `db:"release_tag"`
	ReleaseDate time.Time `db:"release_date"`
	Path        string    `db:"file_name"`
	Comm        int       `db:"comm"`
	Adev        int       `db:"adev"`
	Ddev        int       `db:"ddev"`
	Add         float64   `db:"added"`
	Del         float64   `db:"deleted"`
	Own         float64   `db:"own"`
	Minor       int       `db:"minor"`
	Buggy       bool      `db:"buggy"`
	AfterNext   bool      `db:"bug_after_next_release"`
}

func newReleaseRecord(runID string, row models.ReleaseRow) releaseRecord {
	return releaseRecord{
		RunID:       runID,
		Release:     row.Release,
		ReleaseDate: row.ReleaseDate,
		Path:        row.Path,
		Comm:        row.Metrics.Comm,
		Adev:        row.Metrics.Adev,
		Ddev:        row.Metrics.Ddev,
		Add:         row.Metrics.Add,
		Del:         row.Metrics.Del,
		Own:         row.Metrics.Own,
		Minor:       row.Metrics.Minor,
		Buggy:       row.Buggy,
		AfterNext:   row.AfterNext,
	}
}

// NopStore discards everything; used when persistence is disabled
type NopStore struct{}

func (NopStore) BeginRun(context.Context, string, string) (string, error) {
	return uuid.NewString(), nil
}

func (NopStore) FinishRun(context.Context, string, int, error) error { return nil }

func (NopStore) GetRun(context.Context, string) (*models.Run, error) { return nil, ErrNotFound }

func (NopStore) SaveCommitRows(context.Context, string, []models.CommitRow) error { return nil }

func (NopStore) SaveReleaseRows(context.Context, string, []models.ReleaseRow) error { return nil }

func (NopStore) Close() error { return nil }
