package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
	"github.com/rohankatakam/defectminer/internal/github"
	"github.com/rohankatakam/defectminer/internal/metrics"
	"github.com/rohankatakam/defectminer/internal/models"
)

// TimestampLayout matches git's %ai author date
const TimestampLayout = "2006-01-02 15:04:05 -0700"

// ReleaseDateLayout is the date embedded in release file names
const ReleaseDateLayout = "2006-01-02"

// CommitHeader is the column order of the commit-level dataset
var CommitHeader = []string{
	"commit_hash", "file_name", "directory_name", "commit_author", "timestamp",
	"line_contributors_total", "line_contributors_minor", "line_contributors_major",
	"line_contributors_ownership", "line_contributors_author", "line_contributors_author_owner",
	"commit_contributors_total", "commit_contributors_minor", "commit_contributors_major",
	"commit_contributors_ownership", "commit_contributors_author", "commit_contributors_author_owner",
	"bugs_induced_qty", "post_release_bugs", "dev_time_bugs",
	"fix_commits_hash", "fix_commits_timestamp",
}

// ReleaseHeader is the column order of every release file
var ReleaseHeader = []string{
	"file_name", "comm", "adev", "ddev", "add", "del", "own", "minor",
	"buggy", "bug_discovered_after_next_release",
}

// GiniHeader is the column order of the project inequality file
var GiniHeader = []string{"project_name", "gini_index", "n_contributions", "n_contributors"}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formatRatio(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func metricCells(m *metrics.Metrics) []string {
	if m == nil {
		return []string{"", "", "", "", "", ""}
	}
	return []string{
		strconv.Itoa(m.Total),
		strconv.Itoa(m.Minor),
		strconv.Itoa(m.Major),
		formatRatio(m.Ownership),
		formatRatio(m.AuthorShare),
		formatBool(m.AuthorIsOwner),
	}
}

// CommitWriter streams commit-level rows as ';'-separated CSV
type CommitWriter struct {
	w    *csv.Writer
	rows int
}

// NewCommitWriter writes the header and returns the writer
func NewCommitWriter(w io.Writer) (*CommitWriter, error) {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(CommitHeader); err != nil {
		return nil, fmt.Errorf("write commit header: %w", err)
	}
	return &CommitWriter{w: cw}, nil
}

// Write appends one row. Revisions without bugs leave the per-kind counters
// and fix lists empty.
func (c *CommitWriter) Write(row models.CommitRow) error {
	record := make([]string, 0, len(CommitHeader))
	record = append(record,
		row.CommitHash,
		row.FileName(),
		row.Directory(),
		row.Author,
		row.Timestamp.Format(TimestampLayout),
	)
	record = append(record, metricCells(row.Line)...)
	record = append(record, metricCells(row.Commit)...)

	if induced := row.Bugs.Induced(); induced > 0 {
		stamps := make([]string, len(row.Bugs.FixTimestamps))
		for i, t := range row.Bugs.FixTimestamps {
			stamps[i] = strconv.FormatInt(t.Unix(), 10)
		}
		record = append(record,
			strconv.Itoa(induced),
			strconv.Itoa(row.Bugs.PostRelease),
			strconv.Itoa(row.Bugs.DevTime),
			strings.Join(row.Bugs.FixCommits, ","),
			strings.Join(stamps, ","),
		)
	} else {
		record = append(record, "0", "", "", "", "")
	}

	if err := c.w.Write(record); err != nil {
		return fmt.Errorf("write commit row %s %s: %w", row.CommitHash, row.Path, err)
	}
	c.rows++
	return nil
}

// Rows returns the number of rows written so far
func (c *CommitWriter) Rows() int {
	return c.rows
}

// Flush flushes buffered rows and reports any write error
func (c *CommitWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// WriteCommitCSV writes a complete commit-level dataset
func WriteCommitCSV(w io.Writer, rows []models.CommitRow) error {
	cw, err := NewCommitWriter(w)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return cw.Flush()
}

// CommitFileName names the commit-level dataset of repo
func CommitFileName(repo string) string {
	return repo + "-commits.csv"
}

// WriteCommitFile writes rows to dir under CommitFileName and returns the path
func WriteCommitFile(dir, repo string, rows []models.CommitRow) (string, error) {
	path := filepath.Join(dir, CommitFileName(repo))
	err := writeFile(path, func(w io.Writer) error {
		return WriteCommitCSV(w, rows)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// writeFile creates path and its directory and fills it with write
func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return dmerrors.FileSystemErrorf(err, "create output directory")
	}

	f, err := os.Create(path)
	if err != nil {
		return dmerrors.FileSystemErrorf(err, "create %s", path)
	}

	if err := write(f); err != nil {
		f.Close()
		return dmerrors.FileSystemErrorf(err, "write %s", path).WithContext("path", path)
	}
	if err := f.Close(); err != nil {
		return dmerrors.FileSystemErrorf(err, "close %s", path)
	}
	return nil
}

// WriteReleaseCSV writes the rows of one release
func WriteReleaseCSV(w io.Writer, rows []models.ReleaseRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReleaseHeader); err != nil {
		return fmt.Errorf("write release header: %w", err)
	}

	for _, row := range rows {
		m := row.Metrics
		record := []string{
			row.Path,
			strconv.Itoa(m.Comm),
			strconv.Itoa(m.Adev),
			strconv.Itoa(m.Ddev),
			fmt.Sprintf("%.6f", m.Add),
			fmt.Sprintf("%.6f", m.Del),
			fmt.Sprintf("%.6f", m.Own),
			strconv.Itoa(m.Minor),
			formatBool(row.Buggy),
			formatBool(row.AfterNext),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write release row %s: %w", row.Path, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReleaseFileName names the file of one release: <repo>-<YYYY-MM-DD>-<tag>.csv.
// Path separators in tags are replaced so the file stays in one directory.
func ReleaseFileName(repo string, date time.Time, tag string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(tag)
	return fmt.Sprintf("%s-%s-%s.csv", repo, date.Format(ReleaseDateLayout), safe)
}

// WriteReleaseFile writes rows to dir under ReleaseFileName and returns the path
func WriteReleaseFile(dir, repo string, date time.Time, tag string, rows []models.ReleaseRow) (string, error) {
	path := filepath.Join(dir, ReleaseFileName(repo, date, tag))
	err := writeFile(path, func(w io.Writer) error {
		return WriteReleaseCSV(w, rows)
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// WriteGiniCSV writes one line per project. Unavailable projects keep only
// their name.
func WriteGiniCSV(w io.Writer, results []github.ProjectGini) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(GiniHeader); err != nil {
		return fmt.Errorf("write gini header: %w", err)
	}

	for _, r := range results {
		record := []string{r.Name, "", "", ""}
		if r.Available {
			record[1] = formatRatio(r.Gini)
			record[2] = strconv.Itoa(r.Contributions)
			record[3] = strconv.Itoa(r.Contributors)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write gini row %s: %w", r.Name, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
