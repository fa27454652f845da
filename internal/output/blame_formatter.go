package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/rohankatakam/defectminer/internal/attribution"
)

// BlameFormatter formats the revisions a fix was attributed to
type BlameFormatter struct {
	format string // "table", "json", "csv"
}

// NewBlameFormatter creates a new blame formatter
func NewBlameFormatter(format string) *BlameFormatter {
	return &BlameFormatter{format: format}
}

// FormatAttributions writes the revisions that introduced the lines removed
// by fixCommit in path
func (f *BlameFormatter) FormatAttributions(w io.Writer, fixCommit, path string, attrs []attribution.Attribution) error {
	switch f.format {
	case "json":
		return f.formatJSON(w, fixCommit, path, attrs)
	case "csv":
		return f.formatCSV(w, attrs)
	default:
		return f.formatTable(w, fixCommit, path, attrs)
	}
}

func shortHash(hash string) string {
	if len(hash) > 10 {
		return hash[:10]
	}
	return hash
}

func (f *BlameFormatter) formatTable(w io.Writer, fixCommit, path string, attrs []attribution.Attribution) error {
	if len(attrs) == 0 {
		fmt.Fprintf(w, "%s removes no attributable lines from %s\n", shortHash(fixCommit), path)
		return nil
	}

	fmt.Fprintf(w, "Fix %s in %s blames %d revision(s)\n\n", shortHash(fixCommit), path, len(attrs))

	tbl := newTable(w)
	tbl.AppendHeader([]any{"Commit", "Authored", "Path"})
	for _, a := range attrs {
		commit := color.New(color.FgYellow).Sprint(shortHash(a.Commit))
		tbl.AppendRow([]any{commit, a.Timestamp.UTC().Format(TimestampLayout), a.Path})
	}
	tbl.Render()
	return nil
}

func (f *BlameFormatter) formatJSON(w io.Writer, fixCommit, path string, attrs []attribution.Attribution) error {
	type revisionJSON struct {
		Commit    string    `json:"commit"`
		Timestamp time.Time `json:"timestamp"`
		Path      string    `json:"path"`
	}

	type outputJSON struct {
		Fix       string         `json:"fix_commit"`
		File      string         `json:"file"`
		Revisions []revisionJSON `json:"revisions"`
	}

	out := outputJSON{
		Fix:       fixCommit,
		File:      path,
		Revisions: make([]revisionJSON, 0, len(attrs)),
	}
	for _, a := range attrs {
		out.Revisions = append(out.Revisions, revisionJSON{Commit: a.Commit, Timestamp: a.Timestamp, Path: a.Path})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func (f *BlameFormatter) formatCSV(w io.Writer, attrs []attribution.Attribution) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"commit", "timestamp", "path"}); err != nil {
		return err
	}
	for _, a := range attrs {
		if err := writer.Write([]string{a.Commit, fmt.Sprintf("%d", a.Timestamp.Unix()), a.Path}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
