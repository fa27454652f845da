package output

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/rohankatakam/defectminer/internal/github"
)

// StandardFormatter renders summaries as tables (default)
type StandardFormatter struct{}

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false
	return tbl
}

func (f *StandardFormatter) Format(s *RunSummary, w io.Writer) error {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "%s dataset for %s\n", s.Kind, s.Repo)
	if s.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", s.RunID)
	}
	fmt.Fprintf(w, "Completed in %s\n\n", s.Duration.Round(1e9))

	stats := newTable(w)
	stats.AppendHeader(table.Row{"Commits", "Fixes", "Attributions", "Rows"})
	stats.AppendRow(table.Row{
		humanize.Comma(int64(s.Commits)),
		humanize.Comma(int64(s.Fixes)),
		humanize.Comma(int64(s.Attributions)),
		humanize.Comma(int64(s.Rows)),
	})
	stats.Render()

	if len(s.Releases) > 0 {
		fmt.Fprintln(w)
		releases := newTable(w)
		releases.AppendHeader(table.Row{"Release", "Date", "Files", "Buggy", "Late", "Buggy %"})
		for _, r := range s.Releases {
			share := 0.0
			if r.Files > 0 {
				share = float64(r.Buggy) * 100 / float64(r.Files)
			}
			releases.AppendRow(table.Row{
				r.Tag,
				r.Date.Format(ReleaseDateLayout),
				humanize.Comma(int64(r.Files)),
				humanize.Comma(int64(r.Buggy)),
				humanize.Comma(int64(r.AfterNext)),
				fmt.Sprintf("%.1f", share),
			})
		}
		releases.Render()
	}

	if len(s.Outputs) > 0 {
		fmt.Fprintln(w)
		for _, path := range s.Outputs {
			color.New(color.FgGreen).Fprintf(w, "wrote %s\n", path)
		}
	}
	return nil
}

func (f *StandardFormatter) FormatGini(results []github.ProjectGini, w io.Writer) error {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Project", "Gini", "Contributions", "Contributors"})

	missing := 0
	for _, r := range results {
		if !r.Available {
			missing++
			tbl.AppendRow(table.Row{r.Name, color.YellowString("unavailable"), "", ""})
			continue
		}
		tbl.AppendRow(table.Row{
			r.Name,
			fmt.Sprintf("%.4f", r.Gini),
			humanize.Comma(int64(r.Contributions)),
			humanize.Comma(int64(r.Contributors)),
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d projects", len(results)), "", "", ""})
	tbl.Render()

	if missing > 0 {
		color.New(color.FgYellow).Fprintf(w, "%d project(s) could not be read\n", missing)
	}
	return nil
}
