package output

import (
	"fmt"
	"io"

	"github.com/rohankatakam/defectminer/internal/github"
)

// QuietFormatter outputs a one-line summary
type QuietFormatter struct{}

func (f *QuietFormatter) Format(s *RunSummary, w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s %s: %d rows, %d fixes, %d attributions in %s\n",
		s.Kind, s.Repo, s.Rows, s.Fixes, s.Attributions, s.Duration.Round(1e9))
	return err
}

func (f *QuietFormatter) FormatGini(results []github.ProjectGini, w io.Writer) error {
	available := 0
	for _, r := range results {
		if r.Available {
			available++
		}
	}
	_, err := fmt.Fprintf(w, "gini: %d/%d projects analysed\n", available, len(results))
	return err
}
