package output

import (
	"encoding/json"
	"io"

	"github.com/rohankatakam/defectminer/internal/github"
)

// JSONFormatter writes summaries as indented JSON
type JSONFormatter struct{}

func (f *JSONFormatter) Format(s *RunSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

type giniJSON struct {
	Project       string   `json:"project_name"`
	Gini          *float64 `json:"gini_index,omitempty"`
	Contributions int      `json:"n_contributions,omitempty"`
	Contributors  int      `json:"n_contributors,omitempty"`
}

func (f *JSONFormatter) FormatGini(results []github.ProjectGini, w io.Writer) error {
	out := make([]giniJSON, len(results))
	for i, r := range results {
		out[i] = giniJSON{Project: r.Name}
		if r.Available {
			g := r.Gini
			out[i].Gini = &g
			out[i].Contributions = r.Contributions
			out[i].Contributors = r.Contributors
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
