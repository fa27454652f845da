package output

import (
	"io"
	"os"
	"time"

	"github.com/rohankatakam/defectminer/internal/github"
)

// ReleaseSummary describes one written release file
type ReleaseSummary struct {
	Tag       string    `json:"tag"`
	Date      time.Time `json:"date"`
	Files     int       `json:"files"`
	Buggy     int       `json:"buggy"`
	AfterNext int       `json:"bug_discovered_after_next_release"`
	Path      string    `json:"path"`
}

// RunSummary is what a dataset run reports when it completes
type RunSummary struct {
	Kind     string        `json:"kind"`
	Repo     string        `json:"repo"`
	RunID    string        `json:"run_id"`
	Duration time.Duration `json:"duration"`

	Commits      int `json:"commits"`
	Fixes        int `json:"fixes"`
	Attributions int `json:"attributions"`
	Rows         int `json:"rows"`

	Outputs  []string         `json:"outputs"`
	Releases []ReleaseSummary `json:"releases,omitempty"`
}

// Formatter defines output formatting interface
type Formatter interface {
	Format(s *RunSummary, w io.Writer) error
	FormatGini(results []github.ProjectGini, w io.Writer) error
}

// VerbosityLevel determines output detail
type VerbosityLevel int

const (
	VerbosityQuiet    VerbosityLevel = iota // one-line summary
	VerbosityStandard                       // tables
	VerbosityJSON                           // machine-readable
)

// NewFormatter creates appropriate formatter based on level
func NewFormatter(level VerbosityLevel) Formatter {
	switch level {
	case VerbosityQuiet:
		return &QuietFormatter{}
	case VerbosityJSON:
		return &JSONFormatter{}
	default:
		return &StandardFormatter{}
	}
}

// GetDefaultVerbosity returns appropriate default based on environment
func GetDefaultVerbosity() VerbosityLevel {
	if os.Getenv("DEFECTMINER_OUTPUT") == "json" {
		return VerbosityJSON
	}
	if os.Getenv("DEFECTMINER_QUIET") == "1" {
		return VerbosityQuiet
	}
	return VerbosityStandard
}
