package temporal

import (
	"regexp"
	"time"
)

// Commit represents a git commit
type Commit struct {
	Hash      string
	Author    string // author email
	Timestamp time.Time
	Message   string // subject line
	Files     []string
}

// FileRevision identifies "this file as touched by this commit"
type FileRevision struct {
	Commit string
	Path   string
}

// FileChange is one numstat line
type FileChange struct {
	Path      string
	Additions int
	Deletions int
}

// ReleaseMetrics are the per-file process metrics of a release
type ReleaseMetrics struct {
	Comm  int     // commits touching the file in the window
	Adev  int     // distinct authors in the window
	Ddev  int     // distinct authors since the beginning of history
	Add   float64 // added lines normalised by all added lines in the window
	Del   float64 // deleted lines normalised by all deleted lines in the window
	Own   float64 // line share of the top line contributor in the window
	Minor int     // line contributors at or under the minor threshold
}

// FileRecord is the state of one file within a release
type FileRecord struct {
	Buggy                         bool
	BugDiscoveredAfterNextRelease bool
	Metrics                       ReleaseMetrics
}

// PathFilter selects which paths take part in an analysis. A nil filter
// accepts everything.
type PathFilter struct {
	re *regexp.Regexp
}

// NewPathFilter compiles pattern; an empty pattern accepts every path.
func NewPathFilter(pattern string) (*PathFilter, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &PathFilter{re: re}, nil
}

// Match reports whether path passes the filter
func (f *PathFilter) Match(path string) bool {
	if f == nil {
		return true
	}
	return f.re.MatchString(path)
}

// Filter returns the paths that pass the filter, preserving order
func (f *PathFilter) Filter(paths []string) []string {
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		if f.Match(p) {
			result = append(result, p)
		}
	}
	return result
}
