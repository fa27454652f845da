// Package attribution finds the commits that introduced the lines a bug-fix
// commit removed.
//
// For one fix commit and one file it touched, the removed line ranges come
// from the zero-context diff against the first parent, and the blame of that
// parent maps each removed line to its introducing commit, author time and
// the path the line lived under at the time. A (commit, path) pair is
// attributed at most once per fix.
package attribution

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
	"github.com/rohankatakam/defectminer/internal/git"
	"github.com/rohankatakam/defectminer/internal/logging"
	"github.com/rohankatakam/defectminer/internal/temporal"
)

// Attribution is one defect site: the commit that introduced a removed line,
// when it was authored and the original path of the line.
type Attribution struct {
	Commit    string    `json:"commit"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
}

// Key returns the file revision the attribution points at
func (a Attribution) Key() temporal.FileRevision {
	return temporal.FileRevision{Commit: a.Commit, Path: a.Path}
}

// DiffBlamer is the slice of the git oracle the engine needs.
// *git.Repo satisfies it.
type DiffBlamer interface {
	ShowDiff(ctx context.Context, commit, path string) (string, error)
	Blame(ctx context.Context, rev, path string) (string, error)
}

// Engine attributes bug fixes to the commits that introduced them
type Engine struct {
	oracle DiffBlamer
	logger logrus.FieldLogger
}

// NewEngine creates an engine backed by oracle. A nil logger discards output.
func NewEngine(oracle DiffBlamer, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{oracle: oracle, logger: logger}
}

// Attribute returns the deduplicated defect sites of path for fixCommit,
// sorted by commit then path. An empty result with a nil error is the normal
// outcome when the fix removed nothing from path or when the file or parent
// does not exist in history.
func (e *Engine) Attribute(ctx context.Context, fixCommit, path string) ([]Attribution, error) {
	log := e.logger.WithFields(logrus.Fields{"fix": fixCommit, "path": path})

	diff, err := e.oracle.ShowDiff(ctx, fixCommit, path)
	if err != nil {
		if dmerrors.IsNotFound(err) {
			log.Debug("fix commit or path not found, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("diff %s -- %s: %w", fixCommit, path, err)
	}

	ranges := git.ParseRemovedRanges(diff)
	if len(ranges) == 0 {
		log.Debug("no removed lines")
		return nil, nil
	}

	out, err := e.oracle.Blame(ctx, fixCommit+"^1", path)
	if err != nil {
		if dmerrors.IsNotFound(err) {
			log.Debug("file absent before fix, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("blame %s^1 -- %s: %w", fixCommit, path, err)
	}

	lines, err := git.ParseBlame(out)
	if err != nil {
		return nil, fmt.Errorf("parse blame of %s^1 -- %s: %w", fixCommit, path, err)
	}

	result := FromBlame(ranges, lines)
	log.WithField("attributions", len(result)).Debug("attributed")
	return result, nil
}

// FromBlame selects the blame lines inside any removed range and returns the
// distinct (commit, path) sites they belong to, sorted by commit then path.
func FromBlame(ranges []git.LineRange, lines []git.BlameLine) []Attribution {
	seen := make(map[temporal.FileRevision]Attribution)

	for _, bl := range lines {
		if !git.InAnyRange(ranges, bl.Line) {
			continue
		}
		a := Attribution{Commit: bl.Commit, Timestamp: bl.AuthorTime, Path: bl.Filename}
		if _, ok := seen[a.Key()]; !ok {
			seen[a.Key()] = a
		}
	}

	result := make([]Attribution, 0, len(seen))
	for _, a := range seen {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Commit != result[j].Commit {
			return result[i].Commit < result[j].Commit
		}
		return result[i].Path < result[j].Path
	})
	return result
}
