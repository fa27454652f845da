package temporal

import (
	"context"
	"fmt"
	"time"
)

// ReleaseWindow is the development interval that ended with a release tag
type ReleaseWindow struct {
	Tag         string
	Start       time.Time // previous release
	End         time.Time // this release
	NextRelease time.Time // following release, or the run time for the last tag
	Files       map[string]*FileRecord

	paths []string // ls-tree order
}

// NewReleaseWindow creates a window whose snapshot holds paths, all clean
func NewReleaseWindow(tag string, start, end, next time.Time, paths []string) *ReleaseWindow {
	w := &ReleaseWindow{
		Tag:         tag,
		Start:       start,
		End:         end,
		NextRelease: next,
		Files:       make(map[string]*FileRecord, len(paths)),
	}
	for _, p := range paths {
		if _, dup := w.Files[p]; dup {
			continue
		}
		w.Files[p] = &FileRecord{}
		w.paths = append(w.paths, p)
	}
	return w
}

// Paths returns the snapshot's paths in the order they were listed
func (w *ReleaseWindow) Paths() []string {
	return w.paths
}

// Contains reports whether t lies strictly inside (Start, End)
func (w *ReleaseWindow) Contains(t time.Time) bool {
	return w.Start.Before(t) && t.Before(w.End)
}

// SnapshotSource is the slice of the git oracle needed to build windows
type SnapshotSource interface {
	RefTime(ctx context.Context, ref string) (time.Time, error)
	ListFiles(ctx context.Context, rev string) ([]string, error)
}

// BuildWindows turns an ordered tag list into release windows. The first tag
// only opens the first window. The last window's next release is now.
func BuildWindows(ctx context.Context, src SnapshotSource, tags []string, filter *PathFilter, now time.Time) ([]*ReleaseWindow, error) {
	if len(tags) < 2 {
		return nil, fmt.Errorf("need at least two release tags, got %d", len(tags))
	}

	times := make([]time.Time, len(tags))
	for i, tag := range tags {
		ts, err := src.RefTime(ctx, tag)
		if err != nil {
			return nil, fmt.Errorf("resolve tag %s: %w", tag, err)
		}
		times[i] = ts
	}

	windows := make([]*ReleaseWindow, 0, len(tags)-1)
	for i := 1; i < len(tags); i++ {
		next := now
		if i < len(tags)-1 {
			next = times[i+1]
		}

		files, err := src.ListFiles(ctx, tags[i])
		if err != nil {
			return nil, fmt.Errorf("list files of %s: %w", tags[i], err)
		}

		windows = append(windows, NewReleaseWindow(tags[i], times[i-1], times[i], next, filter.Filter(files)))
	}

	return windows, nil
}

// BindResult counts what a single Bind call changed
type BindResult struct {
	Windows         int // windows whose interval contains the introduction
	MarkedBuggy     int // file records newly set buggy
	MarkedAfterNext int // file records newly flagged as discovered after the next release
}

// Bind marks path buggy in every window whose open interval contains the
// introduction time and whose snapshot has the file. When the fix lands
// after that window's next release the late-discovery flag is set too.
// Both flags are monotone.
func Bind(windows []*ReleaseWindow, introduced time.Time, path string, fixed time.Time) BindResult {
	var res BindResult

	for _, w := range windows {
		if !w.Contains(introduced) {
			continue
		}
		res.Windows++

		rec, ok := w.Files[path]
		if !ok {
			continue
		}

		if !rec.Buggy {
			rec.Buggy = true
			res.MarkedBuggy++
		}

		if fixed.After(w.NextRelease) && !rec.BugDiscoveredAfterNextRelease {
			rec.BugDiscoveredAfterNextRelease = true
			res.MarkedAfterNext++
		}
	}

	return res
}
