package temporal

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseLog(t *testing.T) {
	output := "\x1eabc123\x1f2015-09-15T10:00:00+02:00\x1fjohn@example.com\x1fFix auth bug HADOOP-42\n" +
		"src/Auth.java\n" +
		"src/Database.java\n" +
		"\n" +
		"\x1edef456\x1f2015-09-16T14:30:00Z\x1fjane@example.com\x1fAdd caching\n" +
		"src/Cache.java\n"

	commits, err := ParseLog(output)
	if err != nil {
		t.Fatalf("ParseLog failed: %v", err)
	}

	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}

	c1 := commits[0]
	if c1.Hash != "abc123" {
		t.Errorf("expected hash abc123, got %s", c1.Hash)
	}
	if c1.Author != "john@example.com" {
		t.Errorf("expected author john@example.com, got %s", c1.Author)
	}
	if c1.Message != "Fix auth bug HADOOP-42" {
		t.Errorf("expected message 'Fix auth bug HADOOP-42', got '%s'", c1.Message)
	}
	want := time.Date(2015, 9, 15, 8, 0, 0, 0, time.UTC)
	if !c1.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, c1.Timestamp)
	}
	if len(c1.Files) != 2 || c1.Files[0] != "src/Auth.java" || c1.Files[1] != "src/Database.java" {
		t.Errorf("unexpected files: %v", c1.Files)
	}

	if len(commits[1].Files) != 1 {
		t.Errorf("expected 1 file in second commit, got %v", commits[1].Files)
	}
}

func TestParseLog_SubjectWithSeparatorsAndNoFiles(t *testing.T) {
	output := "\x1eabc\x1f2015-01-01T00:00:00Z\x1fa@x.org\x1fmerge: a|b|c"

	commits, err := ParseLog(output)
	if err != nil {
		t.Fatalf("ParseLog failed: %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(commits))
	}
	if commits[0].Message != "merge: a|b|c" {
		t.Errorf("unexpected message %q", commits[0].Message)
	}
	if len(commits[0].Files) != 0 {
		t.Errorf("expected no files, got %v", commits[0].Files)
	}
}

func TestParseLog_Malformed(t *testing.T) {
	if _, err := ParseLog("\x1eabc\x1fnot-a-date\x1fa@x.org\x1fmsg\n"); err == nil {
		t.Error("expected error for bad date")
	}
	if _, err := ParseLog("\x1eabc only\n"); err == nil {
		t.Error("expected error for short header")
	}
}

func TestParseNumstat_BinaryFiles(t *testing.T) {
	// Binary files should be skipped (marked with "-")
	output := "-\t-\tassets/logo.png\n10\t5\tsrc/Auth.java\n\n3\t0\tsrc/Auth.java\n"

	changes, err := ParseNumstat(output)
	if err != nil {
		t.Fatalf("ParseNumstat failed: %v", err)
	}

	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].Path != "src/Auth.java" || changes[0].Additions != 10 || changes[0].Deletions != 5 {
		t.Errorf("unexpected first change: %+v", changes[0])
	}
	if changes[1].Additions != 3 || changes[1].Deletions != 0 {
		t.Errorf("unexpected second change: %+v", changes[1])
	}
}

func TestParseNumstat_Malformed(t *testing.T) {
	if _, err := ParseNumstat("x\t1\tfile\n"); err == nil {
		t.Error("expected error for non-numeric count")
	}
	if _, err := ParseNumstat("1 1 file\n"); err == nil {
		t.Error("expected error for missing tabs")
	}
}

type fakeLog struct {
	nameOnly string
	err      error
}

func (f fakeLog) LogNameOnly(ctx context.Context, rev string, after, before time.Time) (string, error) {
	return f.nameOnly, f.err
}

func (f fakeLog) LogSubjects(ctx context.Context, rev string, after, before time.Time) (string, error) {
	return f.nameOnly, f.err
}

func (f fakeLog) Numstat(ctx context.Context, rev string, after, before time.Time) (string, error) {
	return "", f.err
}

func TestLoadCommits_Filter(t *testing.T) {
	src := fakeLog{nameOnly: "\x1ea\x1f2015-01-01T00:00:00Z\x1fa@x.org\x1fone\nsrc/A.java\nREADME\n" +
		"\x1eb\x1f2015-01-02T00:00:00Z\x1fb@x.org\x1ftwo\ndocs/index.md\n"}

	filter, err := NewPathFilter(`\.java$`)
	if err != nil {
		t.Fatalf("NewPathFilter failed: %v", err)
	}

	commits, err := LoadCommits(context.Background(), src, "", time.Time{}, time.Time{}, filter)
	if err != nil {
		t.Fatalf("LoadCommits failed: %v", err)
	}

	if len(commits) != 1 {
		t.Fatalf("expected commit b to be dropped, got %d commits", len(commits))
	}
	if len(commits[0].Files) != 1 || commits[0].Files[0] != "src/A.java" {
		t.Errorf("unexpected files: %v", commits[0].Files)
	}
}

func TestLoadCommits_Error(t *testing.T) {
	src := fakeLog{err: errors.New("boom")}
	if _, err := LoadCommits(context.Background(), src, "", time.Time{}, time.Time{}, nil); err == nil {
		t.Error("expected error")
	}
}

func TestPathFilter(t *testing.T) {
	var none *PathFilter
	if !none.Match("anything") {
		t.Error("nil filter should accept every path")
	}

	f, err := NewPathFilter("")
	if err != nil || f != nil {
		t.Errorf("empty pattern should give a nil filter, got %v %v", f, err)
	}

	if _, err := NewPathFilter("("); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
