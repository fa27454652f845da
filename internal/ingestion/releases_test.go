package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
	"github.com/rohankatakam/defectminer/internal/git/gittest"
	"github.com/rohankatakam/defectminer/internal/jira"
	"github.com/rohankatakam/defectminer/internal/models"
	"github.com/rohankatakam/defectminer/internal/temporal"
)

// releaseHistory has three tags on empty commits so window boundaries never
// carry file changes:
//
//	c0 2012-01 alice  A.java, B.java, README
//	r0 2012-06
//	c1 2013-03 bob    A.java line 2
//	c2 2013-04 carol  B.java gains a line, README rewritten
//	r1 2013-06
//	c3 2013-09 alice  A.java line 4
//	r2 2013-12
//	c4 2014-03 bob    "fix A" replaces A.java line 2
type releaseHistory struct {
	repo *gittest.Repo
	c1   string
	c4   string
}

func buildReleaseHistory(t *testing.T) releaseHistory {
	r := gittest.New(t)
	h := releaseHistory{repo: r}

	r.Write("A.java", "a1", "a2", "a3", "a4")
	r.Write("B.java", "b1", "b2")
	r.Write("README", "v0")
	r.Commit(alice, day(2012, 1, 1), "initial import")

	r.EmptyCommit(alice, day(2012, 6, 1), "release 0")
	r.Tag("r0")

	r.Write("A.java", "a1", "b2", "a3", "a4")
	h.c1 = r.Commit(bob, day(2013, 3, 1), "rework A")

	r.Write("B.java", "b1", "b2", "b3")
	r.Write("README", "v1")
	r.Commit(carol, day(2013, 4, 1), "extend B")

	r.EmptyCommit(alice, day(2013, 6, 1), "release 1")
	r.Tag("r1")

	r.Write("A.java", "a1", "b2", "a3", "c4")
	r.Commit(alice, day(2013, 9, 1), "tune A")

	r.EmptyCommit(alice, day(2013, 12, 1), "release 2")
	r.Tag("r2")

	r.Write("A.java", "a1", "fixed", "a3", "c4")
	h.c4 = r.Commit(bob, day(2014, 3, 1), "fix A")

	return h
}

func releaseConfigFor(t *testing.T, h releaseHistory) (*fakeOracle, *Orchestrator) {
	cfg := testConfig(t, h.repo.Dir)
	cfg.Releases.Tags = []string{"r0", "r1", "r2"}
	cfg.Releases.JiraKeys = []string{"HADOOP", "HDFS"}
	cfg.Releases.BugsSince = ""

	oracle := &fakeOracle{fixes: []jira.FixCommit{
		{Hash: h.c4, Timestamp: day(2014, 3, 1), Files: []string{"A.java"}, IssueKey: "HADOOP-1"},
		// unknown to the local clone
		{Hash: strings.Repeat("f", 40), Timestamp: day(2014, 3, 1), Files: []string{"B.java"}, IssueKey: "HDFS-2"},
	}}
	o := newTestOrchestrator(t, cfg, oracle, nil)
	o.now = func() time.Time { return day(2015, 1, 1) }
	return oracle, o
}

func TestBuildReleaseWindows(t *testing.T) {
	h := buildReleaseHistory(t)
	oracle, o := releaseConfigFor(t, h)

	summary := newSummary()
	windows, err := o.buildReleaseWindows(context.Background(), summary)
	require.NoError(t, err)
	require.Len(t, windows, 2)

	require.Len(t, oracle.jql, 1)
	assert.Equal(t,
		"(project = HADOOP OR project = HDFS) AND issuetype = Bug AND resolution = Fixed AND created >= 2012-06-01",
		oracle.jql[0])
	assert.True(t, oracle.match("src/X.java"))
	assert.False(t, oracle.match("README"))

	assert.Equal(t, 2, summary.Fixes)
	assert.Equal(t, 1, summary.Attributions)

	r1, r2 := windows[0], windows[1]
	assert.Equal(t, "r1", r1.Tag)
	assert.Equal(t, []string{"A.java", "B.java"}, r1.Paths())
	assert.True(t, r2.NextRelease.Equal(day(2015, 1, 1)))

	a := r1.Files["A.java"]
	assert.True(t, a.Buggy)
	assert.True(t, a.BugDiscoveredAfterNextRelease)
	assert.Equal(t, temporal.ReleaseMetrics{Comm: 1, Adev: 1, Ddev: 2, Add: a.Metrics.Add, Del: a.Metrics.Del, Own: 1, Minor: 0}, a.Metrics)
	assert.InDelta(t, 1.0/3, a.Metrics.Add, 1e-9)
	assert.InDelta(t, 0.5, a.Metrics.Del, 1e-9)

	b := r1.Files["B.java"]
	assert.False(t, b.Buggy)
	assert.Equal(t, 1, b.Metrics.Comm)
	assert.Equal(t, 2, b.Metrics.Ddev)
	assert.InDelta(t, 1.0/3, b.Metrics.Add, 1e-9)
	assert.InDelta(t, 0.0, b.Metrics.Del, 1e-9)
	assert.InDelta(t, 1.0, b.Metrics.Own, 1e-9)

	a2 := r2.Files["A.java"]
	assert.False(t, a2.Buggy, "the bug was introduced before r2 started")
	assert.Equal(t, 1, a2.Metrics.Comm)
	assert.InDelta(t, 1.0, a2.Metrics.Add, 1e-9)
	assert.InDelta(t, 1.0, a2.Metrics.Own, 1e-9)

	b2 := r2.Files["B.java"]
	assert.Equal(t, temporal.ReleaseMetrics{Ddev: 2}, b2.Metrics)
}

func TestRunReleases_WritesOneFilePerRelease(t *testing.T) {
	h := buildReleaseHistory(t)
	_, o := releaseConfigFor(t, h)
	store := newMemoryStore(t)
	o.store = store

	summary, err := o.RunReleases(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.RunKindReleases, summary.Kind)
	assert.Equal(t, 4, summary.Rows)
	require.Len(t, summary.Releases, 2)
	assert.Equal(t, 1, summary.Releases[0].Buggy)
	assert.Equal(t, 1, summary.Releases[0].AfterNext)
	assert.Equal(t, 0, summary.Releases[1].Buggy)

	dir := o.config.Output.Dir
	assert.Equal(t, []string{
		filepath.Join(dir, "proj-2013-06-01-r1.csv"),
		filepath.Join(dir, "proj-2013-12-01-r2.csv"),
	}, summary.Outputs)

	data, err := os.ReadFile(summary.Outputs[0])
	require.NoError(t, err)
	assert.Equal(t,
		"file_name,comm,adev,ddev,add,del,own,minor,buggy,bug_discovered_after_next_release\n"+
			"A.java,1,1,2,0.333333,0.500000,1.000000,0,True,True\n"+
			"B.java,1,1,2,0.333333,0.000000,1.000000,0,False,False\n",
		string(data))

	run, err := store.GetRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, 4, run.Rows)
}

func TestRunReleases_RequiresTracker(t *testing.T) {
	h := buildReleaseHistory(t)
	cfg := testConfig(t, h.repo.Dir)
	cfg.Releases.Tags = []string{"r0", "r1"}
	o := newTestOrchestrator(t, cfg, nil, nil)

	_, err := o.RunReleases(context.Background())
	require.Error(t, err)
	assert.Equal(t, dmerrors.ErrorTypeConfig, dmerrors.GetType(err))
}

func TestApplyChurn_ZeroTotals(t *testing.T) {
	w := temporal.NewReleaseWindow("r", day(2013, 1, 1), day(2013, 2, 1), day(2013, 3, 1), []string{"A.java"})
	applyChurn(w, []temporal.FileChange{{Path: "A.java", Additions: 4}})

	assert.InDelta(t, 1.0, w.Files["A.java"].Metrics.Add, 1e-9)
	assert.Equal(t, 0.0, w.Files["A.java"].Metrics.Del)
}
