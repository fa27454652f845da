package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
)

func testConfig(url string) Config {
	return Config{
		BaseURL:        url,
		PageSize:       2,
		RateLimit:      1000,
		Burst:          10,
		MaxRetries:     3,
		Timeout:        5 * time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(testConfig(srv.URL), opts...)
	require.NoError(t, err)
	return c
}

// issueServer serves total issues named KEY-1..KEY-total, pageSize at a time
func issueServer(t *testing.T, total int, starts *[]int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, searchPath, r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*starts = append(*starts, req.StartAt)

		resp := searchResponse{StartAt: req.StartAt, MaxResults: req.MaxResults, Total: total}
		for i := req.StartAt; i < total && i < req.StartAt+req.MaxResults; i++ {
			resp.Issues = append(resp.Issues, Issue{ID: fmt.Sprint(1000 + i), Key: fmt.Sprintf("KEY-%d", i+1)})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestSearch_PaginatesUntilTotal(t *testing.T) {
	var starts []int
	c := newTestClient(t, issueServer(t, 5, &starts))

	issues, err := c.SearchAll(context.Background(), "project = KEY")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 4}, starts)
	require.Len(t, issues, 5)
	assert.Equal(t, "KEY-1", issues[0].Key)
	assert.Equal(t, "KEY-5", issues[4].Key)
	assert.Equal(t, []string{"KEY-1", "KEY-2", "KEY-3", "KEY-4", "KEY-5"}, IssueKeys(issues))
}

func TestSearch_EmptyResult(t *testing.T) {
	var starts []int
	c := newTestClient(t, issueServer(t, 0, &starts))

	issues, err := c.SearchAll(context.Background(), "project = KEY")
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, []int{0}, starts)
}

func TestSearch_CallbackErrorStops(t *testing.T) {
	var starts []int
	c := newTestClient(t, issueServer(t, 10, &starts))

	err := c.Search(context.Background(), "x", func(Issue) error { return fmt.Errorf("stop") })
	require.EqualError(t, err, "stop")
	assert.Equal(t, []int{0}, starts)
}

func TestBugQuery(t *testing.T) {
	q := BugQuery([]string{"HADOOP", "HDFS"}, time.Date(2014, 6, 30, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "(project = HADOOP OR project = HDFS) AND issuetype = Bug AND resolution = Fixed AND created >= 2014-06-30", q)

	assert.Equal(t, "(project = LUCENE) AND issuetype = Bug AND resolution = Fixed", BugQuery([]string{"LUCENE"}, time.Time{}))
}

func TestDo_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"startAt":0,"maxResults":2,"total":1,"issues":[{"id":"1","key":"KEY-1"}]}`)
	}))

	issues, err := c.SearchAll(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, issues, 1)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_RetriesMalformedBody(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			fmt.Fprint(w, `{"startAt":`)
			return
		}
		fmt.Fprint(w, `{"startAt":0,"maxResults":2,"total":0,"issues":[]}`)
	}))

	_, err := c.SearchAll(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDo_ExhaustionIsFatal(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := c.SearchAll(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, dmerrors.IsFatal(err), "got %v", err)
	assert.Equal(t, dmerrors.ErrorTypeExternal, dmerrors.GetType(err))
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls)) // first try + 3 retries
}

func TestDo_ZeroRetriesTriesOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 0
	c, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = c.SearchAll(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, dmerrors.IsFatal(err), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad jql", http.StatusBadRequest)
	}))

	_, err := c.SearchAll(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad jql")
	assert.False(t, dmerrors.IsFatal(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDo_Auth(t *testing.T) {
	var user, pass string
	var ok bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
		fmt.Fprint(w, `{"total":0}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.User, cfg.Token = "miner", "s3cret"
	c, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = c.SearchAll(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "miner", user)
	assert.Equal(t, "s3cret", pass)
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.Equal(t, dmerrors.ErrorTypeConfig, dmerrors.GetType(err))
}

const devStatusBody = `{"errors":[],"detail":[{"repositories":[{"name":"hadoop","commits":[
 {"id":"c1","authorTimestamp":"2015-06-01T12:00:00.000+0200","files":[
   {"path":"src/A.java","linesAdded":1,"linesRemoved":2},
   {"path":"src/B.java","linesAdded":5,"linesRemoved":0},
   {"path":"docs/a.md","linesAdded":1,"linesRemoved":1}]},
 {"id":"c2","authorTimestamp":1433160000000,"files":[
   {"path":"docs/b.md","linesAdded":1,"linesRemoved":3}]}
]}]}]}`

func devStatusServer(t *testing.T, calls *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case searchPath:
			fmt.Fprint(w, `{"startAt":0,"maxResults":2,"total":2,"issues":[{"id":"10","key":"HADOOP-1"},{"id":"11","key":"HADOOP-2"}]}`)
		case devStatusPath:
			atomic.AddInt32(calls, 1)
			assert.Equal(t, "fecru", r.URL.Query().Get("applicationType"))
			assert.Equal(t, "repository", r.URL.Query().Get("dataType"))
			fmt.Fprint(w, devStatusBody)
		default:
			http.NotFound(w, r)
		}
	}
}

func TestLinkedCommits(t *testing.T) {
	var calls int32
	c := newTestClient(t, devStatusServer(t, &calls))

	commits, err := c.LinkedCommits(context.Background(), "10")
	require.NoError(t, err)
	require.Len(t, commits, 2)

	want := time.Date(2015, 6, 1, 10, 0, 0, 0, time.UTC)
	assert.True(t, commits[0].AuthorTimestamp.Equal(want), "got %v", commits[0].AuthorTimestamp)
	assert.True(t, commits[1].AuthorTimestamp.Equal(time.UnixMilli(1433160000000)))
	assert.Equal(t, 2, commits[0].Files[0].LinesRemoved)
}

func TestCollectFixes(t *testing.T) {
	var calls int32
	c := newTestClient(t, devStatusServer(t, &calls))

	fixes, err := c.CollectFixes(context.Background(), "x", func(p string) bool { return strings.HasSuffix(p, ".java") })
	require.NoError(t, err)

	// c1 linked twice keeps the first issue; c2 touched no java file
	require.Len(t, fixes, 1)
	assert.Equal(t, "c1", fixes[0].Hash)
	assert.Equal(t, "HADOOP-1", fixes[0].IssueKey)
	assert.Equal(t, []string{"src/A.java"}, fixes[0].Files)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memCache) Get(bucket, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[bucket+"/"+key]
	return v, ok, nil
}

func (m *memCache) Put(bucket, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[bucket+"/"+key] = append([]byte(nil), value...)
	return nil
}

func TestLinkedCommits_Cache(t *testing.T) {
	var calls int32
	cache := &memCache{data: map[string][]byte{}}
	c := newTestClient(t, devStatusServer(t, &calls), WithCache(cache))

	for i := 0; i < 3; i++ {
		commits, err := c.LinkedCommits(context.Background(), "10")
		require.NoError(t, err)
		assert.Len(t, commits, 2)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTimestamp_Invalid(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
}
