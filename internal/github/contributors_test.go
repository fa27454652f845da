package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contributorsServer serves apache/hadoop over two pages and 404s anything else
func contributorsServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/apache/hadoop/contributors", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"login":"c","contributions":1},{"login":"d","contributions":1}]`)
			return
		}
		next := fmt.Sprintf(`<http://%s/repos/apache/hadoop/contributors?page=2>; rel="next", <http://%s/repos/apache/hadoop/contributors?page=2>; rel="last"`, r.Host, r.Host)
		w.Header().Set("Link", next)
		fmt.Fprint(w, `[{"login":"a","contributions":10},{"login":"b","contributions":4}]`)
	})
	mux.HandleFunc("/repos/apache/empty/contributors", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	srv := contributorsServer(t)
	c, err := NewClient("", 1000, WithBaseURL(srv.URL), WithWorkers(2))
	require.NoError(t, err)
	return c
}

func TestContributions_FollowsPagination(t *testing.T) {
	c := newTestClient(t)

	counts, err := c.Contributions(context.Background(), "apache", "hadoop")
	require.NoError(t, err)
	assert.Equal(t, []int{10, 4, 1, 1}, counts)
}

func TestProjectGini(t *testing.T) {
	c := newTestClient(t)

	res, err := c.ProjectGini(context.Background(), Project{Name: "Hadoop", URL: "https://api.github.com/repos/apache/hadoop"})
	require.NoError(t, err)

	assert.True(t, res.Available)
	assert.Equal(t, 16, res.Contributions)
	assert.Equal(t, 4, res.Contributors)
	// sorted {1,1,4,10}: (-3*1 -1*1 +1*4 +3*10) / (4*16)
	assert.InDelta(t, 30.0/64.0, res.Gini, 1e-6)
}

func TestProjectGini_Unavailable(t *testing.T) {
	c := newTestClient(t)

	res, err := c.ProjectGini(context.Background(), Project{Name: "Gone", URL: "https://github.com/apache/gone"})
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, "Gone", res.Name)

	res, err = c.ProjectGini(context.Background(), Project{Name: "Empty", URL: "https://github.com/apache/empty"})
	require.NoError(t, err)
	assert.False(t, res.Available)

	_, err = c.ProjectGini(context.Background(), Project{Name: "Bad", URL: "nonsense"})
	assert.Error(t, err)
}

func TestGiniAll_KeepsInputOrder(t *testing.T) {
	c := newTestClient(t)

	projects := []Project{
		{Name: "Gone", URL: "https://github.com/apache/gone"},
		{Name: "Hadoop", URL: "git@github.com:apache/hadoop.git"},
		{Name: "Empty", URL: "https://github.com/apache/empty"},
	}
	results, err := c.GiniAll(context.Background(), projects)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "Gone", results[0].Name)
	assert.Equal(t, "Hadoop", results[1].Name)
	assert.True(t, results[1].Available)
	assert.Equal(t, "Empty", results[2].Name)
}

func TestReadProjects(t *testing.T) {
	input := `id,url,stars,name
1,https://api.github.com/repos/apache/hadoop,100,Hadoop
2, https://api.github.com/repos/apache/camel ,50,Camel
`
	projects, err := ReadProjects(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []Project{
		{Name: "Hadoop", URL: "https://api.github.com/repos/apache/hadoop"},
		{Name: "Camel", URL: "https://api.github.com/repos/apache/camel"},
	}, projects)
}

func TestReadProjects_PositionalFallback(t *testing.T) {
	input := "a,b,c,d\nx,https://github.com/apache/wicket,y,Wicket\n"
	projects, err := ReadProjects(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []Project{{Name: "Wicket", URL: "https://github.com/apache/wicket"}}, projects)

	_, err = ReadProjects(strings.NewReader("a,b\nonly,two\n"))
	assert.Error(t, err)

	projects, err = ReadProjects(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, projects)
}
