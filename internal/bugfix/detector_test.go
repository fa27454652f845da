package bugfix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_Classify(t *testing.T) {
	d, err := NewDetector([]string{"LUCENE", "solr"}, nil)
	require.NoError(t, err)
	d.AddBugKeys("LUCENE-4321", "SOLR-99")

	tests := []struct {
		name        string
		title       string
		postRelease bool
		devTime     bool
		keys        []string
	}{
		{"known bug key", "LUCENE-4321: handle empty segments", true, false, []string{"LUCENE-4321"}},
		{"unknown key", "LUCENE-1: add new codec", false, false, []string{"LUCENE-1"}},
		{"key and keyword", "SOLR-99: Fix NPE in faceting", true, true, []string{"SOLR-99"}},
		{"keyword only, any case", "Correct a TYPO in javadocs", false, true, nil},
		{"keyword inside word", "prefix queries get faster", false, true, nil},
		{"nothing", "Add new codec", false, false, nil},
		{"key of other project", "HADOOP-4321 refactor", false, false, nil},
		{"key too long", "LUCENE-123456 refactor", false, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := d.Classify(tt.title)
			assert.Equal(t, tt.postRelease, c.PostRelease)
			assert.Equal(t, tt.devTime, c.DevTime)
			assert.Equal(t, tt.keys, c.IssueKeys)
			assert.Equal(t, c.PostRelease || c.DevTime, c.IsFix())
		})
	}
}

func TestClassification_Count(t *testing.T) {
	assert.Equal(t, 0, Classification{}.Count())
	assert.Equal(t, 1, Classification{DevTime: true}.Count())
	assert.Equal(t, 2, Classification{DevTime: true, PostRelease: true}.Count())
}

func TestDetector_CustomKeywordsNoProjects(t *testing.T) {
	d, err := NewDetector(nil, []string{"Regression", " "})
	require.NoError(t, err)

	assert.True(t, d.Classify("fix regression in parser").DevTime)
	assert.False(t, d.Classify("fix parser").DevTime)
	assert.Nil(t, d.Classify("LUCENE-1 fix").IssueKeys)
	assert.Equal(t, 0, d.BugKeys())
}
