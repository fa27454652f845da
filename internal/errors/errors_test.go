package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	base := stderrors.New("exit status 128")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: base, want: false},
		{name: "not found", err: NotFoundError(base, "blame A.java"), want: true},
		{name: "wrapped not found", err: fmt.Errorf("attribute: %w", NotFoundError(base, "blame")), want: true},
		{name: "external", err: ExternalErrorf(base, "jira"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFound(tt.err))
		})
	}
}

func TestSeverityAndFatal(t *testing.T) {
	cause := stderrors.New("429 Too Many Requests")

	assert.False(t, IsFatal(ExternalErrorf(cause, "search")))
	assert.True(t, IsFatal(RetriesExhausted(cause, "search after %d attempts", 5)))
	assert.True(t, IsFatal(PreconditionError("empty counter")))
	assert.Equal(t, SeverityLow, GetSeverity(NotFoundError(cause, "x")))
	assert.Equal(t, SeverityMedium, GetSeverity(cause))
	assert.Equal(t, ErrorTypeInternal, GetType(cause))
	assert.Equal(t, ErrorTypeDatabase, GetType(fmt.Errorf("save: %w", DatabaseErrorf(cause, "insert %d rows", 3))))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeExternal, SeverityHigh, "nothing"))
	assert.Nil(t, NotFoundErrorf(nil, "blame %s", "A.java"))
}

func TestDetailedString(t *testing.T) {
	err := ValidationErrorf("bad tag %q", "v1").
		WithContext("repo", "lucene-solr").
		WithContext("index", 2)
	out := err.DetailedString()

	assert.Equal(t, "[HIGH] [VALIDATION] bad tag \"v1\"\nContext:\n  index: 2\n  repo: lucene-solr\n", out)
	assert.True(t, stderrors.Is(err, &Error{Type: ErrorTypeValidation}))
}

func TestDetailed(t *testing.T) {
	cause := stderrors.New("disk full")
	typed := FileSystemErrorf(cause, "write %s", "out/a.csv")

	assert.Equal(t, "[CRITICAL] [FILESYSTEM] write out/a.csv\nCaused by: disk full\n", Detailed(typed))

	wrapped := fmt.Errorf("run: %w", typed)
	assert.Equal(t, "run: write out/a.csv: disk full\n[CRITICAL] [FILESYSTEM] write out/a.csv\nCaused by: disk full\n", Detailed(wrapped))

	assert.Equal(t, "plain", Detailed(stderrors.New("plain")))
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", ErrorTypeNotFound.String())
	assert.Equal(t, "UNKNOWN", ErrorType(99).String())
}
