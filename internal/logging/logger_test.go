package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_WritesProgressFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "progress.log")

	l, err := NewLogger(Config{OutputFile: logFile, Verbose: true})
	require.NoError(t, err)

	l.WithField("commit", "abc123").Info("Processing bugfixing commit 1 out of 3")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Processing bugfixing commit 1 out of 3")
	assert.Contains(t, string(data), "commit=abc123")
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.Equal(t, logFile, l.LogFile())
}

func TestNewLogger_RotatesOversizedFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "progress.log")
	require.NoError(t, os.WriteFile(logFile, []byte(strings.Repeat("x", 64)), 0644))

	l, err := NewLogger(Config{OutputFile: logFile, MaxSize: 32, JSONFormat: true})
	require.NoError(t, err)
	defer l.Close()

	_, err = os.Stat(logFile + ".1")
	assert.NoError(t, err, "old log should have been moved aside")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestDiscard(t *testing.T) {
	l := Discard()
	assert.NotPanics(t, func() { l.Info("nothing to see") })
}
