package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Log calls must work before InitLogger runs; packages log during tests
// and startup errors are logged before the backends are configured.
func TestLoggingBeforeInitIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		Debug("plain debug entry")
		Debugf("formatted %s entry", "debug")
		Info("plain info entry")
		Warningf("formatted %s entry", "warning")
		Error("plain error entry")
	})
}

func TestGetLogsFiltersByLevel(t *testing.T) {
	Debug("debug marker for retrieval")
	Error("error marker for retrieval")

	all := GetLogs(100, "debug")
	require.NotEmpty(t, all)
	// Newest first.
	assert.Contains(t, all[0], "error marker for retrieval")
	assert.Contains(t, strings.Join(all, "\n"), "debug marker for retrieval")

	errorsOnly := strings.Join(GetLogs(100, "error"), "\n")
	assert.Contains(t, errorsOnly, "error marker for retrieval")
	assert.NotContains(t, errorsOnly, "debug marker for retrieval")
}
