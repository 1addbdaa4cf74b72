package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanOldLogsKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"scc_2026-01-01.log", "scc_2026-01-03.log", "scc_2026-01-02.log", "other.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	cleanOldLogs(dir, 2)

	assert.NoFileExists(t, filepath.Join(dir, "scc_2026-01-01.log"))
	assert.FileExists(t, filepath.Join(dir, "scc_2026-01-02.log"))
	assert.FileExists(t, filepath.Join(dir, "scc_2026-01-03.log"))
	assert.FileExists(t, filepath.Join(dir, "other.log"))
}

func TestInitLoggerCreatesDailyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Directory: dir}))

	matches, err := filepath.Glob(filepath.Join(dir, "scc_*.log"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
