package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sub", "rt.log")
	log, err := New("debug", path)
	require.NoError(t, err)
	log.Debug("hello")
	_ = log.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"msg":"hello"`)
}

func TestNew_LevelFilters(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rt.log")
	log, err := New("warn", path)
	require.NoError(t, err)
	log.Info("quiet")
	log.Warn("loud")
	_ = log.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(b), "quiet")
	require.Contains(t, string(b), "loud")
}

func TestNew_BadLevel(t *testing.T) {
	t.Parallel()

	_, err := New("chatty", "")
	require.Error(t, err)
}
