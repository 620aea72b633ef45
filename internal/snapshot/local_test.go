package snapshot

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalSaveWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewLocal(dir, "autotrack")
	require.NoError(t, err)

	fetchedAt := time.Date(2026, 8, 31, 9, 15, 0, 0, time.UTC)
	uri, err := s.Save(context.Background(), 2, fetchedAt, []byte("<html>page</html>"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))
	require.Contains(t, uri, "autotrack/page-02/20260831T091500.000Z.html")

	data, err := os.ReadFile(strings.TrimPrefix(uri, "file://"))
	require.NoError(t, err)
	require.Equal(t, "<html>page</html>", string(data))
}

func TestNewLocalCreatesMissingDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir() + "/nested/snapshots"
	_, err := NewLocal(dir, "")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNewLocalRejectsEmptyBaseDir(t *testing.T) {
	t.Parallel()

	_, err := NewLocal("  ", "")
	require.Error(t, err)
}
