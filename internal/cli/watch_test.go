package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func Test_FileWatcher_Reports_Change_When_Watched_File_Written(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	watched := filepath.Join(dir, "books.rec")
	other := filepath.Join(dir, "other.rec")

	require.NoError(t, os.WriteFile(watched, []byte("a: 1\n"), 0o600))

	fw, err := newFileWatcher([]string{watched}, 100*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	defer func() { _ = fw.Close() }()

	ctx, cancel := context.WithCancel(t.Context())
	changed := make(chan string, 8)
	done := make(chan error, 1)

	go func() {
		done <- fw.Run(ctx, func(path string) { changed <- path })
	}()

	require.NoError(t, os.WriteFile(other, []byte("x\n"), 0o600))

	for i := range 3 {
		require.NoError(t, os.WriteFile(watched, []byte{'a', ':', ' ', byte('2' + i), '\n'}, 0o600))
	}

	select {
	case path := <-changed:
		require.Equal(t, watched, path)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	// The burst of writes collapses into one call.
	select {
	case path := <-changed:
		t.Fatalf("unexpected second change for %s", path)
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}

func Test_NewFileWatcher_Returns_Error_When_Directory_Missing(t *testing.T) {
	t.Parallel()

	_, err := newFileWatcher([]string{filepath.Join(t.TempDir(), "gone", "x.rec")}, time.Millisecond, zap.NewNop())
	require.Error(t, err)
}
