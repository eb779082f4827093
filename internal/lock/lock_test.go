package lock_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/recnotes/internal/lock"
)

func Test_WithFile_Replaces_Content_When_Handler_Returns_Bytes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.rec")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))

	err := lock.WithFile(t.Context(), path, func(content []byte) ([]byte, error) {
		assert.Equal(t, "a: 1\n", string(content))

		return []byte("a: 2\n"), nil
	})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a: 2\n", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	_, err = os.Stat(filepath.Join(filepath.Dir(path), lock.DirName, "data.rec.lock"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "lock file should be removed on release")
}

func Test_WithFile_Leaves_File_Untouched_When_Handler_Fails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data.rec")
	require.NoError(t, os.WriteFile(path, []byte("keep\n"), 0o600))

	boom := errors.New("boom")

	err := lock.WithFile(t.Context(), path, func([]byte) ([]byte, error) {
		return []byte("lost"), boom
	})
	require.ErrorIs(t, err, boom)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep\n", string(got))
}

func Test_WithFile_Creates_File_When_Missing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "new.rec")

	err := lock.WithFile(t.Context(), path, func(content []byte) ([]byte, error) {
		assert.Empty(t, content)

		return []byte("x: 1\n"), nil
	})
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x: 1\n", string(got))
}

func Test_WithFile_Writes_Nothing_When_Handler_Returns_Nil(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "none.rec")

	err := lock.WithFile(t.Context(), path, func([]byte) ([]byte, error) {
		return nil, nil
	})
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func Test_Acquire_Times_Out_When_Lock_Is_Held(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "busy.rec")

	held, err := lock.Acquire(t.Context(), path)
	require.NoError(t, err)

	defer held.Release()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err = lock.Acquire(ctx, path)
	require.ErrorIs(t, err, lock.ErrTimeout)
}

func Test_WithFile_Serializes_Writers_When_Called_Concurrently(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "count.rec")

	const writers = 8

	var wg sync.WaitGroup

	for range writers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := lock.WithFile(context.Background(), path, func(content []byte) ([]byte, error) {
				return append(content, 'x'), nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got, writers)
}
