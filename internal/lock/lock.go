// Package lock serializes writers of a record file and replaces files
// atomically.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"
)

// DirName is the subdirectory, next to the locked file, holding lock files.
const DirName = ".locks"

// DefaultTimeout bounds how long [WithFile] waits for the lock.
const DefaultTimeout = 2 * time.Second

const (
	dirPerms     = 0o750
	filePerms    = 0o644
	pollInterval = 10 * time.Millisecond
)

// Errors.
var (
	ErrTimeout  = errors.New("lock timeout")
	ErrLockOpen = errors.New("failed to open lock file")
)

// Lock is an exclusive advisory lock held on behalf of one file.
type Lock struct {
	path string
	file *os.File
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file and drops the lock. Removing first, while
// still holding the lock, lets waiters detect the stale inode and retry.
func (l *Lock) Release() {
	if l.file == nil {
		return
	}

	_ = os.Remove(l.path)
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}

// Acquire takes the exclusive lock for path, waiting until ctx is done.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	locksDir := filepath.Join(filepath.Dir(path), DirName)
	lockPath := filepath.Join(locksDir, filepath.Base(path)+".lock")

	for {
		if err := os.MkdirAll(locksDir, dirPerms); err != nil {
			return nil, fmt.Errorf("creating locks dir: %w", err)
		}

		file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, filePerms)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLockOpen, err)
		}

		err = tryLock(ctx, file)
		if err != nil {
			_ = file.Close()

			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
			}

			return nil, err
		}

		if sameInode(file, lockPath) {
			return &Lock{path: lockPath, file: file}, nil
		}

		// The holder removed the file while we waited; lock the new one.
		_ = unix.Flock(int(file.Fd()), unix.LOCK_UN)
		_ = file.Close()
	}
}

// tryLock polls a non-blocking flock until it succeeds or ctx ends.
func tryLock(ctx context.Context, file *os.File) error {
	fd := int(file.Fd())

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}

		if !errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("flock: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func sameInode(file *os.File, path string) bool {
	var opened, current unix.Stat_t

	if err := unix.Fstat(int(file.Fd()), &opened); err != nil {
		return false
	}

	if err := unix.Stat(path, &current); err != nil {
		return false
	}

	return opened.Ino == current.Ino && opened.Dev == current.Dev
}

// WithFile runs handler with the current content of path while holding its
// lock. A missing file reads as empty content. If handler returns nil
// content nothing is written; if it returns an error the file is untouched.
// Otherwise the file is replaced atomically with the returned content.
func WithFile(ctx context.Context, path string, handler func(content []byte) ([]byte, error)) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	lk, err := Acquire(ctx, path)
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}

	defer lk.Release()

	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	newContent, err := handler(content)
	if err != nil {
		return err
	}

	if newContent == nil {
		return nil
	}

	return WriteFile(path, string(newContent))
}

// WriteFile replaces path atomically (temp file + rename).
func WriteFile(path, content string) error {
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	// atomic.WriteFile creates new files with the temp file's 0600 mode.
	if err := os.Chmod(path, filePerms); err != nil {
		return fmt.Errorf("setting permissions on %s: %w", path, err)
	}

	return nil
}
