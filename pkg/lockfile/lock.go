// Package lockfile serialises work on a path across processes with a
// sibling ".lock" file holding the owner's pid.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const (
	retryAlive = 200 * time.Millisecond
	retryError = 100 * time.Millisecond

	// corruptGrace is how long an unreadable lock file counts as held.
	corruptGrace = 5 * time.Second
)

// Holder describes the process owning a lock.
type Holder struct {
	PID     int
	Since   time.Time
	Purpose string
}

func (h *Holder) String() string {
	return fmt.Sprintf("pid %d since %s (%s)", h.PID, h.Since.Format(time.RFC3339), h.Purpose)
}

// Path returns the lock file guarding target.
func Path(target string) string {
	return filepath.Clean(target) + ".lock"
}

// Lock acquires the lock for target, waiting while a live process holds it
// and breaking locks left by dead ones. The returned function releases it.
func Lock(ctx context.Context, target, purpose string) (func() error, error) {
	lockFile := Path(target)
	if err := os.MkdirAll(filepath.Dir(lockFile), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent dir for lock: %w", err)
	}

	content := fmt.Sprintf("%s %d %s", time.Now().Format(time.RFC3339), os.Getpid(), purpose)
	for {
		err := publish(lockFile, content)
		if err == nil {
			return func() error { return os.Remove(lockFile) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}

		h, err := Read(target)
		switch {
		case errors.Is(err, os.ErrNotExist):
			continue
		case errors.Is(err, errCorrupt) && !settled(lockFile):
			// Written by a writer that is not done yet, or not one of ours.
			if err := sleep(ctx, retryAlive); err != nil {
				return nil, fmt.Errorf("lock %s unreadable: %w", lockFile, err)
			}
			continue
		case errors.Is(err, errCorrupt):
			os.Remove(lockFile)
			continue
		case err != nil:
			if err := sleep(ctx, retryError); err != nil {
				return nil, err
			}
			continue
		}

		if alive(h.PID) {
			if err := sleep(ctx, retryAlive); err != nil {
				return nil, fmt.Errorf("lock %s held by %s: %w", lockFile, h, err)
			}
			continue
		}
		os.Remove(lockFile)
	}
}

// publish writes content to a temporary file and links it to lockFile, so
// the lock never exists without its holder line. Link fails with EEXIST
// when the lock is taken.
func publish(lockFile, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(lockFile), "."+filepath.Base(lockFile)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write to lock file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	err = os.Link(tmp.Name(), lockFile)
	if err == nil || os.IsExist(err) {
		return err
	}
	// No hard links on this filesystem (FAT, some FUSE mounts). Readers
	// then rely on corruptGrace while the line is being written.
	f, err := os.OpenFile(lockFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(lockFile)
		return fmt.Errorf("failed to write to lock file: %w", err)
	}
	return f.Close()
}

// settled reports whether an unreadable lock file is old enough to be
// considered abandoned.
func settled(lockFile string) bool {
	st, err := os.Stat(lockFile)
	return err == nil && time.Since(st.ModTime()) > corruptGrace
}

var errCorrupt = errors.New("corrupt lock file")

// Read returns the current holder of the lock on target.
func Read(target string) (*Holder, error) {
	content, err := os.ReadFile(Path(target))
	if err != nil {
		return nil, err
	}
	fields := strings.SplitN(strings.TrimSpace(string(content)), " ", 3)
	if len(fields) < 2 {
		return nil, errCorrupt
	}
	pid, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, errCorrupt
	}
	h := &Holder{PID: pid}
	h.Since, _ = time.Parse(time.RFC3339, fields[0])
	if len(fields) == 3 {
		h.Purpose = fields[2]
	}
	return h, nil
}

// Ensure runs fn under the lock unless target already exists.
func Ensure(ctx context.Context, target string, fn func() error) error {
	if _, err := os.Lstat(target); err == nil {
		return nil
	}
	unlock, err := Lock(ctx, target, "ensure")
	if err != nil {
		return err
	}
	defer unlock()

	// Another process may have finished while we waited.
	if _, err := os.Lstat(target); err == nil {
		return nil
	}
	return fn()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// alive treats EPERM as alive, the pid exists under another user.
func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return !errors.Is(unix.Kill(pid, 0), unix.ESRCH)
}
