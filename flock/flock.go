// Package flock provides best-effort inter-process mutual exclusion
// keyed by file path, implemented with lock files. A writer holds the
// lock for the duration of one append or create; locks held longer
// than the staleness window are presumed abandoned and reclaimed.
package flock

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrUnavailable means the locking mechanism itself doesn't work in
// this environment (e.g. the directory is read-only). Callers that
// prefer availability over strict safety can proceed unlocked when
// they see it.
var ErrUnavailable = errors.New("file locking unavailable")

const (
	defaultStaleAfter      = 10 * time.Second
	defaultMaxWait         = 5 * time.Second
	defaultInitialInterval = 10 * time.Millisecond
)

// Locker acquires path-scoped locks. The zero value is ready to use.
type Locker struct {
	// a lock file older than this is presumed abandoned
	StaleAfter time.Duration
	// give up waiting for a contended lock after this long
	MaxWait time.Duration
}

func (l *Locker) staleAfter() time.Duration {
	if l.StaleAfter > 0 {
		return l.StaleAfter
	}
	return defaultStaleAfter
}

func (l *Locker) maxWait() time.Duration {
	if l.MaxWait > 0 {
		return l.MaxWait
	}
	return defaultMaxWait
}

// LockFilePath returns the path of the lock file guarding path.
func LockFilePath(path string) string {
	return path + ".lock"
}

// Lock acquires the lock for path, retrying with exponential backoff
// while it is held by someone else. Returns a release function that
// must be called on all exit paths.
func (l *Locker) Lock(path string) (func(), error) {
	lockPath := LockFilePath(path)
	try := func() error {
		err := createLockFile(lockPath)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			// not contention: the mechanism itself is broken here
			return backoff.Permanent(fmt.Errorf("%w: %v", ErrUnavailable, err))
		}
		if l.isStale(lockPath) {
			// presumed abandoned by a crashed writer
			_ = os.Remove(lockPath)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = defaultInitialInterval
	eb.MaxElapsedTime = l.maxWait()
	if err := backoff.Retry(try, eb); err != nil {
		return nil, err
	}
	release := func() {
		_ = os.Remove(lockPath)
	}
	return release, nil
}

// createLockFile creates the lock file exclusively, recording who
// holds it for debugging.
func createLockFile(lockPath string) error {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	fmt.Fprintf(f, "%d %d\n", os.Getpid(), time.Now().UTC().UnixMilli())
	return f.Close()
}

func (l *Locker) isStale(lockPath string) bool {
	st, err := os.Lstat(lockPath)
	if err != nil {
		// already gone, next create attempt will tell
		return false
	}
	return time.Since(st.ModTime()) > l.staleAfter()
}
