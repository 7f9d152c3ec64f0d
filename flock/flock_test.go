package flock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLockRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	l := &Locker{}

	release, err := l.Lock(path)
	if err != nil {
		t.Fatalf("Lock() failed with '%s'", err)
	}
	lockPath := LockFilePath(path)
	if _, err := os.Stat(lockPath); err != nil {
		t.Fatalf("lock file '%s' doesn't exist", lockPath)
	}

	release()
	if _, err := os.Stat(lockPath); err == nil {
		t.Fatalf("lock file '%s' still exists after release", lockPath)
	}

	// can re-acquire after release
	release, err = l.Lock(path)
	if err != nil {
		t.Fatalf("re-Lock() failed with '%s'", err)
	}
	release()
}

func TestLockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	l := &Locker{MaxWait: 100 * time.Millisecond}

	release, err := l.Lock(path)
	if err != nil {
		t.Fatalf("Lock() failed with '%s'", err)
	}
	defer release()

	// a second acquire times out while the lock is held
	_, err = l.Lock(path)
	if err == nil {
		t.Fatal("expected second Lock() to fail")
	}
	if errors.Is(err, ErrUnavailable) {
		t.Fatal("contention must not be reported as ErrUnavailable")
	}
}

func TestStaleLockReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	lockPath := LockFilePath(path)

	// simulate a lock left behind by a crashed writer
	err := os.WriteFile(lockPath, []byte("99999 0\n"), 0644)
	if err != nil {
		t.Fatalf("os.WriteFile() failed with '%s'", err)
	}
	old := time.Now().Add(-time.Minute)
	if err = os.Chtimes(lockPath, old, old); err != nil {
		t.Fatalf("os.Chtimes() failed with '%s'", err)
	}

	l := &Locker{StaleAfter: 10 * time.Second, MaxWait: 2 * time.Second}
	release, err := l.Lock(path)
	if err != nil {
		t.Fatalf("Lock() should have reclaimed the stale lock, got '%s'", err)
	}
	release()
}

func TestLockUnavailable(t *testing.T) {
	// lock file can't be created in a directory that doesn't exist
	path := filepath.Join(t.TempDir(), "no-such-dir", "records.jsonl")
	l := &Locker{MaxWait: 100 * time.Millisecond}
	_, err := l.Lock(path)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
