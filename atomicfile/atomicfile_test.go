package atomicfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func assertFileExists(t *testing.T, path string) {
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("file '%s' doesn't exist, os.Stat() failed with '%s'", path, err)
	}
	if !st.Mode().IsRegular() {
		t.Fatalf("path '%s' exists but is not a file (mode: %d)", path, int(st.Mode()))
	}
}

func assertFileNotExists(t *testing.T, path string) {
	_, err := os.Stat(path)
	if err == nil {
		t.Fatalf("file '%s' exists, expected to not exist", path)
	}
}

func assertNoError(t *testing.T, err error) {
	if err != nil {
		t.Fatalf("error: %s", err)
	}
}

func TestWrite(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.txt")
	{
		f, err := New(dst)
		assertNoError(t, err)
		assertFileExists(t, f.tmpPath)
		_, err = f.Write([]byte("hello"))
		assertNoError(t, err)
		// destination must not exist until Close
		assertFileNotExists(t, dst)
		err = f.Close()
		assertNoError(t, err)
		assertFileNotExists(t, f.tmpPath)
		d, err := os.ReadFile(dst)
		assertNoError(t, err)
		if string(d) != "hello" {
			t.Fatalf("unexpected content: '%s'", d)
		}
		// calling Close twice is a no-op
		err = f.Close()
		assertNoError(t, err)
	}

	{
		// New overwrites an existing destination
		f, err := New(dst)
		assertNoError(t, err)
		_, err = f.WriteString("replaced")
		assertNoError(t, err)
		assertNoError(t, f.Close())
		d, _ := os.ReadFile(dst)
		if string(d) != "replaced" {
			t.Fatalf("unexpected content: '%s'", d)
		}
	}
}

func TestNewExclusive(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.txt")
	f, err := NewExclusive(dst)
	assertNoError(t, err)
	_, err = f.Write([]byte("first"))
	assertNoError(t, err)
	assertNoError(t, f.Close())

	f, err = NewExclusive(dst)
	assertNoError(t, err)
	_, err = f.Write([]byte("second"))
	assertNoError(t, err)
	err = f.Close()
	if !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected os.ErrExist, got %v", err)
	}
	assertFileNotExists(t, f.tmpPath)
	d, _ := os.ReadFile(dst)
	if string(d) != "first" {
		t.Fatalf("destination was overwritten: '%s'", d)
	}
}

func TestSimulateError(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.txt")
	f, err := New(dst)
	assertNoError(t, err)
	_, err = f.Write([]byte("foo"))
	assertNoError(t, err)
	errSimulated := errors.New("simulated")
	f.err = errSimulated
	if err = f.Close(); err != errSimulated {
		t.Fatalf("got unexpected error: %v", err)
	}
	assertFileNotExists(t, f.tmpPath)
	assertFileNotExists(t, dst)
	// second Close returns the same error
	if err = f.Close(); err != errSimulated {
		t.Fatalf("got unexpected error: %v", err)
	}
}

func TestRemoveIfNotClosed(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.txt")
	f, err := New(dst)
	assertNoError(t, err)
	_, err = f.Write([]byte("foo"))
	assertNoError(t, err)
	f.RemoveIfNotClosed()
	assertFileNotExists(t, f.tmpPath)
	assertFileNotExists(t, dst)
	// writes after cancel fail with ErrCancelled
	if _, err = f.Write([]byte("bar")); err != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if err = f.Close(); err != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestMissingDir(t *testing.T) {
	// early check: creating a file in a directory that doesn't exist
	// fails in New, not in Close
	dst := filepath.Join(t.TempDir(), "no-such-dir", "out.txt")
	f, err := New(dst)
	if err == nil {
		t.Fatal("expected an error")
	}
	if f != nil {
		t.Fatalf("expected f to be nil, got %v", f)
	}
}
