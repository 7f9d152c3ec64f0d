// Package atomicfile writes a file so that it either appears complete
// at its destination or not at all. Data goes to a temp file in the
// same directory; Close syncs it to disk and renames it over the
// destination. A crash at any earlier point leaves only the temp file
// behind, never a partially-written destination.
package atomicfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

var (
	// ErrCancelled is returned by calls made after RemoveIfNotClosed
	ErrCancelled = errors.New("cancelled")

	_ io.WriteCloser = &File{}
)

// File writes to a destination path atomically. Once a write fails,
// every later call returns the same error and Close only cleans up.
type File struct {
	dstPath   string
	dir       string
	tmpPath   string
	tmp       *os.File
	exclusive bool
	err       error
}

// New creates a File that will replace dstPath on Close, overwriting
// whatever is there.
func New(dstPath string) (*File, error) {
	return newFile(dstPath, false)
}

// NewExclusive is like New but Close fails with os.ErrExist instead of
// overwriting an existing destination. Callers that need a hard
// guarantee should also hold a lock around the whole write.
func NewExclusive(dstPath string) (*File, error) {
	return newFile(dstPath, true)
}

func newFile(dstPath string, exclusive bool) (*File, error) {
	dir, name := filepath.Split(dstPath)
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, &os.PathError{Op: "open", Path: dstPath, Err: os.ErrInvalid}
	}
	// creating the temp file here also verifies early that the
	// directory exists and is writable
	tmp, err := os.CreateTemp(dir, name)
	if err != nil {
		return nil, err
	}
	return &File{
		dstPath:   dstPath,
		dir:       dir,
		tmpPath:   tmp.Name(),
		tmp:       tmp,
		exclusive: exclusive,
	}, nil
}

// latch remembers the first error and triggers cleanup
func (f *File) latch(err error) error {
	if err == nil {
		return nil
	}
	if f.err == nil {
		f.err = err
	}
	_ = f.Close()
	return err
}

func (f *File) Write(d []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.tmp.Write(d)
	return n, f.latch(err)
}

func (f *File) WriteString(s string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.tmp.WriteString(s)
	return n, f.latch(err)
}

func (f *File) Sync() error {
	if f.err != nil {
		return f.err
	}
	return f.latch(f.tmp.Sync())
}

func (f *File) closed() bool {
	return f.tmp == nil
}

// RemoveIfNotClosed deletes the temp file if Close hasn't been called
// yet; the destination is not touched. Use with defer so a panic
// between New and Close doesn't leave temp files around. After Close
// it's a no-op.
func (f *File) RemoveIfNotClosed() {
	if f == nil || f.closed() {
		return
	}
	f.err = ErrCancelled
	_ = f.Close()
}

// Close finalizes the write: sync, close, rename over the destination
// and sync the directory. On any failure (including earlier write
// errors) the temp file is deleted and the destination left untouched.
// Safe to call multiple times; later calls return the first error.
func (f *File) Close() error {
	if f.closed() {
		return f.err
	}
	tmp := f.tmp
	f.tmp = nil

	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	errSync := tmp.Sync()
	errClose := tmp.Close()

	didRename := false
	defer func() {
		if !didRename {
			_ = os.Remove(f.tmpPath)
		}
	}()

	if f.err != nil {
		return f.err
	}
	err := errSync
	if err == nil {
		err = errClose
	}
	if err == nil && f.exclusive {
		if _, serr := os.Lstat(f.dstPath); serr == nil {
			err = &os.PathError{Op: "rename", Path: f.dstPath, Err: os.ErrExist}
		}
	}
	if err == nil {
		err = os.Rename(f.tmpPath, f.dstPath)
		didRename = (err == nil)
		// sync the directory so the rename itself survives a crash
		if fdir, _ := os.Open(f.dir); fdir != nil {
			_ = fdir.Sync()
			_ = fdir.Close()
		}
	}

	f.err = err
	return f.err
}
