// Package archive provides manual maintenance operations for a jsonldb
// log: compaction (rewriting the log to one line per live record) and
// compressed snapshots for backup. The engine itself never truncates
// or rewrites the log; both operations here are explicit and offline.
package archive

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"

	"github.com/kjk/jsonldb"
	"github.com/kjk/jsonldb/atomicfile"
)

// Compact rewrites the log so it contains exactly one line per live
// record, sorted by id, dropping superseded history. The rewrite is
// atomic: the old file stays intact until the new one is complete.
// Callers must ensure no other process is writing during compaction.
func Compact(db *jsonldb.DB) error {
	recs, err := db.Load()
	if err != nil {
		return err
	}
	f, err := atomicfile.New(db.Path)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	for _, rec := range recs {
		line, err := jsonldb.MarshalRecord(rec)
		if err != nil {
			return err
		}
		if _, err = f.Write(line); err != nil {
			return err
		}
		if _, err = f.Write([]byte{'\n'}); err != nil {
			return err
		}
	}
	if err = f.Close(); err != nil {
		return err
	}
	// replay order changed, drop the cached state
	db.ClearCache()
	return nil
}

func getErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Snapshot copies the log to dstPath, compressing by extension:
// .gz, .zst or .br. Any other extension makes a plain copy. The
// snapshot is written atomically.
func Snapshot(db *jsonldb.DB, dstPath string) error {
	src, err := os.Open(db.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := atomicfile.New(dstPath)
	if err != nil {
		return err
	}
	defer dst.RemoveIfNotClosed()

	var w io.WriteCloser
	switch strings.ToLower(filepath.Ext(dstPath)) {
	case ".gz":
		w, err = gzip.NewWriterLevel(dst, gzip.BestCompression)
		if err != nil {
			return err
		}
	case ".zst":
		// zstd.SpeedBestCompression is much slower and not much better
		w, err = zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
	case ".br":
		w = brotli.NewWriterLevel(dst, brotli.BestCompression)
	default:
		_, err = io.Copy(dst, src)
		if err != nil {
			return err
		}
		return dst.Close()
	}

	_, err = io.Copy(w, src)
	err2 := w.Close()
	if err = getErr(err, err2); err != nil {
		return err
	}
	return dst.Close()
}

// OpenSnapshot opens a snapshot for reading, decompressing by
// extension (.gz, .zst, .br). Plain files are returned as-is.
func OpenSnapshot(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	wrap := func(r io.Reader, err error) (io.ReadCloser, error) {
		if err != nil {
			f.Close()
			return nil, err
		}
		return &readerWrappedFile{f: f, r: r}, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		r, err := gzip.NewReader(f)
		return wrap(r, err)
	case ".zst":
		r, err := zstd.NewReader(f)
		return wrap(r, err)
	case ".br":
		return wrap(brotli.NewReader(f), nil)
	}
	return f, nil
}

// Restore materializes a snapshot as a new log file at dstPath.
// Fails if dstPath already exists.
func Restore(dstPath string, snapshotPath string) error {
	r, err := OpenSnapshot(snapshotPath)
	if err != nil {
		return err
	}
	defer r.Close()
	f, err := atomicfile.NewExclusive(dstPath)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	if _, err = io.Copy(f, r); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("restore to '%s': %w", dstPath, err)
	}
	return nil
}

// io.ReadCloser over os.File wrapped with a decompressing reader.
// Close goes to the file, Read goes to the wrapper.
type readerWrappedFile struct {
	f *os.File
	r io.Reader
}

func (rc *readerWrappedFile) Read(p []byte) (int, error) {
	return rc.r.Read(p)
}

func (rc *readerWrappedFile) Close() error {
	return rc.f.Close()
}
