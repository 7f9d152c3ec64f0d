package jsonldb

import (
	"errors"
	"os"
	"sort"

	"github.com/kjk/jsonldb/flock"
)

const (
	// DefaultMaxSize is the hard ceiling on log file size for Load/Save
	DefaultMaxSize int64 = 100 * 1024 * 1024
	// DefaultWarnSize is where Save starts advising to compact
	DefaultWarnSize int64 = 50 * 1024 * 1024
)

var (
	// ErrNoValidRecords is returned by Create when no record in the
	// initial batch survived validation
	ErrNoValidRecords = errors.New("no valid records")
	// ErrTooLarge is returned when the log file exceeds MaxSize
	ErrTooLarge = errors.New("file exceeds size limit")
)

// Locker provides inter-process mutual exclusion scoped to a file
// path. Lock blocks until the lock is held and returns a release
// function, or an error if the lock could not be acquired.
type Locker interface {
	Lock(path string) (release func(), err error)
}

// DB is a handle to one append-only log file. The zero value is not
// usable, Path must be set; everything else has working defaults.
//
// DB methods do not serialize in-process callers. Two goroutines
// saving to the same path race on the shared cache entry; the
// inter-process lock only protects the file itself.
type DB struct {
	Path string

	// hard ceiling on file size, DefaultMaxSize if 0
	MaxSize int64
	// soft threshold for the compaction advisory, DefaultWarnSize if 0
	WarnSize int64

	// record cache, DefaultCache if nil
	Cache *Cache

	// inter-process lock strategy, a flock.Locker for Path if nil.
	// Locking is best-effort: if the lock cannot be acquired the
	// operation proceeds unlocked and reports LOCK_UNAVAILABLE.
	Lock Locker

	// receives structured diagnostics; nil drops them
	OnReport func(Report)

	stats counters
}

func (db *DB) maxSize() int64 {
	if db.MaxSize > 0 {
		return db.MaxSize
	}
	return DefaultMaxSize
}

func (db *DB) warnSize() int64 {
	if db.WarnSize > 0 {
		return db.WarnSize
	}
	return DefaultWarnSize
}

func (db *DB) cache() *Cache {
	if db.Cache != nil {
		return db.Cache
	}
	return DefaultCache
}

var defaultLocker = &flock.Locker{}

func (db *DB) locker() Locker {
	if db.Lock != nil {
		return db.Lock
	}
	return defaultLocker
}

func (db *DB) report(r Report) {
	db.stats.countReport(r.Code)
	if db.OnReport != nil {
		db.OnReport(r)
	}
}

// lockPath acquires the inter-process lock for db.Path. A failure to
// acquire is reported but never fails the operation: the returned
// release is then a no-op and the caller proceeds unlocked.
func (db *DB) lockPath() func() {
	release, err := db.locker().Lock(db.Path)
	if err != nil {
		db.report(Report{
			Code: CodeLockUnavailable,
			Msg:  "proceeding without inter-process lock",
			Err:  err,
		})
		return func() {}
	}
	return release
}

// ClearCache drops the cached state for this DB's path.
func (db *DB) ClearCache() {
	db.cache().Clear(db.Path)
}

// recordsFromState flattens a state mapping into a slice sorted by id
// so results are deterministic.
func recordsFromState(state map[string]*Record) []*Record {
	res := make([]*Record, 0, len(state))
	for _, rec := range state {
		res = append(res, rec)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})
	return res
}

func fileSize(path string) int64 {
	st, err := os.Lstat(path)
	if err != nil {
		return -1
	}
	return st.Size()
}

func fileExists(path string) bool {
	st, err := os.Lstat(path)
	return err == nil && st.Mode().IsRegular()
}
