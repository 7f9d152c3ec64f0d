package jsonldb

import (
	"fmt"
	"os"

	"github.com/kjk/jsonldb/atomicfile"
)

// Create materializes a new log file with an initial record set and
// returns the accepted records. The file appears atomically: it is
// written to a temp sibling first and renamed over the target, so a
// crash mid-write never leaves a partial file at Path.
//
// Fails with os.ErrExist if Path already exists and with
// ErrNoValidRecords if no record survived validation.
func (db *DB) Create(records []*Record) ([]*Record, error) {
	release := db.lockPath()
	defer release()

	if fileExists(db.Path) {
		db.report(Report{
			Code: CodeExists,
			Msg:  fmt.Sprintf("'%s' already exists", db.Path),
		})
		return nil, fmt.Errorf("create '%s': %w", db.Path, os.ErrExist)
	}

	state := map[string]*Record{}
	applied, lines := db.computeUpdates(state, records)
	if len(applied) == 0 {
		return nil, fmt.Errorf("create '%s': %w", db.Path, ErrNoValidRecords)
	}

	f, err := atomicfile.NewExclusive(db.Path)
	if err != nil {
		return nil, err
	}
	defer f.RemoveIfNotClosed()
	for _, line := range lines {
		if _, err := f.Write(line); err != nil {
			return nil, err
		}
		if _, err := f.Write([]byte{'\n'}); err != nil {
			return nil, err
		}
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	db.cache().Set(db.Path, state)
	db.stats.add(&db.stats.Creates)
	db.stats.addN(&db.stats.RecordsWritten, int64(len(applied)))
	return applied, nil
}
