package jsonldb

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Save merges records into the log and appends the ones that are new
// or changed. Returns the full record set as known after the merge,
// sorted by id. When nothing changed no bytes are written, a
// NOTHING_TO_SAVE advisory is reported and the current set is
// returned.
//
// Once Save returns nil error the appended bytes are on stable
// storage (the file is fsynced before close).
func (db *DB) Save(records []*Record) ([]*Record, error) {
	release := db.lockPath()
	defer release()

	state, err := db.loadState()
	if err != nil {
		return nil, err
	}

	applied, lines := db.computeUpdates(state, records)
	if len(applied) == 0 {
		db.report(Report{
			Code: CodeNothingToSave,
			Msg:  fmt.Sprintf("no new or changed records for '%s'", db.Path),
		})
		return recordsFromState(state), nil
	}

	if size := fileSize(db.Path); size > db.warnSize() {
		db.report(Report{
			Code: CodeFileSizeWarning,
			Msg:  fmt.Sprintf("'%s' is %d bytes, consider compacting", db.Path, size),
		})
	}

	var buf bytes.Buffer
	needsNewline, err := missingFinalNewline(db.Path)
	if err != nil {
		return nil, err
	}
	if needsNewline {
		// previous writer left the last line unterminated
		buf.WriteByte('\n')
	}
	for _, line := range lines {
		buf.Write(line)
		buf.WriteByte('\n')
	}

	// note: state (and through it the cache) was already updated by
	// computeUpdates. A failed append leaves the cache ahead of disk
	// until the caller clears it.
	n, err := appendToFileDurable(db.Path, buf.Bytes())
	if err != nil {
		return nil, err
	}
	db.stats.add(&db.stats.Saves)
	db.stats.addN(&db.stats.RecordsWritten, int64(len(applied)))
	db.stats.addN(&db.stats.BytesAppended, n)
	return recordsFromState(state), nil
}

// missingFinalNewline reports whether the file exists, is non-empty
// and its last byte is not '\n'.
func missingFinalNewline(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return false, err
	}
	if st.Size() == 0 {
		return false, nil
	}
	var last [1]byte
	if _, err := f.ReadAt(last[:], st.Size()-1); err != nil && err != io.EOF {
		return false, err
	}
	return last[0] != '\n', nil
}

// appendToFileDurable appends data and forces it to stable storage
// before closing. Creates the file if it doesn't exist.
func appendToFileDurable(path string, data []byte) (int64, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return 0, err
	}
	n, err := f.Write(data)
	if err != nil {
		f.Close()
		return 0, err
	}
	err = f.Sync()
	if err != nil {
		f.Close()
		return 0, err
	}
	err = f.Close()
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}
