package jsonldb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// max length of a single log line the scanner will accept
const maxLineSize = 16 * 1024 * 1024

// Load returns the latest known version of every record in the log,
// sorted by id. The first load of a path streams and replays the whole
// file; subsequent loads are served from the cache until ClearCache is
// called.
func (db *DB) Load() ([]*Record, error) {
	state, err := db.loadState()
	if err != nil {
		return nil, err
	}
	return recordsFromState(state), nil
}

func (db *DB) loadState() (map[string]*Record, error) {
	db.stats.add(&db.stats.Loads)
	if state, ok := db.cache().Get(db.Path); ok {
		db.stats.add(&db.stats.CacheHits)
		return state, nil
	}
	state, err := db.readAll()
	if err != nil {
		return nil, err
	}
	db.cache().Set(db.Path, state)
	return state, nil
}

// readAll replays the log file line by line into a state mapping.
// Bad lines are reported and skipped; an I/O error fails the whole
// read and nothing is cached.
func (db *DB) readAll() (map[string]*Record, error) {
	st, err := os.Stat(db.Path)
	if err != nil {
		return nil, err
	}
	maxSize := db.maxSize()
	if st.Size() > maxSize {
		db.report(Report{
			Code: CodeFileTooLarge,
			Msg:  fmt.Sprintf("'%s' is %d bytes, limit is %d", db.Path, st.Size(), maxSize),
		})
		return nil, fmt.Errorf("read '%s': %w", db.Path, ErrTooLarge)
	}

	f, err := os.Open(db.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	now := time.Now().UTC()
	state := map[string]*Record{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		rec, code, err := parseLogLine(line)
		if err != nil {
			db.report(Report{
				Code: code,
				Msg:  fmt.Sprintf("skipping line: %s", string(line)),
				Line: lineNo,
				Err:  err,
			})
			continue
		}
		if implausibleTm(rec.Tm, now) {
			db.report(Report{
				Code:   CodeInvalidTimestamp,
				Msg:    fmt.Sprintf("implausible timestamp %d for id '%s'", rec.Tm, rec.ID),
				Line:   lineNo,
				Record: rec,
			})
			// lenient: the record is still applied
		}
		if supersedes(state[rec.ID], rec) {
			state[rec.ID] = rec
		}
	}
	if err := scanner.Err(); err != nil {
		// partial state is discarded
		return nil, fmt.Errorf("read '%s': %w", db.Path, err)
	}
	return state, nil
}

// parseLogLine distinguishes malformed JSON (INVALID_LINE) from valid
// JSON that is not a valid record (INVALID_RECORD).
func parseLogLine(line []byte) (*Record, string, error) {
	var m map[string]any
	if err := json.Unmarshal(line, &m); err != nil {
		return nil, CodeInvalidLine, err
	}
	rec, err := recordFromMap(m)
	if err != nil {
		return nil, CodeInvalidRecord, err
	}
	return rec, "", nil
}
