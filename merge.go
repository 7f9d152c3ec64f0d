package jsonldb

import (
	"fmt"
	"time"
)

// computeUpdates decides which candidate records supersede the current
// state, in input order. For every accepted record it updates state
// immediately, so later candidates in the same batch are compared
// against earlier ones (last in batch wins among same-id entries).
// Returns the accepted records and their serialized lines, one per
// record, without newlines.
//
// Invalid candidates are reported and skipped; computeUpdates itself
// never fails.
func (db *DB) computeUpdates(state map[string]*Record, candidates []*Record) (applied []*Record, lines [][]byte) {
	now := time.Now().UTC()
	for _, cand := range candidates {
		if cand == nil || cand.ID == "" {
			db.report(Report{
				Code:   CodeInvalidRecord,
				Msg:    "record has no id",
				Record: cand,
			})
			continue
		}
		// derived copy: never mutate the caller's record, and
		// JSON-normalize values so equality with reloaded state works
		rec, err := normalizeRecord(cand)
		if err != nil {
			db.report(Report{
				Code:   CodeSerializeFailed,
				Msg:    fmt.Sprintf("cannot serialize record '%s'", cand.ID),
				Record: cand,
				Err:    err,
			})
			continue
		}
		if rec.Tm == 0 {
			rec.Tm = now.UnixMilli()
		}
		if implausibleTm(rec.Tm, now) {
			db.report(Report{
				Code:   CodeInvalidTimestamp,
				Msg:    fmt.Sprintf("implausible timestamp %d for id '%s'", rec.Tm, rec.ID),
				Record: rec,
			})
		}
		if !supersedes(state[rec.ID], rec) {
			continue
		}
		line, err := MarshalRecord(rec)
		if err != nil {
			// normalizeRecord already round-tripped the record so this
			// shouldn't happen, but don't touch state if it does
			db.report(Report{
				Code:   CodeSerializeFailed,
				Msg:    fmt.Sprintf("cannot serialize record '%s'", rec.ID),
				Record: rec,
				Err:    err,
			})
			continue
		}
		state[rec.ID] = rec
		applied = append(applied, rec)
		lines = append(lines, line)
	}
	return applied, lines
}
