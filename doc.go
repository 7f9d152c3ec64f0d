// Package jsonldb is a single-file, append-only record store for
// JSON-like records. Records are identified by a unique id and merged
// with last-writer-wins semantics by a logical timestamp.
//
// The on-disk format is newline-delimited JSON: one complete record
// per line, lines only ever appended, never rewritten. Replaying the
// file top to bottom reconstructs the latest state of every record,
// which makes the file human-readable and plays well with git.
//
// # Record format
//
// Every record is a JSON object with at least:
//   - "id": non-empty string, identifies the logical entity
//   - "tm": number, unix milliseconds, the recency marker
//
// All other fields are opaque to the engine. A record with a strictly
// greater tm supersedes the stored one; on a tm tie the later arrival
// wins only if its content differs, so re-saving the same data is
// idempotent and writes nothing.
//
// # Basic Usage
//
//	db := &jsonldb.DB{Path: "notes.jsonl"}
//	_, err := db.Create([]*jsonldb.Record{
//	    {ID: "n1", Fields: map[string]any{"text": "hello"}},
//	})
//	// ...
//	recs, err := db.Load()
//	recs, err = db.Save([]*jsonldb.Record{
//	    {ID: "n1", Tm: time.Now().UnixMilli(), Fields: map[string]any{"text": "edited"}},
//	})
//
// # Durability and locking
//
// Save appends and fsyncs before returning; Create writes to a temp
// file and renames it over the target. Cross-process writers are
// serialized with a best-effort lock file (see the flock package): if
// the lock cannot be acquired the operation proceeds unlocked and a
// LOCK_UNAVAILABLE report is emitted.
//
// # Diagnostics
//
// Per-record problems (bad line, missing id, unserializable value)
// don't abort an operation: they are reported through DB.OnReport and
// the record is skipped. Only whole-file problems (I/O error, size
// ceiling, create on an existing path) fail the call.
package jsonldb
