package jsonldb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Record is a single versioned entry in the log.
// ID and Tm are required, everything else is opaque to the engine
// and kept in Fields.
type Record struct {
	// uniquely identifies a logical entity across its history
	ID string
	// logical timestamp in utc unix milliseconds, used as a recency marker
	Tm int64
	// arbitrary extra fields, never inspected except for equality
	Fields map[string]any
}

// timestamps older than this (2020-01-01 UTC) are suspicious
const tmEpochFloorMs int64 = 1577836800000

// values below this are elapsed-ms-style test values, not wall clock
const tmTestValueMax int64 = 1000000

func (r *Record) toMap() map[string]any {
	m := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		m[k] = v
	}
	m["id"] = r.ID
	m["tm"] = r.Tm
	return m
}

// MarshalRecord serializes a record as a single JSON line (no trailing
// newline). Map keys are sorted by encoding/json so output is stable
// across runs, which keeps the log git-friendly.
func MarshalRecord(r *Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// avoid unnecessary escaping
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.toMap()); err != nil {
		return nil, err
	}
	// Encode() terminates with '\n'
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// ParseRecord parses a single log line. Returns an error if the line
// is not valid JSON or is missing required fields.
func ParseRecord(line []byte) (*Record, error) {
	var m map[string]any
	if err := json.Unmarshal(line, &m); err != nil {
		return nil, err
	}
	return recordFromMap(m)
}

func recordFromMap(m map[string]any) (*Record, error) {
	id, ok := m["id"].(string)
	if !ok {
		return nil, fmt.Errorf("'id' must be a string")
	}
	if id == "" {
		return nil, fmt.Errorf("'id' must not be empty")
	}
	tmv, ok := m["tm"]
	if !ok {
		return nil, fmt.Errorf("'tm' is missing")
	}
	tm, ok := tmv.(float64)
	if !ok {
		return nil, fmt.Errorf("'tm' must be a number")
	}
	rec := &Record{
		ID: id,
		Tm: int64(tm),
	}
	if len(m) > 2 {
		rec.Fields = make(map[string]any, len(m)-2)
		for k, v := range m {
			if k == "id" || k == "tm" {
				continue
			}
			rec.Fields[k] = v
		}
	}
	return rec, nil
}

// normalizeRecord returns a derived copy of r with all field values
// passed through JSON encoding. This makes values written by a Go
// caller (e.g. int) compare equal to the same values read back from
// disk (float64) and guarantees we never mutate the caller's record.
func normalizeRecord(r *Record) (*Record, error) {
	d, err := MarshalRecord(r)
	if err != nil {
		return nil, err
	}
	return ParseRecord(d)
}

// notEqual reports whether two records differ structurally,
// ignoring the tm field. Used as the tie-breaker for records that
// share a timestamp.
func notEqual(current, candidate *Record) bool {
	if current == candidate {
		return false
	}
	if current.ID != candidate.ID {
		return true
	}
	return !fieldsEqual(current.Fields, candidate.Fields)
}

func fieldsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(va, vb) {
			return false
		}
	}
	return true
}

// supersedes decides if candidate should replace current: strictly
// newer timestamp wins, a tied timestamp wins only if the content
// differs (so replays are idempotent).
func supersedes(current, candidate *Record) bool {
	if current == nil {
		return true
	}
	if candidate.Tm > current.Tm {
		return true
	}
	if candidate.Tm == current.Tm {
		return notEqual(current, candidate)
	}
	return false
}

// implausibleTm reports whether tm is outside the range we expect for
// wall-clock unix milliseconds: more than a year in the future or
// before 2020. Small values are assumed to be test-style elapsed
// timestamps and are left alone. Advisory only, never blocks a write.
func implausibleTm(tm int64, now time.Time) bool {
	if tm < tmTestValueMax {
		return false
	}
	if tm < tmEpochFloorMs {
		return true
	}
	maxFuture := now.Add(365 * 24 * time.Hour).UnixMilli()
	return tm > maxFuture
}
