package jsonldb

import "fmt"

// report codes. Per-record codes are recoverable (the operation
// continues), advisory codes are informational, the rest accompany a
// fatal error return.
const (
	CodeExists           = "EEXIST"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeInvalidLine      = "INVALID_LINE"
	CodeInvalidRecord    = "INVALID_RECORD"
	CodeInvalidTimestamp = "INVALID_TIMESTAMP"
	CodeSerializeFailed  = "SERIALIZE_FAILED"
	CodeFileSizeWarning  = "FILE_SIZE_WARNING"
	CodeNothingToSave    = "NOTHING_TO_SAVE"
	CodeLockUnavailable  = "LOCK_UNAVAILABLE"
)

// Report is a structured diagnostic event. Every fallible operation
// emits zero or more of them through DB.OnReport. A report does not
// imply the operation failed: per-record problems are skipped over and
// advisories never block anything. A fatal problem is additionally
// returned as the operation's error.
type Report struct {
	Code string
	Msg  string
	// 1-based line number in the log file, 0 if not applicable
	Line int
	// the offending record, if any
	Record *Record
	// underlying cause, if any
	Err error
}

func (r Report) String() string {
	s := r.Code + ": " + r.Msg
	if r.Line > 0 {
		s = fmt.Sprintf("%s (line %d)", s, r.Line)
	}
	if r.Err != nil {
		s = s + ": " + r.Err.Error()
	}
	return s
}

// CollectReports returns an OnReport callback that appends every
// report to *dst, for callers that want to batch-inspect diagnostics
// after a multi-record operation.
func CollectReports(dst *[]Report) func(Report) {
	return func(r Report) {
		*dst = append(*dst, r)
	}
}
