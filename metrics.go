package jsonldb

import "sync"

// Metrics is a snapshot of per-DB operation counters.
type Metrics struct {
	Loads          int64
	CacheHits      int64
	Saves          int64
	Creates        int64
	RecordsWritten int64
	BytesAppended  int64
	// report counts by severity
	Advisories   int64
	RecordErrors int64
	Failures     int64
}

type counters struct {
	mu sync.Mutex
	Metrics
}

func (c *counters) add(field *int64) {
	c.addN(field, 1)
}

func (c *counters) addN(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

func (c *counters) countReport(code string) {
	c.mu.Lock()
	switch code {
	case CodeNothingToSave, CodeFileSizeWarning, CodeInvalidTimestamp, CodeLockUnavailable:
		c.Advisories++
	case CodeInvalidLine, CodeInvalidRecord, CodeSerializeFailed:
		c.RecordErrors++
	default:
		c.Failures++
	}
	c.mu.Unlock()
}

// Metrics returns a snapshot of this DB's counters.
func (db *DB) Metrics() Metrics {
	db.stats.mu.Lock()
	m := db.stats.Metrics
	db.stats.mu.Unlock()
	return m
}
