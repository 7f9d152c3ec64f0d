// Package logship forwards jsonldb diagnostics to a log collection
// server. Shipping is fire-and-forget from a background worker so the
// store's hot path never waits on the network; after a failed POST we
// throttle for a while instead of hammering a dead server.
package logship

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/toon-format/toon-go"

	"github.com/kjk/jsonldb"
)

type op struct {
	uri  string
	mime string
	d    []byte
}

const (
	// how long to wait before we resume sending after a failure
	throttleTimeout = time.Second * 15

	kPleaseStop = "please-stop"

	mimeJSON      = "application/json"
	mimePlainText = "text/plain"
)

var (
	// host:port of the collection server; empty disables shipping
	Server = ""
	ApiKey = ""
	// if true, logf prints what the worker does
	Verbose = false

	throttleUntil time.Time
	ch            = make(chan op, 1000)
	startWorker   sync.Once
)

func logf(s string, args ...any) {
	if !Verbose {
		return
	}
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	fmt.Print(s)
}

func worker() {
	logf("logship worker started\n")
	for op := range ch {
		uri := op.uri
		if uri == kPleaseStop {
			break
		}
		r := requests.
			URL(uri).
			BodyBytes(op.d).
			ContentType(op.mime)
		if ApiKey != "" {
			r = r.Header("X-Api-Key", ApiKey)
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		err := r.Fetch(ctx)
		cancel()
		if err != nil {
			logf("POST %s failed: %v, will throttle for %s\n", uri, err, throttleTimeout)
			throttleUntil = time.Now().Add(throttleTimeout)
		}
	}
	logf("logship worker stopped\n")
}

// Stop drains shipping and disables the package.
func Stop() {
	Server = ""
	ch <- op{uri: kPleaseStop}
}

func post(uriPath string, d []byte, mime string) {
	if Server == "" {
		return
	}
	startWorker.Do(func() {
		go worker()
	})

	if left := time.Until(throttleUntil); left > 0 {
		logf("skipping POST, throttled for %s\n", left)
		return
	}

	o := op{
		uri:  "http://" + Server + uriPath,
		mime: mime,
		d:    d,
	}
	select {
	case ch <- o:
	default:
		logf("POST %s dropped: channel full\n", o.uri)
	}
}

// ShipReport sends one diagnostic report.
func ShipReport(path string, r jsonldb.Report) {
	m := map[string]any{
		"path": path,
		"code": r.Code,
		"msg":  r.Msg,
	}
	if r.Line > 0 {
		m["line"] = r.Line
	}
	if r.Record != nil {
		m["record_id"] = r.Record.ID
	}
	if r.Err != nil {
		m["error"] = r.Err.Error()
	}
	d, _ := json.Marshal(m)
	post("/api/v1/report", d, mimeJSON)
}

// Sink returns an OnReport callback for a DB that ships every report.
func Sink(path string) func(jsonldb.Report) {
	return func(r jsonldb.Report) {
		ShipReport(path, r)
	}
}

// Event ships a named event with key/value pairs, encoded as toon for
// readability on the server side. Keys must be strings.
func Event(name string, vals ...any) {
	n := len(vals)
	if n%2 != 0 {
		logf("Event '%s': odd number of values\n", name)
		return
	}
	m := map[string]any{
		"name": name,
		"ts":   time.Now().UTC().UnixMilli(),
	}
	for i := 0; i < n; i += 2 {
		k, ok := vals[i].(string)
		if !ok {
			k = fmt.Sprintf("%v", vals[i])
		}
		m[k] = vals[i+1]
	}
	d, err := toon.Marshal(m)
	if err != nil {
		logf("Event '%s': toon.Marshal failed: %v\n", name, err)
		return
	}
	post("/api/v1/event", d, mimePlainText)
}
