package logship

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kjk/jsonldb"
)

func TestShipReport(t *testing.T) {
	type got struct {
		path string
		body []byte
	}
	gotCh := make(chan got, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, _ := io.ReadAll(r.Body)
		gotCh <- got{path: r.URL.Path, body: d}
	}))
	defer srv.Close()

	Server = strings.TrimPrefix(srv.URL, "http://")
	defer func() {
		Server = ""
	}()

	sink := Sink("records.jsonl")
	sink(jsonldb.Report{
		Code: jsonldb.CodeNothingToSave,
		Msg:  "no new or changed records",
		Err:  errors.New("cause"),
	})

	select {
	case g := <-gotCh:
		if g.path != "/api/v1/report" {
			t.Fatalf("unexpected path: %s", g.path)
		}
		var m map[string]any
		if err := json.Unmarshal(g.body, &m); err != nil {
			t.Fatalf("body is not JSON: %s", g.body)
		}
		if m["code"] != jsonldb.CodeNothingToSave {
			t.Fatalf("unexpected code: %v", m["code"])
		}
		if m["path"] != "records.jsonl" {
			t.Fatalf("unexpected db path: %v", m["path"])
		}
		if m["error"] != "cause" {
			t.Fatalf("unexpected error field: %v", m["error"])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("report never arrived")
	}

	Event("compacted", "path", "records.jsonl", "lines", 2)
	select {
	case g := <-gotCh:
		if g.path != "/api/v1/event" {
			t.Fatalf("unexpected path: %s", g.path)
		}
		if !strings.Contains(string(g.body), "compacted") {
			t.Fatalf("event body missing name: %s", g.body)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event never arrived")
	}
}

func TestDisabledByDefault(t *testing.T) {
	// Server is empty: shipping is a no-op and must not block
	ShipReport("records.jsonl", jsonldb.Report{Code: "X", Msg: "y"})
	Event("noop", "k", "v")
}
