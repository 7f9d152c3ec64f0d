package jsonldb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/pretty"
)

// DumpFile writes a human-readable rendering of the log to w, one
// pretty-printed record per entry. Lines that don't parse as JSON are
// printed raw with a marker. Meant for debugging, reads the file
// directly and ignores the cache.
func DumpFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if !json.Valid(line) {
			fmt.Fprintf(w, "! line %d is not valid JSON: %s\n", lineNo, line)
			continue
		}
		w.Write(pretty.Pretty(line))
	}
	return scanner.Err()
}
