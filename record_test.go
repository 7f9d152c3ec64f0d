package jsonldb

import (
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

func TestMarshalParseRoundTrip(t *testing.T) {
	rec := &Record{
		ID: "a",
		Tm: 1700000000000,
		Fields: map[string]any{
			"name": "first",
			"n":    float64(7),
			"tags": []any{"x", "y"},
			"meta": map[string]any{"depth": float64(2)},
		},
	}
	d, err := MarshalRecord(rec)
	assert.NoError(t, err)
	got, err := ParseRecord(d)
	assert.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Tm, got.Tm)
	assert.True(t, fieldsEqual(rec.Fields, got.Fields))

	// serialization is deterministic
	d2, err := MarshalRecord(rec)
	assert.NoError(t, err)
	assert.Equal(t, string(d), string(d2))
}

func TestMarshalNoEscapeHTML(t *testing.T) {
	rec := &Record{
		ID:     "a",
		Tm:     1,
		Fields: map[string]any{"url": "https://example.com/?a=1&b=<2>"},
	}
	d, err := MarshalRecord(rec)
	assert.NoError(t, err)
	s := string(d)
	if s != `{"id":"a","tm":1,"url":"https://example.com/?a=1&b=<2>"}` {
		t.Fatalf("unexpected serialization: %s", s)
	}
}

func TestParseRecordErrors(t *testing.T) {
	invalid := []string{
		`not json`,
		`{"tm":1}`,
		`{"id":"","tm":1}`,
		`{"id":5,"tm":1}`,
		`{"id":"a"}`,
		`{"id":"a","tm":"soon"}`,
	}
	for _, s := range invalid {
		_, err := ParseRecord([]byte(s))
		assert.Error(t, err, "s: '%s'", s)
	}
}

func TestNotEqual(t *testing.T) {
	a := &Record{ID: "x", Tm: 1, Fields: map[string]any{"v": float64(1)}}

	// same reference fast path
	assert.False(t, notEqual(a, a))

	// tm is excluded from the comparison
	b := &Record{ID: "x", Tm: 99, Fields: map[string]any{"v": float64(1)}}
	assert.False(t, notEqual(a, b))

	// changed value
	c := &Record{ID: "x", Tm: 1, Fields: map[string]any{"v": float64(2)}}
	assert.True(t, notEqual(a, c))

	// different field sets
	d := &Record{ID: "x", Tm: 1, Fields: map[string]any{"v": float64(1), "w": float64(1)}}
	assert.True(t, notEqual(a, d))

	// nested values compared recursively
	n1 := &Record{ID: "x", Tm: 1, Fields: map[string]any{"m": map[string]any{"a": []any{float64(1), float64(2)}}}}
	n2 := &Record{ID: "x", Tm: 2, Fields: map[string]any{"m": map[string]any{"a": []any{float64(1), float64(2)}}}}
	n3 := &Record{ID: "x", Tm: 1, Fields: map[string]any{"m": map[string]any{"a": []any{float64(1), float64(3)}}}}
	assert.False(t, notEqual(n1, n2))
	assert.True(t, notEqual(n1, n3))

	// nil fields vs empty fields is not a difference
	e1 := &Record{ID: "x", Tm: 1}
	e2 := &Record{ID: "x", Tm: 1, Fields: map[string]any{}}
	assert.False(t, notEqual(e1, e2))
}

func TestSupersedes(t *testing.T) {
	curr := &Record{ID: "x", Tm: 100, Fields: map[string]any{"v": float64(1)}}

	assert.True(t, supersedes(nil, curr))
	assert.True(t, supersedes(curr, &Record{ID: "x", Tm: 101, Fields: map[string]any{"v": float64(1)}}))
	assert.False(t, supersedes(curr, &Record{ID: "x", Tm: 99, Fields: map[string]any{"v": float64(2)}}))
	// tie: content decides
	assert.False(t, supersedes(curr, &Record{ID: "x", Tm: 100, Fields: map[string]any{"v": float64(1)}}))
	assert.True(t, supersedes(curr, &Record{ID: "x", Tm: 100, Fields: map[string]any{"v": float64(2)}}))
}

func TestImplausibleTm(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// small values are test-style elapsed timestamps
	assert.False(t, implausibleTm(0, now))
	assert.False(t, implausibleTm(12345, now))
	assert.False(t, implausibleTm(999999, now))

	// between the test threshold and the 2020 floor
	assert.True(t, implausibleTm(1000000, now))
	assert.True(t, implausibleTm(tmEpochFloorMs-1, now))

	// plausible wall clock
	assert.False(t, implausibleTm(tmEpochFloorMs, now))
	assert.False(t, implausibleTm(now.UnixMilli(), now))

	// more than a year in the future
	future := now.Add(366 * 24 * time.Hour).UnixMilli()
	assert.True(t, implausibleTm(future, now))
}

func TestNormalizeRecordCopies(t *testing.T) {
	orig := &Record{ID: "x", Fields: map[string]any{"n": 3}}
	rec, err := normalizeRecord(orig)
	assert.NoError(t, err)
	rec.Tm = 500
	rec.Fields["n"] = float64(4)
	// the caller's record is untouched
	assert.Equal(t, int64(0), orig.Tm)
	assert.Equal(t, 3, orig.Fields["n"])
	// values went through JSON so ints become float64
	assert.Equal(t, float64(4), rec.Fields["n"])
}
