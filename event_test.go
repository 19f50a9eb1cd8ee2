// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package canon

import (
	"testing"
	"time"

	"github.com/eventlake/canon/test"
)

var runTime = time.Date(2023, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestCanonicalizer() *Canonicalizer {
	return NewCanonicalizer(runTime, map[string]int{"/logs/input.log": 42})
}

func TestCanonicalize(t *testing.T) {
	c := newTestCanonicalizer()
	line := []byte(`{"event_type": "play_video", "time": "2023-01-01T10:30:00.123456Z", "event": "{\"code\": \"abc\"}"}`)

	event, key, ok := c.Canonicalize(line, "/logs/input.log")
	if !ok {
		t.Fatal("expected line to canonicalize")
	}
	test.MustBe(t, key, BatchKey{Date: "2023-01-01", BatchID: 42}, "key")
	test.MustBe(t, event["time"], "2023-01-01T10:30:00.123456", "time")
	test.MustBe(t, event["date"], "2023-01-01", "date")
	test.MustBe(t, event["context"], map[string]interface{}{}, "context default")
	test.MustBe(t, event["event"], map[string]interface{}{"code": "abc"}, "decoded payload")

	metadata, isMap := event["metadata"].(map[string]interface{})
	if !isMap {
		t.Fatalf("expected metadata mapping, got %T", event["metadata"])
	}
	test.MustBe(t, metadata["version"], Version, "version")
	test.MustBe(t, metadata["last_modified"], "2023-06-15T12:00:00.000000", "last_modified")
	test.MustBe(t, metadata["original_file"], "/logs/input.log", "original_file")
	test.MustBe(t, metadata["batch_id"], 42, "batch_id")
	test.MustBe(t, metadata["id"], ContentID(line), "content id")
}

func TestCanonicalizePreservesExisting(t *testing.T) {
	c := newTestCanonicalizer()
	line := []byte(`{"event_type": "x", "time": "2023-01-01T00:00:00Z", "date": "keepme", "metadata": {"version": "9", "id": "abc123"}, "context": {"user": 7}}`)

	event, _, ok := c.Canonicalize(line, "/logs/input.log")
	if !ok {
		t.Fatal("expected line to canonicalize")
	}
	metadata := event["metadata"].(map[string]interface{})
	test.MustBe(t, event["date"], "keepme", "existing date wins")
	test.MustBe(t, metadata["version"], "9", "existing version wins")
	test.MustBe(t, metadata["id"], "abc123", "existing id wins")
	test.MustBe(t, event["context"], map[string]interface{}{"user": float64(7)}, "existing context wins")
}

func TestCanonicalizeDrops(t *testing.T) {
	c := newTestCanonicalizer()
	tests := []struct {
		name string
		line string
		file string
	}{
		{name: "not json", line: `this is not json at all`, file: "/logs/input.log"},
		{name: "json scalar", line: `42`, file: "/logs/input.log"},
		{name: "missing event_type", line: `{"time": "2023-01-01T00:00:00Z"}`, file: "/logs/input.log"},
		{name: "missing time", line: `{"event_type": "x"}`, file: "/logs/input.log"},
		{name: "unparseable time", line: `{"event_type": "x", "time": "around noonish"}`, file: "/logs/input.log"},
		{name: "numeric time", line: `{"event_type": "x", "time": 1234567}`, file: "/logs/input.log"},
		{name: "unassigned file", line: `{"event_type": "x", "time": "2023-01-01T00:00:00Z"}`, file: "/logs/unknown.log"},
	}
	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			if _, _, ok := c.Canonicalize([]byte(tst.line), tst.file); ok {
				t.Fatal("expected line to be dropped")
			}
		})
	}
}

func TestCanonicalizeBadPayload(t *testing.T) {
	c := newTestCanonicalizer()
	line := []byte(`{"event_type": "x", "time": "2023-01-01T00:00:00Z", "event": "{{{not json"}`)
	event, _, ok := c.Canonicalize(line, "/logs/input.log")
	if !ok {
		t.Fatal("expected line to canonicalize")
	}
	test.MustBe(t, event["event"], map[string]interface{}{}, "bad payload becomes empty mapping")
}

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		input  interface{}
		expect string
		ok     bool
	}{
		{input: "2023-01-01T10:30:00Z", expect: "2023-01-01T10:30:00.000000", ok: true},
		{input: "2023-01-01T10:30:00.123456Z", expect: "2023-01-01T10:30:00.123456", ok: true},
		{input: "2023-01-01T10:30:00.123456", expect: "2023-01-01T10:30:00.123456", ok: true},
		{input: "2023-01-01T10:30:00", expect: "2023-01-01T10:30:00.000000", ok: true},
		{input: "2023-01-01 10:30:00", expect: "2023-01-01T10:30:00.000000", ok: true},
		{input: "2023-01-01T05:30:00-05:00", expect: "2023-01-01T10:30:00.000000", ok: true},
		{input: "January 1st", ok: false},
		{input: "", ok: false},
		{input: nil, ok: false},
		{input: 12345, ok: false},
	}
	for _, tst := range tests {
		got, ok := NormalizeTime(tst.input)
		if ok != tst.ok {
			t.Fatalf("input %v: expected ok=%v, got %v", tst.input, tst.ok, ok)
		}
		if ok && got != tst.expect {
			t.Fatalf("input %v: expected %q, got %q", tst.input, tst.expect, got)
		}
	}
}

func TestContentID(t *testing.T) {
	a := ContentID([]byte("same line"))
	b := ContentID([]byte("same line"))
	c := ContentID([]byte("different line"))
	if a != b {
		t.Fatalf("identical lines must hash identically: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("different lines should not collide: %s", a)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(a))
	}
}

func TestBatchPath(t *testing.T) {
	key := BatchKey{Date: "2023-01-01", BatchID: 7}
	test.MustBe(t, key.BatchPath(), "dt=2023-01-01/batch_7.gz", "output path")
}
