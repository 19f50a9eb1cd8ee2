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
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Version is stamped into every canonical record as metadata.version.
const Version = "1"

// TimeFormat is the canonical timestamp layout: ISO-8601 with microsecond
// precision and no zone offset. Times are normalized to UTC before
// formatting.
const TimeFormat = "2006-01-02T15:04:05.000000"

// timeLayouts are the accepted input timestamp layouts, tried in order.
// Layouts without a zone are assumed to be UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// Event is one canonical record. It is a free-form mapping rather than a
// fixed struct because source events carry arbitrary payloads which must
// survive canonicalization untouched.
type Event map[string]interface{}

// Encode serializes the event as a single JSON line (no trailing newline).
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(map[string]interface{}(e))
}

// BatchKey identifies the output file a canonical record belongs to. Every
// record maps to exactly one (date, batch) pair.
type BatchKey struct {
	Date    string
	BatchID int
}

// BatchPath returns the output file path for the key, relative to the output
// root.
func (k BatchKey) BatchPath() string {
	return "dt=" + k.Date + "/batch_" + strconv.Itoa(k.BatchID) + ".gz"
}

// Canonicalizer normalizes raw log lines into canonical events. It is
// immutable once constructed and safe to share across map workers - the
// assignment table is computed centrally before any worker starts, and the
// run time is captured once so every record of a run carries the same
// last_modified stamp.
type Canonicalizer struct {
	// RunTime is the run's start time in canonical form, stamped into
	// metadata.last_modified of every record.
	RunTime string
	// Assignment maps each input file path to its batch id.
	Assignment map[string]int
}

// NewCanonicalizer returns a Canonicalizer for a run started at runTime with
// the given frozen path to batch assignment.
func NewCanonicalizer(runTime time.Time, assignment map[string]int) *Canonicalizer {
	return &Canonicalizer{
		RunTime:    runTime.UTC().Format(TimeFormat),
		Assignment: assignment,
	}
}

// Canonicalize parses one raw line from originalFile and produces the
// canonical event and its batch key. The boolean is false when the line is
// dropped: unparseable JSON, no event_type, no derivable timestamp, or a
// file with no batch assignment. Log collection inputs are expected to
// contain noise, so a drop is not an error.
func (c *Canonicalizer) Canonicalize(line []byte, originalFile string) (Event, BatchKey, bool) {
	var event Event
	if err := json.Unmarshal(line, &event); err != nil || event == nil {
		return nil, BatchKey{}, false
	}
	if _, ok := event["event_type"]; !ok {
		return nil, BatchKey{}, false
	}
	standardized, ok := NormalizeTime(event["time"])
	if !ok {
		return nil, BatchKey{}, false
	}
	batchID, ok := c.Assignment[originalFile]
	if !ok {
		return nil, BatchKey{}, false
	}

	event["time"] = standardized
	date := strings.SplitN(standardized, "T", 2)[0]
	if _, ok := event["date"]; !ok {
		event["date"] = date
	}

	metadata, ok := event["metadata"].(map[string]interface{})
	if !ok {
		metadata = make(map[string]interface{})
		event["metadata"] = metadata
	}
	if _, ok := metadata["version"]; !ok {
		metadata["version"] = Version
	}
	metadata["last_modified"] = c.RunTime
	if _, ok := metadata["id"]; !ok {
		metadata["id"] = ContentID(line)
	}
	metadata["original_file"] = originalFile
	metadata["batch_id"] = batchID

	if _, ok := event["context"].(map[string]interface{}); !ok {
		event["context"] = map[string]interface{}{}
	}

	// A string event payload is really encoded structured data. Decode
	// failure substitutes an empty mapping, never an error.
	if payload, ok := event["event"].(string); ok && payload != "" {
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(payload), &decoded); err != nil || decoded == nil {
			event["event"] = map[string]interface{}{}
		} else {
			event["event"] = decoded
		}
	}

	return event, BatchKey{Date: date, BatchID: batchID}, true
}

// NormalizeTime converts an event's time field to canonical form. It accepts
// RFC3339 timestamps with or without fractional seconds, and naive
// ISO-8601-ish variants which are assumed to be UTC. The boolean is false
// when no well-formed timestamp can be derived.
func NormalizeTime(v interface{}) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return t.UTC().Format(TimeFormat), true
	}
	return "", false
}

// ContentID derives a stable identifier from a raw line: the md5 hex digest
// of the bytes. Identical lines hash identically, which makes the id a
// deterministic dedup key for records that carry no identifier of their own.
func ContentID(line []byte) string {
	sum := md5.Sum(line)
	return hex.EncodeToString(sum[:])
}
