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
	"bytes"
	"strings"
	"testing"
)

func TestLoadLedger(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		entries    int
		maxBatchID int
	}{
		{
			name:       "empty",
			input:      "",
			entries:    0,
			maxBatchID: 0,
		},
		{
			name:       "basic",
			input:      "1\ts3://bucket/a.log\n2\ts3://bucket/b.log\n",
			entries:    2,
			maxBatchID: 2,
		},
		{
			name:       "malformed lines skipped",
			input:      "1\t/logs/a.log\nnot a number\t/logs/b.log\nnocolumn\n3\t/logs/c.log\n",
			entries:    2,
			maxBatchID: 3,
		},
		{
			name:       "negative batch id skipped",
			input:      "-1\t/logs/a.log\n2\t/logs/b.log\n",
			entries:    1,
			maxBatchID: 2,
		},
		{
			name:       "blank lines skipped",
			input:      "\n\n5\t/logs/a.log\n\n",
			entries:    1,
			maxBatchID: 5,
		},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			l := LoadLedger(strings.NewReader(tst.input))
			if l.Len() != tst.entries {
				t.Fatalf("expected %d entries, got %d", tst.entries, l.Len())
			}
			if l.MaxBatchID() != tst.maxBatchID {
				t.Fatalf("expected max batch id %d, got %d", tst.maxBatchID, l.MaxBatchID())
			}
		})
	}
}

func TestLedgerRegister(t *testing.T) {
	l := NewLedger()
	l.Register(3, "/logs/a.log")
	l.Register(3, "/logs/a.log")
	if l.Len() != 1 {
		t.Fatalf("re-registering should not add entries, got %d", l.Len())
	}
	if !l.Contains("/logs/a.log") {
		t.Fatal("expected ledger to contain registered path")
	}
	if l.Contains("/logs/b.log") {
		t.Fatal("unexpected path in ledger")
	}
	if id, ok := l.BatchID("/logs/a.log"); !ok || id != 3 {
		t.Fatalf("expected batch 3, got %d (ok=%v)", id, ok)
	}
	if l.MaxBatchID() != 3 {
		t.Fatalf("expected max batch id 3, got %d", l.MaxBatchID())
	}

	// Lower batch ids never lower the high-water-mark.
	l.Register(1, "/logs/b.log")
	if l.MaxBatchID() != 3 {
		t.Fatalf("expected max batch id to stay 3, got %d", l.MaxBatchID())
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	l := NewLedger()
	l.Register(1, "s3://bucket/logs/a.log")
	l.Register(1, "hdfs://nn:8020/logs/b.log")
	l.Register(2, "/var/log/events/c.log")

	var buf bytes.Buffer
	if _, err := l.WriteTo(&buf); err != nil {
		t.Fatalf("serializing: %v", err)
	}

	got := LoadLedger(&buf)
	if got.Len() != l.Len() {
		t.Fatalf("expected %d entries after round trip, got %d", l.Len(), got.Len())
	}
	if got.MaxBatchID() != l.MaxBatchID() {
		t.Fatalf("expected max batch id %d, got %d", l.MaxBatchID(), got.MaxBatchID())
	}
	for _, path := range []string{"s3://bucket/logs/a.log", "hdfs://nn:8020/logs/b.log", "/var/log/events/c.log"} {
		want, _ := l.BatchID(path)
		if id, ok := got.BatchID(path); !ok || id != want {
			t.Fatalf("path %s: expected batch %d, got %d (ok=%v)", path, want, id, ok)
		}
	}
}

func TestLedgerBatches(t *testing.T) {
	l := NewLedger()
	l.Register(1, "/logs/a.log")
	l.Register(1, "/logs/b.log")
	l.Register(2, "/logs/c.log")
	counts := l.Batches()
	if counts[1] != 2 || counts[2] != 1 {
		t.Fatalf("unexpected batch counts: %v", counts)
	}
}
