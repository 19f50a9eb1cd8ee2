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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MetadataFile is the name of the ledger file, relative to the output root.
const MetadataFile = "_metadata.tsv"

// Ledger records which source files have already been ingested and the batch
// each was assigned to. It also tracks the high-water-mark batch id so that
// new batches always get fresh ids. The zero batch id is never assigned; it
// is the starting high-water-mark of an empty ledger.
//
// A Ledger is not safe for concurrent use. The pipeline only ever touches it
// from the single coordinating goroutine, before and after the parallel
// stages.
type Ledger struct {
	pathToBatch map[string]int
	maxBatchID  int
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{pathToBatch: make(map[string]int)}
}

// LoadLedger reads tab separated "<batch_id>\t<path>" lines from r. Malformed
// lines and read errors are tolerated - whatever parsed cleanly up to that
// point is returned. Callers treat a ledger they cannot even open as empty,
// so load never fails a run.
func LoadLedger(r io.Reader) *Ledger {
	l := NewLedger()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			continue
		}
		batchID, err := strconv.Atoi(parts[0])
		if err != nil || batchID < 0 || parts[1] == "" {
			continue
		}
		l.Register(batchID, parts[1])
	}
	return l
}

// Register maps path to batchID, raising the high-water-mark if needed.
// Registering the same pair twice is a no-op.
func (l *Ledger) Register(batchID int, path string) {
	l.pathToBatch[path] = batchID
	if batchID > l.maxBatchID {
		l.maxBatchID = batchID
	}
}

// Contains reports whether path has already been registered.
func (l *Ledger) Contains(path string) bool {
	_, ok := l.pathToBatch[path]
	return ok
}

// BatchID returns the batch id registered for path.
func (l *Ledger) BatchID(path string) (int, bool) {
	id, ok := l.pathToBatch[path]
	return id, ok
}

// MaxBatchID returns the largest batch id ever registered, or 0 for an empty
// ledger.
func (l *Ledger) MaxBatchID() int {
	return l.maxBatchID
}

// Len returns the number of registered paths.
func (l *Ledger) Len() int {
	return len(l.pathToBatch)
}

// WriteTo serializes every registration as a "<batch_id>\t<path>" line.
// Iteration order is not stable across calls; the ledger is keyed by path so
// order carries no meaning.
func (l *Ledger) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for path, batchID := range l.pathToBatch {
		n, err := fmt.Fprintf(w, "%d\t%s\n", batchID, path)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Batches returns the number of files registered per batch id.
func (l *Ledger) Batches() map[int]int {
	counts := make(map[int]int)
	for _, batchID := range l.pathToBatch {
		counts[batchID]++
	}
	return counts
}
