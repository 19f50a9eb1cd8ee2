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
	"sort"

	"github.com/pkg/errors"
)

// Plan assigns every path in newPaths to a batch and registers each
// assignment in the ledger. Paths are sorted lexicographically and packed
// into consecutive groups of capacity, numbered from the ledger's
// high-water-mark plus one. Given the same set of paths and the same
// starting high-water-mark the assignment is identical on every run, so an
// interrupted run recomputes the same plan on retry.
//
// Plan must run on the single coordinating process before any parallel work
// begins - workers only ever look batch ids up in the returned map, they
// never invent them.
func Plan(newPaths []string, ledger *Ledger, capacity int) (map[string]int, error) {
	if capacity < 1 {
		return nil, errors.Errorf("files per batch must be at least 1, got %d", capacity)
	}

	sorted := make([]string, len(newPaths))
	copy(sorted, newPaths)
	sort.Strings(sorted)

	minBatchID := ledger.MaxBatchID() + 1
	assignment := make(map[string]int, len(sorted))
	for i, path := range sorted {
		batchID := minBatchID + i/capacity
		ledger.Register(batchID, path)
		assignment[path] = batchID
	}
	return assignment, nil
}
