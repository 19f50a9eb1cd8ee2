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
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Store is the destination for a run's outputs: the per-(date, batch) files
// and the ledger. Paths are relative to the store's root. Create truncates
// any existing file, so retried runs overwrite rather than append. Replace
// writes the file all-or-nothing where the backend allows it (temp file plus
// rename); it exists so the ledger never becomes visible half-written.
type Store interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Create(ctx context.Context, path string) (io.WriteCloser, error)
	Replace(ctx context.Context, path string, write func(io.Writer) error) error
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
}

// OutputsForInterval lists the canonical output files for every date in the
// closed interval [start, end]. Dates with no partition contribute nothing.
// This is the hand-off point for downstream consumers that read the corpus a
// day at a time.
func OutputsForInterval(ctx context.Context, store Store, start, end time.Time) ([]string, error) {
	var outputs []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		prefix := "dt=" + d.Format("2006-01-02") + "/"
		files, err := store.ListPrefix(ctx, prefix)
		if err != nil {
			return nil, errors.Wrapf(err, "listing partition %s", prefix)
		}
		outputs = append(outputs, files...)
	}
	return outputs, nil
}
