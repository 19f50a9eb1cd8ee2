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
	"context"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// DefaultCounterInterval is the byte interval between liveness counter
// increments during a reduce.
const DefaultCounterInterval = 1000000

// RawBytesWritten is the stat name the reduce stage counts raw (pre-gzip)
// bytes under.
const RawBytesWritten = "canonicalize.raw-bytes-written"

// BatchWriter is the reduce stage: it merges every record for one
// (date, batch) key into a single gzip output file under the store. Records
// are streamed straight into the compressor, never buffered per batch, so a
// batch can be arbitrarily large.
type BatchWriter struct {
	Store Store
	Stats Statter
	// CounterInterval is the number of raw bytes between Stats increments.
	// The increments keep a supervising scheduler from mistaking a long
	// reduce for a stall. Zero means DefaultCounterInterval.
	CounterInterval int
}

// NewBatchWriter returns a BatchWriter over store with no stats collection.
func NewBatchWriter(store Store) *BatchWriter {
	return &BatchWriter{
		Store:           store,
		Stats:           NopStatter{},
		CounterInterval: DefaultCounterInterval,
	}
}

// WriteBatch writes every value for key as one newline-terminated line of
// dt=<date>/batch_<id>.gz. The file is created from scratch each time, so a
// retried run overwrites rather than appends. Any failure invalidates the
// whole file; there is no partial-file recovery.
func (bw *BatchWriter) WriteBatch(ctx context.Context, key BatchKey, values <-chan []byte) (err error) {
	interval := bw.CounterInterval
	if interval <= 0 {
		interval = DefaultCounterInterval
	}
	stats := bw.Stats
	if stats == nil {
		stats = NopStatter{}
	}

	out, err := bw.Store.Create(ctx, key.BatchPath())
	if err != nil {
		return errors.Wrapf(err, "creating output for %s batch %d", key.Date, key.BatchID)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing output")
		}
	}()

	gz := gzip.NewWriter(out)
	written := 0
	for value := range values {
		value = bytes.TrimSpace(value)
		if _, err := gz.Write(value); err != nil {
			return errors.Wrap(err, "writing record")
		}
		if _, err := gz.Write([]byte{'\n'}); err != nil {
			return errors.Wrap(err, "writing record terminator")
		}
		written += len(value) + 1

		if written > interval {
			stats.Count(RawBytesWritten, int64(written), 1)
			written = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	if written > 0 {
		stats.Count(RawBytesWritten, int64(written), 1)
	}

	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "flushing gzip stream")
	}
	return nil
}
