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
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Lister enumerates the files under one source location. Implementations
// call fn once per file with the file's absolute path (or URI) and size in
// bytes, and must stream the listing rather than materialize it - remote
// backends page through their listings. Returning an error from fn stops
// the listing and is returned from List.
type Lister interface {
	List(ctx context.Context, fn func(path string, size int64) error) error
}

// ListerFunc adapts a function to the Lister interface.
type ListerFunc func(ctx context.Context, fn func(path string, size int64) error) error

// List implements Lister.
func (lf ListerFunc) List(ctx context.Context, fn func(path string, size int64) error) error {
	return lf(ctx, fn)
}

// Enumerate runs every lister concurrently and merges their output into a
// single sorted, deduplicated set of paths, dropping zero-byte files. Any
// lister failure aborts the whole enumeration - planning batches from a
// partial listing would silently lose data.
func Enumerate(ctx context.Context, listers ...Lister) ([]string, error) {
	var mu sync.Mutex
	seen := make(map[string]struct{})

	g, gctx := errgroup.WithContext(ctx)
	for _, lister := range listers {
		lister := lister
		g.Go(func() error {
			return lister.List(gctx, func(path string, size int64) error {
				if size <= 0 {
					return nil
				}
				mu.Lock()
				seen[path] = struct{}{}
				mu.Unlock()
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}
