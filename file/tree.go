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

// Package file provides local filesystem listing and storage for the
// ingestion pipeline.
package file

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Tree is a directory rooted on the local filesystem. It serves both as a
// source location (List walks every file under the root) and as an output
// store (Open/Create/Replace/ListPrefix take paths relative to the root).
type Tree struct {
	root string
}

// NewTree returns a Tree rooted at root. The root need not exist yet when
// the tree is only used as an output store; Create makes directories as
// needed.
func NewTree(root string) *Tree {
	return &Tree{root: root}
}

// List walks the tree and calls fn with the path and size of every regular
// file. A missing or unreadable root is an error - a partial listing would
// silently lose data downstream.
func (t *Tree) List(ctx context.Context, fn func(path string, size int64) error) error {
	err := filepath.Walk(t.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(path, info.Size())
	})
	return errors.Wrapf(err, "walking %s", t.root)
}

// Open opens the file at path, relative to the root, for reading.
func (t *Tree) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(t.root, path))
	return f, errors.Wrapf(err, "opening %s", path)
}

// Create creates (or truncates) the file at path, relative to the root,
// making parent directories as needed.
func (t *Tree) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	full := filepath.Join(t.root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, errors.Wrapf(err, "making directory for %s", path)
	}
	f, err := os.Create(full)
	return f, errors.Wrapf(err, "creating %s", path)
}

// Replace writes the file at path all-or-nothing: write goes to a temp file
// in the same directory which is renamed over the destination only after a
// clean close. A failed write leaves the old file untouched.
func (t *Tree) Replace(ctx context.Context, path string, write func(io.Writer) error) error {
	full := filepath.Join(t.root, path)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "making directory for %s", path)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(full)+".tmp-")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), full), "renaming over %s", path)
}

// ListPrefix returns the full paths of the regular files directly under
// prefix. A missing prefix directory yields an empty listing.
func (t *Tree) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	dir := filepath.Join(t.root, prefix)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", prefix)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}
