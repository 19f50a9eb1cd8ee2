// Package hdfs provides HDFS listing and storage for the ingestion
// pipeline, backed by the WebHDFS-free native protocol client.
package hdfs

import (
	"context"
	"io"
	"math/rand"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/colinmarc/hdfs/v2"
	"github.com/pkg/errors"
)

// Client wraps a namenode connection shared by every lister and store of a
// run.
type Client struct {
	fs   *hdfs.Client
	addr string
}

// NewClient connects to the namenode at addr (host:port).
func NewClient(addr string) (*Client, error) {
	fs, err := hdfs.New(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to namenode %s", addr)
	}
	return &Client{fs: fs, addr: addr}, nil
}

// ParseURI splits an hdfs://host:port/path URI into the namenode address and
// the absolute path.
func ParseURI(uri string) (addr, p string, err error) {
	if !strings.HasPrefix(uri, "hdfs://") {
		return "", "", errors.Errorf("not an HDFS URI: %s", uri)
	}
	rest := strings.TrimPrefix(uri, "hdfs://")
	i := strings.Index(rest, "/")
	if i < 0 {
		return rest, "/", nil
	}
	return rest[:i], rest[i:], nil
}

// Dir is one hdfs:// source location.
type Dir struct {
	client *Client
	path   string
}

// Lister returns a Dir enumerating the files under uri.
func (c *Client) Lister(uri string) (*Dir, error) {
	_, p, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return &Dir{client: c, path: p}, nil
}

// List walks the directory tree and calls fn with the full hdfs:// URI and
// size of every file.
func (d *Dir) List(ctx context.Context, fn func(path string, size int64) error) error {
	err := d.client.fs.Walk(d.path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn("hdfs://"+d.client.addr+p, info.Size())
	})
	return errors.Wrapf(err, "walking hdfs://%s%s", d.client.addr, d.path)
}

// Open opens the file named by an hdfs:// URI for reading.
func (c *Client) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	_, p, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	f, err := c.fs.Open(p)
	return f, errors.Wrapf(err, "opening %s", uri)
}

// Store is an output root under an hdfs:// URI.
type Store struct {
	client *Client
	root   string
}

// Store returns a Store rooted at uri.
func (c *Client) Store(uri string) (*Store, error) {
	_, p, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return &Store{client: c, root: p}, nil
}

func (s *Store) fullPath(p string) string {
	return path.Join(s.root, p)
}

// Open opens the file at path, relative to the store root.
func (s *Store) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	f, err := s.client.fs.Open(s.fullPath(p))
	return f, errors.Wrapf(err, "opening %s", p)
}

// Create creates (or replaces) the file at path, relative to the store
// root, making parent directories as needed.
func (s *Store) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	full := s.fullPath(p)
	if err := s.client.fs.MkdirAll(path.Dir(full), 0o755); err != nil {
		return nil, errors.Wrapf(err, "making directory for %s", p)
	}
	// hdfs create fails on an existing file, so clear any previous output.
	if err := s.client.fs.Remove(full); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "removing old %s", p)
	}
	f, err := s.client.fs.Create(full)
	return f, errors.Wrapf(err, "creating %s", p)
}

// tempName returns a randomized sibling name for Replace's temp file, so
// concurrent runs against the same root never collide on it.
func tempName(p string) string {
	return p + ".tmp-" + strconv.FormatInt(rand.Int63(), 10)
}

// Replace writes the file at path all-or-nothing: write goes to a temp file
// which is renamed over the destination only after a clean close.
func (s *Store) Replace(ctx context.Context, p string, write func(io.Writer) error) error {
	full := s.fullPath(p)
	tmpRel := tempName(p)
	tmp := s.fullPath(tmpRel)
	w, err := s.Create(ctx, tmpRel)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		w.Close()
		s.client.fs.Remove(tmp)
		return err
	}
	if err := w.Close(); err != nil {
		s.client.fs.Remove(tmp)
		return errors.Wrap(err, "closing temp file")
	}
	if err := s.client.fs.Remove(full); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing old %s", p)
	}
	return errors.Wrapf(s.client.fs.Rename(tmp, full), "renaming over %s", p)
}

// ListPrefix returns the full hdfs:// URIs of the files directly under
// prefix, relative to the store root. A missing prefix directory yields an
// empty listing.
func (s *Store) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	dir := s.fullPath(prefix)
	infos, err := s.client.fs.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", prefix)
	}
	var uris []string
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		uris = append(uris, "hdfs://"+s.client.addr+path.Join(dir, info.Name()))
	}
	return uris, nil
}
