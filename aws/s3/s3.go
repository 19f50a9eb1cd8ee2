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

// Package s3 provides S3 listing and storage for the ingestion pipeline.
package s3

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awss3 "github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

// Client wraps an S3 session shared by every lister and store of a run.
// Client methods are safe for concurrent use.
type Client struct {
	svc      *awss3.S3
	uploader *s3manager.Uploader
}

// NewClient returns a Client for the given AWS region. Credentials come from
// the usual SDK chain (environment, shared config, instance role).
func NewClient(region string) (*Client, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, errors.Wrap(err, "getting AWS session")
	}
	return &Client{
		svc:      awss3.New(sess),
		uploader: s3manager.NewUploader(sess),
	}, nil
}

// ParseURI splits an s3://bucket/key style URI (the s3n and s3a schemes are
// accepted too) into bucket and key.
func ParseURI(uri string) (bucket, key string, err error) {
	i := strings.Index(uri, "://")
	if i < 0 {
		return "", "", errors.Errorf("not an S3 URI: %s", uri)
	}
	switch uri[:i] {
	case "s3", "s3n", "s3a":
	default:
		return "", "", errors.Errorf("not an S3 URI: %s", uri)
	}
	rest := uri[i+3:]
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return "", "", errors.Errorf("no bucket in S3 URI: %s", uri)
	}
	bucket = parts[0]
	if len(parts) == 2 {
		key = parts[1]
	}
	return bucket, key, nil
}

// Prefix is one s3://bucket/prefix source location.
type Prefix struct {
	client *Client
	bucket string
	prefix string
}

// Lister returns a Prefix enumerating the objects under uri.
func (c *Client) Lister(uri string) (*Prefix, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return &Prefix{client: c, bucket: bucket, prefix: key}, nil
}

// List pages through the bucket listing and calls fn with the full s3:// URI
// and size of every object under the prefix. Paging keeps the listing
// streamed; the full object set is never held in memory here.
func (p *Prefix) List(ctx context.Context, fn func(path string, size int64) error) error {
	var fnErr error
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.prefix),
	}
	err := p.client.svc.ListObjectsV2PagesWithContext(ctx, input,
		func(page *awss3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				uri := "s3://" + p.bucket + "/" + aws.StringValue(obj.Key)
				if fnErr = fn(uri, aws.Int64Value(obj.Size)); fnErr != nil {
					return false
				}
			}
			return true
		})
	if err != nil {
		return errors.Wrapf(err, "listing s3://%s/%s", p.bucket, p.prefix)
	}
	return fnErr
}

// Open fetches the object named by an s3:// URI for reading.
func (c *Client) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	result, err := c.svc.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", uri)
	}
	return result.Body, nil
}

// Store is an output root under an s3://bucket/prefix URI.
type Store struct {
	client *Client
	bucket string
	root   string
}

// Store returns a Store rooted at uri.
func (c *Client) Store(uri string) (*Store, error) {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return &Store{client: c, bucket: bucket, root: key}, nil
}

func (s *Store) objectKey(path string) string {
	if s.root == "" {
		return path
	}
	return strings.TrimSuffix(s.root, "/") + "/" + path
}

// Open fetches the object at path, relative to the store root.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	result, err := s.client.svc.GetObjectWithContext(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(path)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", path)
	}
	return result.Body, nil
}

// Create returns a writer that streams into the object at path via a
// managed upload. The object only becomes visible on a clean Close, and
// overwrites any previous version, so retried runs rewrite rather than
// append.
func (s *Store) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	uw := &uploadWriter{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := s.client.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(path)),
			Body:   pr,
		})
		pr.CloseWithError(err)
		uw.done <- errors.Wrapf(err, "uploading %s", path)
	}()
	return uw, nil
}

// Replace writes the object at path in one upload. S3 object writes are
// already all-or-nothing, so this is Create plus Close.
func (s *Store) Replace(ctx context.Context, path string, write func(io.Writer) error) error {
	w, err := s.Create(ctx, path)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ListPrefix returns the full s3:// URIs of the objects under prefix,
// relative to the store root.
func (s *Store) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	var uris []string
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	}
	err := s.client.svc.ListObjectsV2PagesWithContext(ctx, input,
		func(page *awss3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				uris = append(uris, "s3://"+s.bucket+"/"+aws.StringValue(obj.Key))
			}
			return true
		})
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", prefix)
	}
	return uris, nil
}

type uploadWriter struct {
	pw   *io.PipeWriter
	done chan error
}

func (u *uploadWriter) Write(p []byte) (int, error) {
	return u.pw.Write(p)
}

// Close finishes the stream and waits for the upload to complete, returning
// the upload error if any.
func (u *uploadWriter) Close() error {
	if err := u.pw.Close(); err != nil {
		return err
	}
	return <-u.done
}
