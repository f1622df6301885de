package hbs_test

import (
	"context"
	"io"
	"io/fs"
	"sync"
	"time"

	"impractical.co/hbs"
)

// staticFS is an fs.FS of files with the given contents, keyed by their path
// without a leading slash. It has no directories, so it can't be listed; use
// fstest.MapFS when partials need to be scanned.
type staticFS map[string]string

func (s staticFS) Open(name string) (fs.File, error) {
	val, ok := s[name]
	if !ok {
		return nil, &fs.PathError{
			Op:   "open",
			Path: name,
			Err:  fs.ErrNotExist,
		}
	}
	return &staticFile{
		name:     name,
		contents: []byte(val),
	}, nil
}

// source returns an hbs.Source reading from s.
func (s staticFS) source() hbs.Source {
	return hbs.FSSource{FS: s}
}

type staticFile struct {
	name     string
	contents []byte
	offset   int
}

func (s *staticFile) Stat() (fs.FileInfo, error) {
	return s, nil
}

func (s *staticFile) Read(buf []byte) (int, error) {
	if s.offset >= len(s.contents) {
		return 0, io.EOF
	}
	if s.offset < 0 {
		return 0, &fs.PathError{
			Op:   "read",
			Path: s.name,
			Err:  fs.ErrInvalid,
		}
	}
	n := copy(buf, s.contents[s.offset:])
	s.offset += n
	return n, nil
}

func (*staticFile) Close() error {
	return nil
}

func (s *staticFile) Name() string {
	return s.name
}

func (s *staticFile) Size() int64 {
	return int64(len(s.contents))
}

func (*staticFile) Mode() fs.FileMode {
	return 0400
}

func (*staticFile) ModTime() time.Time {
	return time.Now()
}

func (*staticFile) IsDir() bool {
	return false
}

func (*staticFile) Sys() any {
	return nil
}

// countingSource wraps an hbs.Source, counting how many times each path is
// read or checked for.
type countingSource struct {
	hbs.Source

	mu     sync.Mutex
	reads  map[string]int
	checks map[string]int
}

func newCountingSource(src hbs.Source) *countingSource {
	return &countingSource{
		Source: src,
		reads:  map[string]int{},
		checks: map[string]int{},
	}
}

func (c *countingSource) ReadFile(ctx context.Context, path string) ([]byte, error) {
	c.mu.Lock()
	c.reads[path]++
	c.mu.Unlock()
	return c.Source.ReadFile(ctx, path)
}

func (c *countingSource) Exists(ctx context.Context, path string) (bool, error) {
	c.mu.Lock()
	c.checks[path]++
	c.mu.Unlock()
	return c.Source.Exists(ctx, path)
}

func (c *countingSource) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[path]
}

// touched reports whether path was read or checked for at all.
func (c *countingSource) touched(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[path] > 0 || c.checks[path] > 0
}
