// Package redissource stores templates in a Redis hash, keyed by path, so
// several processes can render the same set of templates.
package redissource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"

	"impractical.co/hbs"
)

// DefaultKey is the hash templates are stored in unless WithKey is used.
const DefaultKey = "hbs:templates"

var _ hbs.Source = (*Store)(nil)

// Store is an hbs.Source backed by a Redis hash mapping template paths to
// their bodies.
type Store struct {
	rdb redis.Cmdable
	key string
}

// Option configures a Store.
type Option func(*Store)

// WithKey stores templates in the hash at key instead of DefaultKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// New returns a Store using rdb.
func New(rdb redis.Cmdable, opts ...Option) *Store {
	s := &Store{
		rdb: rdb,
		key: DefaultKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cleanPath(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
}

// Put stores body as the template at p, replacing any template already
// there.
func (s *Store) Put(ctx context.Context, p, body string) error {
	if err := s.rdb.HSet(ctx, s.key, cleanPath(p), body).Err(); err != nil {
		return fmt.Errorf("error storing template %q: %w", p, err)
	}
	return nil
}

// Delete removes the template at p.
func (s *Store) Delete(ctx context.Context, p string) error {
	if err := s.rdb.HDel(ctx, s.key, cleanPath(p)).Err(); err != nil {
		return fmt.Errorf("error deleting template %q: %w", p, err)
	}
	return nil
}

// ReadFile returns the body of the template at p.
func (s *Store) ReadFile(ctx context.Context, p string) ([]byte, error) {
	body, err := s.rdb.HGet(ctx, s.key, cleanPath(p)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	if err != nil {
		return nil, fmt.Errorf("error loading template %q: %w", p, err)
	}
	return body, nil
}

// Exists reports whether there's a template stored at p.
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	ok, err := s.rdb.HExists(ctx, s.key, cleanPath(p)).Result()
	if err != nil {
		return false, fmt.Errorf("error checking template %q: %w", p, err)
	}
	return ok, nil
}

// List returns the path of every template under root, sorted.
func (s *Store) List(ctx context.Context, root string) ([]string, error) {
	prefix := strings.TrimSuffix(cleanPath(root), "/") + "/"
	keys, err := s.rdb.HKeys(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("error listing templates in %q: %w", root, err)
	}
	results := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasPrefix(key, prefix) {
			results = append(results, key)
		}
	}
	slices.Sort(results)
	return results, nil
}
