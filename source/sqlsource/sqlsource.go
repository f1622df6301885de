// Package sqlsource stores templates in a SQL table, so an hbs.Engine can
// render templates managed through a database instead of the filesystem.
//
// The table is portable between SQLite and PostgreSQL; queries are rebound
// to the placeholder style of the driver the *sqlx.DB was opened with.
package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"impractical.co/hbs"
)

// DefaultTable is the table templates are stored in unless WithTable is used.
const DefaultTable = "hbs_templates"

const upsertQuery = `
	INSERT INTO {table} (path, body, updated_at) VALUES (?, ?, ?)
	ON CONFLICT (path) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var _ hbs.Source = (*Store)(nil)

// Store is an hbs.Source backed by a SQL table of paths and template
// bodies. Paths are stored cleaned, with forward slashes.
type Store struct {
	db    *sqlx.DB
	table string
}

// Option configures a Store.
type Option func(*Store)

// WithTable stores templates in table instead of DefaultTable.
func WithTable(table string) Option {
	return func(s *Store) {
		s.table = table
	}
}

// New returns a Store using db.
func New(db *sqlx.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:    db,
		table: DefaultTable,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !tableName.MatchString(s.table) {
		return nil, fmt.Errorf("invalid table name %q", s.table)
	}
	return s, nil
}

func (s *Store) query(q string) string {
	return s.db.Rebind(strings.ReplaceAll(q, "{table}", s.table))
}

func cleanPath(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
}

// Migrate creates the templates table if it doesn't exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.query(`
		CREATE TABLE IF NOT EXISTS {table} (
			path TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`))
	if err != nil {
		return fmt.Errorf("error creating table %q: %w", s.table, err)
	}
	return nil
}

// Put stores body as the template at p, replacing any template already
// there.
func (s *Store) Put(ctx context.Context, p, body string) error {
	_, err := s.db.ExecContext(ctx, s.query(upsertQuery), cleanPath(p), body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error storing template %q: %w", p, err)
	}
	return nil
}

// Delete removes the template at p. Deleting a template that doesn't exist
// isn't an error.
func (s *Store) Delete(ctx context.Context, p string) error {
	_, err := s.db.ExecContext(ctx, s.query(`DELETE FROM {table} WHERE path = ?`), cleanPath(p))
	if err != nil {
		return fmt.Errorf("error deleting template %q: %w", p, err)
	}
	return nil
}

// ReadFile returns the body of the template at p.
func (s *Store) ReadFile(ctx context.Context, p string) ([]byte, error) {
	var body string
	err := s.db.GetContext(ctx, &body, s.query(`SELECT body FROM {table} WHERE path = ?`), cleanPath(p))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	if err != nil {
		return nil, fmt.Errorf("error loading template %q: %w", p, err)
	}
	return []byte(body), nil
}

// Exists reports whether there's a template stored at p.
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, s.query(`SELECT COUNT(*) FROM {table} WHERE path = ?`), cleanPath(p))
	if err != nil {
		return false, fmt.Errorf("error checking template %q: %w", p, err)
	}
	return count > 0, nil
}

// List returns the path of every template under root.
func (s *Store) List(ctx context.Context, root string) ([]string, error) {
	root = cleanPath(root)
	prefix := strings.TrimSuffix(root, "/") + "/"

	var paths []string
	err := s.db.SelectContext(ctx, &paths, s.query(`SELECT path FROM {table} WHERE path LIKE ? ORDER BY path`), prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("error listing templates in %q: %w", root, err)
	}

	// LIKE treats _ and % in the prefix as wildcards
	results := paths[:0]
	for _, p := range paths {
		if strings.HasPrefix(p, prefix) {
			results = append(results, p)
		}
	}
	return results, nil
}

// Import copies every template under root in src into the Store, keeping
// their paths.
func (s *Store) Import(ctx context.Context, src hbs.Source, root string) (int, error) {
	paths, err := src.List(ctx, root)
	if err != nil {
		return 0, fmt.Errorf("error listing %q: %w", root, err)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("error starting import: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PreparexContext(ctx, s.query(upsertQuery))
	if err != nil {
		return 0, fmt.Errorf("error preparing import: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, p := range paths {
		body, err := src.ReadFile(ctx, p)
		if err != nil {
			return 0, fmt.Errorf("error reading %q: %w", p, err)
		}
		if _, err := stmt.ExecContext(ctx, cleanPath(p), string(body), now); err != nil {
			return 0, fmt.Errorf("error importing %q: %w", p, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing import: %w", err)
	}
	return len(paths), nil
}
