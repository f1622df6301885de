package hbs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Source is where an Engine reads templates, layouts, and partials from.
// Paths are always absolute.
type Source interface {
	// ReadFile returns the contents of the file at path. Errors for
	// missing files should wrap fs.ErrNotExist.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether there's a file at path.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the paths of every file under root, recursively.
	List(ctx context.Context, root string) ([]string, error)
}

var _ Source = LocalSource{}
var _ Source = FSSource{}

// LocalSource reads templates from the local filesystem.
type LocalSource struct{}

// ReadFile reads the file at path from disk.
func (LocalSource) ReadFile(_ context.Context, path string) ([]byte, error) {
	return os.ReadFile(path) // #nosec G304
}

// Exists reports whether a regular file exists at path.
func (LocalSource) Exists(_ context.Context, path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// List walks root and returns the path of every file in it.
func (LocalSource) List(_ context.Context, root string) ([]string, error) {
	var results []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		results = append(results, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FSSource reads templates from an fs.FS, treating the root of the fs.FS as
// "/". A template at "views/index.hbs" in the fs.FS has the path
// "/views/index.hbs".
type FSSource struct {
	FS fs.FS
}

func fsName(p string) string {
	name := strings.TrimPrefix(path.Clean(filepath.ToSlash(p)), "/")
	if name == "" {
		return "."
	}
	return name
}

// ReadFile reads the file at path from the fs.FS.
func (s FSSource) ReadFile(_ context.Context, path string) ([]byte, error) {
	return fs.ReadFile(s.FS, fsName(path))
}

// Exists reports whether a regular file exists at path in the fs.FS.
func (s FSSource) Exists(_ context.Context, path string) (bool, error) {
	info, err := fs.Stat(s.FS, fsName(path))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// List walks root in the fs.FS and returns the path of every file in it.
func (s FSSource) List(_ context.Context, root string) ([]string, error) {
	var results []string
	err := fs.WalkDir(s.FS, fsName(root), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		results = append(results, "/"+p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
