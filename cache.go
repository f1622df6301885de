package hbs

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/aymerick/raymond"
	"golang.org/x/sync/singleflight"
)

var commentPattern = regexp.MustCompile(`{{!--[\s\S]*?--}}|{{![^}]*}}`)

// compiled is a template, layout, or partial that's been read and compiled.
type compiled struct {
	path   string
	source string
	tpl    *raymond.Template

	// parents is the stack of layouts this template declares it's
	// rendered in, outermost first. It's only filled in once resolved
	// with caching on.
	parentsMu       sync.Mutex
	parents         []*compiled
	parentsResolved bool
}

func (c *compiled) cachedParents() ([]*compiled, bool) {
	c.parentsMu.Lock()
	defer c.parentsMu.Unlock()
	return c.parents, c.parentsResolved
}

func (c *compiled) setParents(parents []*compiled) {
	c.parentsMu.Lock()
	defer c.parentsMu.Unlock()
	c.parents = parents
	c.parentsResolved = true
}

// templateCache holds compiled templates keyed by absolute path. Entries are
// never evicted.
//
// It can safely be used by multiple goroutines.
type templateCache struct {
	mu      sync.RWMutex
	entries map[string]*compiled

	// group collapses concurrent compiles of the same path into one.
	group singleflight.Group
}

func newTemplateCache() *templateCache {
	return &templateCache{
		entries: map[string]*compiled{},
	}
}

func (c *templateCache) get(path string) *compiled {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[path]
}

func (c *templateCache) set(path string, tmpl *compiled) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = tmpl
}

// load returns the compiled template at path. With useCache, it's only read
// and compiled the first time; without, it's read and compiled on every
// call and never stored.
func (e *Engine) load(ctx context.Context, path string, useCache bool) (*compiled, error) {
	if !useCache {
		return e.compileFile(ctx, path)
	}
	if cached := e.cache.get(path); cached != nil {
		return cached, nil
	}
	res, err, _ := e.cache.group.Do(path, func() (any, error) {
		if cached := e.cache.get(path); cached != nil {
			return cached, nil
		}
		logger(ctx).DebugContext(ctx, "compiling template", "path", path)
		tmpl, err := e.compileFile(ctx, path)
		if err != nil {
			return nil, err
		}
		e.cache.set(path, tmpl)
		return tmpl, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*compiled), nil
}

func (e *Engine) compileFile(ctx context.Context, path string) (*compiled, error) {
	contents, err := e.source.ReadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("error reading template %q: %w", path, err)
	}
	return e.compile(path, string(contents))
}

func (e *Engine) compile(path, source string) (*compiled, error) {
	tpl, err := raymond.Parse(padCommentOnly(source))
	if err != nil {
		return nil, &CompileError{Path: e.displayPath(path), Err: err}
	}
	return &compiled{
		path:   path,
		source: source,
		tpl:    tpl,
	}, nil
}

// padCommentOnly appends a space to sources made of nothing but comments, so
// a layout or partial that only holds a directive still compiles to something.
// The space is part of the rendered output.
func padCommentOnly(source string) string {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" || !strings.HasSuffix(trimmed, "}}") {
		return source
	}
	if strings.TrimSpace(commentPattern.ReplaceAllString(trimmed, "")) != "" {
		return source
	}
	return source + " "
}

// displayPath returns path relative to the directory it was found in, for
// error messages.
func (e *Engine) displayPath(path string) string {
	roots := make([]string, 0, len(e.cfg.Views)+len(e.cfg.PartialsDirs)+1)
	roots = append(roots, e.cfg.Views...)
	if e.cfg.LayoutsDir != "" {
		roots = append(roots, e.cfg.LayoutsDir)
	}
	roots = append(roots, e.cfg.PartialsDirs...)
	for _, root := range roots {
		if rel, ok := within(root, path); ok {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

// within returns path relative to root, if path is inside root.
func within(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
