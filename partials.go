package hbs

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aymerick/raymond"
)

// partialSet holds the partials available to templates: the ones found by
// scanning the partial directories, and the ones registered in code.
// Registered partials win over scanned ones with the same name.
//
// It can safely be used by multiple goroutines.
type partialSet struct {
	mu         sync.RWMutex
	scanned    map[string]*raymond.Template
	registered map[string]*raymond.Template
	complete   bool
}

func newPartialSet() *partialSet {
	return &partialSet{
		scanned:    map[string]*raymond.Template{},
		registered: map[string]*raymond.Template{},
	}
}

func (p *partialSet) all() map[string]*raymond.Template {
	p.mu.RLock()
	defer p.mu.RUnlock()
	res := make(map[string]*raymond.Template, len(p.scanned)+len(p.registered))
	maps.Copy(res, p.scanned)
	maps.Copy(res, p.registered)
	return res
}

func (p *partialSet) isComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.complete
}

func (p *partialSet) replaceScanned(scanned map[string]*raymond.Template) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scanned = scanned
	p.complete = true
}

func (p *partialSet) register(name string, tpl *raymond.Template) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered[name] = tpl
}

// RegisterPartial compiles source and makes it available to templates as a
// partial called name. Partials registered this way are kept when the
// partial directories are scanned again.
func (e *Engine) RegisterPartial(name, source string) error {
	tmpl, err := e.compile(name, source)
	if err != nil {
		return err
	}
	e.partials.register(name, tmpl.tpl)
	return nil
}

// ensurePartials scans the partial directories if they haven't been yet, or
// on every call when caching is off, so edited partials are picked up.
func (e *Engine) ensurePartials(ctx context.Context, useCache bool) error {
	if len(e.cfg.PartialsDirs) < 1 {
		return nil
	}
	if useCache && e.partials.isComplete() {
		return nil
	}
	return e.scanPartials(ctx)
}

// scanPartials reads and compiles every file in the partial directories. A
// directory that can't be listed is an error; a file that can't be read is
// logged and skipped.
func (e *Engine) scanPartials(ctx context.Context) error {
	scanned := map[string]*raymond.Template{}
	for _, dir := range e.cfg.PartialsDirs {
		paths, err := e.source.List(ctx, dir)
		if err != nil {
			return fmt.Errorf("error listing partials in %q: %w", dir, err)
		}
		for _, path := range paths {
			contents, err := e.source.ReadFile(ctx, path)
			if err != nil {
				logger(ctx).WarnContext(ctx, "skipping unreadable partial", "path", path, "error", err)
				continue
			}
			tmpl, err := e.compile(path, string(contents))
			if err != nil {
				return err
			}
			scanned[partialName(dir, path)] = tmpl.tpl
		}
	}
	e.partials.replaceScanned(scanned)
	return nil
}

// partialName names a partial after its path relative to the directory it
// was found in, without the extension: dir/forms/input.hbs is forms/input.
func partialName(dir, path string) string {
	rel, ok := within(dir, path)
	if !ok {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}
