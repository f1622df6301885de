package hbs

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// layoutPattern matches the layout directive, {{!< path }}.
var layoutPattern = regexp.MustCompile(`{{!<\s+([A-Za-z0-9\._\-/]+)\s*}}`)

// parseLayoutDirective returns the layout declared in source, if any.
func parseLayoutDirective(source string) (string, bool) {
	matches := layoutPattern.FindStringSubmatch(source)
	if matches == nil {
		return "", false
	}
	return matches[1], true
}

// settings are the per-render values that affect how templates are found and
// whether they're cached.
type settings struct {
	cache bool
	views []string
}

// layoutPath resolves a layout name, as written in a directive or passed to
// Render, to an absolute path. Names starting with ./ or ../ are relative to
// the directory of the template at from, or to the first views directory
// when there's no template to be relative to; other names are relative to the
// layouts directory if one is configured, or to the views otherwise.
//
// With RestrictLayoutsTo set, nothing outside it is ever looked up.
func (e *Engine) layoutPath(ctx context.Context, name, from string, s settings) (string, error) {
	if filepath.Ext(name) == "" {
		name += e.cfg.Extension
	}
	var resolved string
	switch {
	case filepath.IsAbs(name):
		resolved = filepath.Clean(name)
	case strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../"):
		base := filepath.Dir(from)
		if from == "" {
			if len(s.views) < 1 {
				return "", fmt.Errorf("error resolving layout %q: %w", name, ErrNoViews)
			}
			base = s.views[0]
		}
		resolved = filepath.Join(base, name)
	case e.cfg.LayoutsDir != "":
		resolved = filepath.Join(e.cfg.LayoutsDir, name)
	default:
		var err error
		resolved, err = e.viewPath(ctx, name, s.views, e.cfg.RestrictLayoutsTo)
		if err != nil {
			return "", fmt.Errorf("error resolving layout %q: %w", name, err)
		}
	}
	if e.cfg.RestrictLayoutsTo != "" {
		if _, ok := within(e.cfg.RestrictLayoutsTo, resolved); !ok {
			return "", fmt.Errorf("error resolving layout %q to %q: %w", name, resolved, ErrLayoutRestricted)
		}
	}
	return resolved, nil
}

// viewPath resolves name against the views directories, returning the path
// in the first one that has it. If none do, the path in the first directory
// is returned, so the caller gets a not-found error for it. Candidates
// outside restrictTo, when it's set, are skipped without being looked up.
func (e *Engine) viewPath(ctx context.Context, name string, views []string, restrictTo string) (string, error) {
	if len(views) < 1 {
		return "", ErrNoViews
	}
	for _, dir := range views {
		candidate := filepath.Join(dir, name)
		if restrictTo != "" {
			if _, ok := within(restrictTo, candidate); !ok {
				continue
			}
		}
		ok, err := e.source.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("error checking %q: %w", candidate, err)
		}
		if ok {
			return candidate, nil
		}
	}
	return filepath.Join(views[0], name), nil
}

// resolveParents returns the stack of layouts the template declares it's
// rendered in, outermost first. A template without a directive has an empty
// stack. visiting holds the paths already on the chain being resolved.
func (e *Engine) resolveParents(ctx context.Context, tmpl *compiled, s settings, visiting []string) ([]*compiled, error) {
	if s.cache {
		if parents, ok := tmpl.cachedParents(); ok {
			return parents, nil
		}
	}
	declared, ok := parseLayoutDirective(tmpl.source)
	if !ok {
		if s.cache {
			tmpl.setParents(nil)
		}
		return nil, nil
	}
	path, err := e.layoutPath(ctx, declared, tmpl.path, s)
	if err != nil {
		return nil, err
	}
	stack, err := e.layoutStack(ctx, path, s, append(visiting, tmpl.path))
	if err != nil {
		return nil, err
	}
	if s.cache {
		tmpl.setParents(stack)
	}
	return stack, nil
}

// layoutStack returns the stack for rendering inside the layout at path:
// the layouts it declares, followed by the layout itself.
func (e *Engine) layoutStack(ctx context.Context, path string, s settings, visiting []string) ([]*compiled, error) {
	if slices.Contains(visiting, path) {
		chain := append(slices.Clone(visiting), path)
		return nil, fmt.Errorf("%w: %s", ErrLayoutCycle, strings.Join(chain, " -> "))
	}
	layout, err := e.load(ctx, path, s.cache)
	if err != nil {
		return nil, err
	}
	parents, err := e.resolveParents(ctx, layout, s, visiting)
	if err != nil {
		return nil, err
	}
	stack := make([]*compiled, 0, len(parents)+1)
	stack = append(stack, parents...)
	stack = append(stack, layout)
	return stack, nil
}
