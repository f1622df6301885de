package hbs

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/aymerick/raymond"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "impractical.co/hbs"

// Engine compiles and renders handlebars templates, their layouts, and their
// partials. An Engine must be created with New; its empty value is not
// usable.
//
// It can safely be used by multiple goroutines.
type Engine struct {
	cfg            Config
	source         Source
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer

	cache    *templateCache
	partials *partialSet

	helpersMu    sync.RWMutex
	helpers      map[string]any
	asyncHelpers map[string]*asyncHelper
	templateData map[string]any

	defaultLayoutMu sync.Mutex
	defaultLayout   []*compiled
}

// New returns an Engine configured by opts.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		source:       LocalSource{},
		cache:        newTemplateCache(),
		partials:     newPartialSet(),
		helpers:      map[string]any{},
		asyncHelpers: map[string]*asyncHelper{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(e)
	}
	e.cfg.setDefaults()
	if e.cfg.ContentHelperName == e.cfg.BlockHelperName {
		return nil, fmt.Errorf("content helper and block helper can't share the name %q", e.cfg.BlockHelperName)
	}
	if e.tracerProvider == nil {
		e.tracerProvider = otel.GetTracerProvider()
	}
	e.tracer = e.tracerProvider.Tracer(tracerName)
	return e, nil
}

// Config returns the settings the Engine is using.
func (e *Engine) Config() Config {
	cfg := e.cfg
	cfg.Views = append([]string(nil), e.cfg.Views...)
	cfg.PartialsDirs = append([]string(nil), e.cfg.PartialsDirs...)
	return cfg
}

func (e *Engine) reservedName(name string) bool {
	return name == e.cfg.ContentHelperName || name == e.cfg.BlockHelperName
}

// RegisterHelper makes a synchronous helper available to templates under
// name. helper must be a function in the shape the raymond package expects:
// it takes the helper's arguments, optionally followed by a
// *raymond.Options, and returns a single value.
func (e *Engine) RegisterHelper(name string, helper any) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("helper name is required")
	}
	if e.reservedName(name) {
		return fmt.Errorf("helper name %q is reserved", name)
	}
	if err := validateHelper(name, helper); err != nil {
		return err
	}
	e.helpersMu.Lock()
	defer e.helpersMu.Unlock()
	delete(e.asyncHelpers, name)
	e.helpers[name] = helper
	return nil
}

// RegisterAsyncHelper makes an async helper available to templates under
// name. See AsyncHelperFunc for how async helpers report their results.
func (e *Engine) RegisterAsyncHelper(name string, fn AsyncHelperFunc, opts ...HelperOption) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("helper name is required")
	}
	if fn == nil {
		return fmt.Errorf("helper %q has no function", name)
	}
	if e.reservedName(name) {
		return fmt.Errorf("helper name %q is reserved", name)
	}
	helper := &asyncHelper{name: name, fn: fn}
	for _, opt := range opts {
		opt(helper)
	}
	e.helpersMu.Lock()
	defer e.helpersMu.Unlock()
	delete(e.helpers, name)
	e.asyncHelpers[name] = helper
	return nil
}

// SetTemplateData replaces the private data available to every template as
// @-variables, so {"siteName": "x"} is {{@siteName}}.
func (e *Engine) SetTemplateData(data map[string]any) {
	e.helpersMu.Lock()
	defer e.helpersMu.Unlock()
	e.templateData = maps.Clone(data)
}

// validateHelper lets the template engine check that helper has a shape it
// can call, turning its panic into an error.
func validateHelper(name string, helper any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid helper %q: %v", name, r)
		}
	}()
	tpl, err := raymond.Parse(" ")
	if err != nil {
		return fmt.Errorf("error validating helper %q: %w", name, err)
	}
	tpl.RegisterHelper(name, helper)
	return nil
}

// Load scans the partial directories and compiles the default layout, so the
// first render doesn't pay for them. Renders do the same work on their own
// when it's needed.
func (e *Engine) Load(ctx context.Context) error {
	if err := e.ensurePartials(ctx, false); err != nil {
		return err
	}
	_, err := e.defaultLayoutStack(ctx, settings{cache: true, views: e.cfg.Views})
	return err
}

// defaultLayoutStack returns the stack for the configured default layout,
// compiling it the first time, or every time when caching is off.
func (e *Engine) defaultLayoutStack(ctx context.Context, s settings) ([]*compiled, error) {
	if e.cfg.DefaultLayout == "" {
		return nil, nil
	}
	if s.cache {
		e.defaultLayoutMu.Lock()
		stack := e.defaultLayout
		e.defaultLayoutMu.Unlock()
		if stack != nil {
			return stack, nil
		}
	}
	path, err := e.layoutPath(ctx, e.cfg.DefaultLayout, "", settings{cache: s.cache, views: e.cfg.Views})
	if err != nil {
		return nil, err
	}
	stack, err := e.layoutStack(ctx, path, s, nil)
	if err != nil {
		return nil, fmt.Errorf("error loading default layout: %w", err)
	}
	if s.cache {
		e.defaultLayoutMu.Lock()
		e.defaultLayout = stack
		e.defaultLayoutMu.Unlock()
	}
	return stack, nil
}
