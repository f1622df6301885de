package hbs

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"strings"
	"time"

	"github.com/aymerick/raymond"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"impractical.co/hbs/beautify"
)

// bodyKey is the local a layout finds the output of the template it wraps
// in.
const bodyKey = "body"

// RenderOptions control a single call to Render.
type RenderOptions struct {
	// Cache keeps compiled templates, layouts, and partials around for the
	// next render. Without it, every file the render needs is read and
	// compiled again, so edits show up without a restart.
	Cache bool

	// Layout overrides the default layout for this render. nil leaves the
	// default in place; NoLayout() renders the page on its own, ignoring
	// any layout the page declares too. A layout declared in the page
	// takes precedence over any other value.
	Layout *string

	// Views overrides the Engine's views directories for this render.
	Views []string

	// Locals are the values the page and its layouts are rendered with.
	Locals map[string]any
}

// Layout returns a RenderOptions.Layout value for the layout called name.
func Layout(name string) *string {
	return &name
}

// NoLayout returns a RenderOptions.Layout value that turns layouts off.
func NoLayout() *string {
	return Layout("")
}

type resolvedValue struct {
	raw     string
	escaped string
}

// renderState is everything that belongs to a single call to Render: the
// helpers bound to it, its content blocks, its current async wave, and the
// values resolved by earlier waves.
type renderState struct {
	ctx      context.Context
	engine   *Engine
	wave     wave
	blocks   *blocks
	resolved map[Token]resolvedValue
	helpers  map[string]any
	partials map[string]*raymond.Template
	data     map[string]any
}

func (e *Engine) newRenderState(ctx context.Context) *renderState {
	r := &renderState{
		ctx:      ctx,
		engine:   e,
		blocks:   newBlocks(),
		resolved: map[Token]resolvedValue{},
		partials: e.partials.all(),
	}

	e.helpersMu.RLock()
	r.helpers = make(map[string]any, len(e.helpers)+len(e.asyncHelpers)+2)
	maps.Copy(r.helpers, e.helpers)
	for name, helper := range e.asyncHelpers {
		r.helpers[name] = helper.bind(r)
	}
	r.data = e.templateData
	e.helpersMu.RUnlock()

	r.helpers[e.cfg.ContentHelperName] = func(name string, options *raymond.Options) string {
		return r.blocks.push(name, options)
	}
	r.helpers[e.cfg.BlockHelperName] = func(name string) raymond.SafeString {
		return r.blocks.take(name)
	}
	return r
}

// Render renders the template at path with opts, inside its layouts, and
// returns the result. Relative paths are resolved against the views
// directories. Render only returns once every async helper the page and its
// layouts used has finished; if any of them fail, so does Render.
func (e *Engine) Render(ctx context.Context, path string, opts RenderOptions) (string, error) {
	renderID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "hbs.Render", trace.WithAttributes(
		attribute.String("hbs.path", path),
		attribute.Bool("hbs.cache", opts.Cache),
		attribute.String("hbs.render_id", renderID),
	))
	defer span.End()

	start := time.Now()
	out, err := e.render(ctx, path, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger(ctx).ErrorContext(ctx, "error rendering template", "path", path, "render_id", renderID, "error", err)
		return "", err
	}
	logger(ctx).DebugContext(ctx, "rendered template", "path", path, "render_id", renderID, "duration", time.Since(start))
	return out, nil
}

// RenderTo renders like Render, writing the result to out.
func (e *Engine) RenderTo(ctx context.Context, out io.Writer, path string, opts RenderOptions) error {
	res, err := e.Render(ctx, path, opts)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, res)
	if err != nil {
		return fmt.Errorf("error writing rendered %q: %w", path, err)
	}
	return nil
}

func (e *Engine) render(ctx context.Context, path string, opts RenderOptions) (string, error) {
	s := settings{cache: opts.Cache, views: opts.Views}
	if len(s.views) < 1 {
		s.views = e.cfg.Views
	}

	defaultStack, err := e.defaultLayoutStack(ctx, s)
	if err != nil {
		return "", err
	}
	if err := e.ensurePartials(ctx, s.cache); err != nil {
		return "", err
	}

	path, err = e.pagePath(ctx, path, s)
	if err != nil {
		return "", err
	}
	page, err := e.load(ctx, path, s.cache)
	if err != nil {
		return "", err
	}
	stack, err := e.pageLayouts(ctx, page, opts.Layout, defaultStack, s)
	if err != nil {
		return "", err
	}

	r := e.newRenderState(ctx)
	out, err := r.execute(page, opts.Locals)
	if err != nil {
		return "", err
	}
	for i := len(stack) - 1; i >= 0; i-- {
		locals := maps.Clone(opts.Locals)
		if locals == nil {
			locals = map[string]any{}
		}
		locals[bodyKey] = out
		out, err = r.execute(stack[i], locals)
		if err != nil {
			return "", err
		}
	}
	if HasTokens(out) {
		logger(ctx).WarnContext(ctx, "rendered output contains placeholder prefix", "path", path)
	}

	if e.cfg.Beautify {
		out, err = beautify.HTML(out)
		if err != nil {
			return "", fmt.Errorf("error beautifying %q: %w", path, err)
		}
	}
	return out, nil
}

// pagePath resolves the path of the page being rendered. Absolute paths are
// used as they are; anything else is looked up in the views directories.
func (e *Engine) pagePath(ctx context.Context, path string, s settings) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if filepath.Ext(path) == "" {
		path += e.cfg.Extension
	}
	return e.viewPath(ctx, path, s.views, "")
}

// pageLayouts picks the layout stack for page. An explicitly empty layout
// turns layouts off entirely. Otherwise, a layout the page declares wins,
// then the layout asked for in the render options, then the default layout.
func (e *Engine) pageLayouts(ctx context.Context, page *compiled, explicit *string, defaultStack []*compiled, s settings) ([]*compiled, error) {
	if explicit != nil && *explicit == "" {
		return nil, nil
	}

	ctx, span := e.tracer.Start(ctx, "hbs.ResolveLayout", trace.WithAttributes(
		attribute.String("hbs.path", page.path),
	))
	defer span.End()

	stack, err := e.resolveParents(ctx, page, s, nil)
	if err == nil && len(stack) < 1 && explicit != nil {
		var path string
		path, err = e.layoutPath(ctx, *explicit, page.path, s)
		if err == nil {
			stack, err = e.layoutStack(ctx, path, s, []string{page.path})
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(stack) < 1 && explicit == nil {
		stack = defaultStack
	}
	span.SetAttributes(attribute.Int("hbs.layouts", len(stack)))
	return stack, nil
}

// execute runs tmpl with locals, waits for the async helpers it used, and
// returns its output with their placeholders replaced.
func (r *renderState) execute(tmpl *compiled, locals map[string]any) (string, error) {
	tpl := tmpl.tpl.Clone()
	for name, helper := range r.helpers {
		tpl.RegisterHelper(name, helper)
	}
	for name, partial := range r.partials {
		tpl.RegisterPartialTemplate(name, partial)
	}
	if locals == nil {
		locals = map[string]any{}
	}

	var raw string
	var err error
	if len(r.data) > 0 {
		frame := raymond.NewDataFrame()
		for key, val := range r.data {
			frame.Set(key, val)
		}
		raw, err = tpl.ExecWith(locals, frame)
	} else {
		raw, err = tpl.Exec(locals)
	}
	if err != nil {
		r.wave.discard()
		return "", fmt.Errorf("error executing template %q: %w", r.engine.displayPath(tmpl.path), err)
	}

	res, err := r.settle(tmpl)
	if err != nil {
		return "", fmt.Errorf("error resolving async helpers in %q: %w", r.engine.displayPath(tmpl.path), err)
	}
	r.resolve(res)
	return r.substitute(raw), nil
}

func (r *renderState) settle(tmpl *compiled) (Resolution, error) {
	ctx, span := r.engine.tracer.Start(r.ctx, "hbs.Wave", trace.WithAttributes(
		attribute.String("hbs.path", tmpl.path),
	))
	defer span.End()

	res, err := r.wave.settle(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Resolution{}, err
	}
	span.SetAttributes(attribute.Int("hbs.async_helpers", len(res.Tokens)))
	return res, nil
}

// resolve records the values of a settled wave. Values registered later can
// appear inside values registered earlier, when a helper renders a block
// containing other async helpers, so they're resolved latest first.
func (r *renderState) resolve(res Resolution) {
	for i := len(res.Tokens) - 1; i >= 0; i-- {
		token := res.Tokens[i]
		value, ok := res.Values[token]
		if !ok {
			continue
		}
		text := r.substitute(raymond.Str(value))
		escaped := text
		if _, safe := value.(raymond.SafeString); !safe {
			escaped = raymond.Escape(text)
		}
		r.resolved[token] = resolvedValue{raw: text, escaped: escaped}
	}
}

// substitute replaces every resolved placeholder in text, in both its raw
// and its HTML-escaped spelling.
func (r *renderState) substitute(text string) string {
	if len(r.resolved) < 1 || !HasTokens(text) {
		return text
	}
	pairs := make([]string, 0, len(r.resolved)*4)
	for token, val := range r.resolved {
		pairs = append(pairs, string(token), val.raw, token.Escaped(), val.escaped)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
