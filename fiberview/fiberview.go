// Package fiberview renders Fiber views with an hbs.Engine.
package fiberview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"impractical.co/hbs"
)

var _ fiber.Views = (*Views)(nil)

// Views adapts an hbs.Engine to the fiber.Views interface, so it can be
// used as the Views of a fiber.Config.
type Views struct {
	engine *hbs.Engine
	cache  bool
	ctx    context.Context
}

// Option configures Views.
type Option func(*Views)

// WithCache controls whether renders reuse compiled templates. It's on by
// default; turn it off in development to pick up template edits.
func WithCache(on bool) Option {
	return func(v *Views) {
		v.cache = on
	}
}

// WithContext sets the context renders are made with. Fiber doesn't pass
// one to its views, so this is where a logger or tracer for renders comes
// from.
func WithContext(ctx context.Context) Option {
	return func(v *Views) {
		if ctx != nil {
			v.ctx = ctx
		}
	}
}

// New returns Views rendering with engine.
func New(engine *hbs.Engine, opts ...Option) *Views {
	v := &Views{
		engine: engine,
		cache:  true,
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Load compiles the engine's partials and default layout ahead of the
// first render.
func (v *Views) Load() error {
	return v.engine.Load(v.ctx)
}

// Render renders the view called name with binding as its locals. If a
// layout is passed, it's used unless the view declares its own. An empty
// layout renders the view without one.
func (v *Views) Render(out io.Writer, name string, binding any, layout ...string) error {
	locals, err := toLocals(binding)
	if err != nil {
		return fmt.Errorf("error converting binding for %q: %w", name, err)
	}
	opts := hbs.RenderOptions{
		Cache:  v.cache,
		Locals: locals,
	}
	if len(layout) > 0 {
		opts.Layout = hbs.Layout(strings.TrimSpace(layout[0]))
	}
	return v.engine.RenderTo(v.ctx, out, name, opts)
}

// toLocals turns whatever was passed to fiber's Ctx.Render into the map
// templates are rendered with. Structs and other values go through JSON.
func toLocals(binding any) (map[string]any, error) {
	switch val := binding.(type) {
	case nil:
		return map[string]any{}, nil
	case fiber.Map:
		return map[string]any(val), nil
	case map[string]any:
		return val, nil
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		locals := map[string]any{}
		if err := json.Unmarshal(raw, &locals); err != nil {
			return nil, fmt.Errorf("binding must encode to a JSON object: %w", err)
		}
		return locals, nil
	}
}
