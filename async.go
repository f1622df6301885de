package hbs

import (
	"context"
	"reflect"
	"sync/atomic"

	"github.com/aymerick/raymond"
)

var (
	anyType     = reflect.TypeOf((*any)(nil)).Elem()
	optionsType = reflect.TypeOf((*raymond.Options)(nil))
)

// DoneFunc is how an AsyncHelperFunc reports its result. It may be called
// from any goroutine, but only the first call counts. A non-nil err fails the
// whole render.
type DoneFunc func(value any, err error)

// AsyncHelperFunc is a helper that produces its output asynchronously. It's
// called synchronously while the template executes and must not block: it
// should start its work, arrange for done to be called when the work
// finishes, and return.
//
// The value passed to done is written into the output in place of the helper
// call. It's HTML-escaped when the helper was used in a {{double}} mustache,
// unless it's a raymond.SafeString.
type AsyncHelperFunc func(opts *HelperOptions, done DoneFunc)

// HelperOptions describes a single invocation of an async helper.
type HelperOptions struct {
	// Name is the name the helper is registered under.
	Name string

	// Params are the positional arguments the helper was called with.
	Params []any

	// Hash holds the named arguments the helper was called with.
	Hash map[string]any

	// This is the template context the helper was called in.
	This any

	ctx     context.Context
	options *raymond.Options
	settle  SettleFunc
	expired atomic.Bool
}

// Context returns the context of the render the helper was invoked in.
func (o *HelperOptions) Context() context.Context {
	return o.ctx
}

// Param returns the positional argument at pos, or nil if there isn't one.
func (o *HelperOptions) Param(pos int) any {
	if pos < 0 || pos >= len(o.Params) {
		return nil
	}
	return o.Params[pos]
}

// RenderBlock renders the block the helper was called with, using this as
// the context, or the helper's own context if this is nil. Async helpers used
// inside the block are resolved along with the rest of the template.
//
// RenderBlock can only be called before the AsyncHelperFunc returns. Calling
// it later fails the render with ErrHelperExpired and returns an empty
// string.
func (o *HelperOptions) RenderBlock(this any) string {
	if o.expired.Load() {
		o.settle(nil, &AsyncHelperError{Helper: o.Name, Err: ErrHelperExpired})
		return ""
	}
	if this == nil {
		return o.options.Fn()
	}
	return o.options.FnWith(this)
}

// RenderElse renders the {{else}} part of the block the helper was called
// with, in the helper's own context. Like RenderBlock, it can only be called
// before the AsyncHelperFunc returns.
func (o *HelperOptions) RenderElse() string {
	if o.expired.Load() {
		o.settle(nil, &AsyncHelperError{Helper: o.Name, Err: ErrHelperExpired})
		return ""
	}
	return o.options.Inverse()
}

// HelperOption configures an async helper when it's registered.
type HelperOption func(*asyncHelper)

// Arity sets the number of positional arguments the helper is called with in
// templates. The template engine rejects calls with a different number of
// arguments. It defaults to 0.
func Arity(n int) HelperOption {
	return func(h *asyncHelper) {
		if n >= 0 {
			h.arity = n
		}
	}
}

type asyncHelper struct {
	name  string
	arity int
	fn    AsyncHelperFunc
}

// bind returns a synchronous helper function, in the shape the template
// engine expects, that registers the helper's work on the render's current
// wave and returns the placeholder token.
func (h *asyncHelper) bind(r *renderState) any {
	in := make([]reflect.Type, 0, h.arity+1)
	for range h.arity {
		in = append(in, anyType)
	}
	in = append(in, optionsType)
	fnType := reflect.FuncOf(in, []reflect.Type{anyType}, false)

	return reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		options, _ := args[len(args)-1].Interface().(*raymond.Options)
		params := make([]any, 0, len(args)-1)
		for _, arg := range args[:len(args)-1] {
			params = append(params, arg.Interface())
		}
		token := h.invoke(r, params, options)

		out := reflect.New(anyType).Elem()
		out.Set(reflect.ValueOf(string(token)))
		return []reflect.Value{out}
	}).Interface()
}

func (h *asyncHelper) invoke(r *renderState, params []any, options *raymond.Options) Token {
	opts := &HelperOptions{
		Name:    h.name,
		Params:  params,
		Hash:    options.Hash(),
		This:    options.Ctx(),
		ctx:     r.ctx,
		options: options,
	}
	return r.wave.register(h.name, func(settle SettleFunc) {
		opts.settle = settle
		defer opts.expired.Store(true)
		h.fn(opts, func(value any, err error) {
			if err != nil {
				err = &AsyncHelperError{Helper: h.name, Err: err}
			}
			settle(value, err)
		})
	})
}
