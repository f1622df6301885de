package hbs

import (
	"errors"
	"fmt"
)

var (
	// ErrLayoutCycle is returned when a layout declares itself as its own
	// parent, directly or through other layouts. It always indicates a
	// misconfiguration of the templates.
	ErrLayoutCycle = errors.New("layout cycle detected")

	// ErrLayoutRestricted is returned when a layout resolves to a path
	// outside the directory layouts are restricted to.
	ErrLayoutRestricted = errors.New("layout outside of allowed directory")

	// ErrNoViews is returned when a path needs to be resolved against the
	// views directories, but none are configured.
	ErrNoViews = errors.New("no views directory configured")

	// ErrHelperExpired is returned when an async helper tries to render its
	// block after returning control to the template engine.
	ErrHelperExpired = errors.New("helper block rendered after helper returned")
)

// CompileError is returned when a template, layout, or partial can't be
// compiled. Its message is prefixed with the path of the file that failed,
// relative to the views directory when possible.
type CompileError struct {
	// Path is the path of the file as it's displayed in the error message.
	Path string

	// Err is the error the template engine returned.
	Err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Path, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// AsyncHelperError is returned when an async helper reports an error or
// panics.
type AsyncHelperError struct {
	// Helper is the name the helper is registered under.
	Helper string

	// Err is the error reported by the helper. For helpers that panicked,
	// it's a description of the panic value.
	Err error
}

func (e *AsyncHelperError) Error() string {
	return fmt.Sprintf("async helper %q: %s", e.Helper, e.Err)
}

func (e *AsyncHelperError) Unwrap() error {
	return e.Err
}
