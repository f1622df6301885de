package hbs

import (
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

const (
	defaultExtension         = ".hbs"
	defaultContentHelperName = "contentFor"
	defaultBlockHelperName   = "block"
)

// Config holds the settings of an Engine. It can be built in code, loaded
// from a YAML file with LoadConfig, or both: options passed to New after
// WithConfig override the values in the Config.
type Config struct {
	// Views are the directories page templates live in. Layouts that
	// aren't relative to the declaring template, and aren't found in
	// LayoutsDir, are resolved against them.
	Views []string `yaml:"views"`

	// LayoutsDir is the directory layouts are resolved against, unless
	// they're declared with a ./ or ../ path.
	LayoutsDir string `yaml:"layouts_dir"`

	// DefaultLayout is the layout used for pages that don't declare one
	// and aren't rendered with an explicit layout.
	DefaultLayout string `yaml:"default_layout"`

	// PartialsDirs are scanned recursively for partials. A partial's name
	// is its path relative to the directory, without the extension.
	PartialsDirs []string `yaml:"partials_dirs"`

	// Extension is appended to template paths that don't have one.
	// Defaults to ".hbs".
	Extension string `yaml:"extension"`

	// RestrictLayoutsTo, if set, rejects any layout that resolves to a
	// path outside of it.
	RestrictLayoutsTo string `yaml:"restrict_layouts_to"`

	// ContentHelperName is the name of the helper pages use to push
	// content into a block. Defaults to "contentFor".
	ContentHelperName string `yaml:"content_helper_name"`

	// BlockHelperName is the name of the helper layouts use to render a
	// block. Defaults to "block".
	BlockHelperName string `yaml:"block_helper_name"`

	// Beautify pretty-prints the rendered HTML.
	Beautify bool `yaml:"beautify"`
}

// LoadConfig reads a Config from the YAML file at path.
func LoadConfig(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config %q: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	c.Extension = normalizeExtension(c.Extension)
	if c.ContentHelperName == "" {
		c.ContentHelperName = defaultContentHelperName
	}
	if c.BlockHelperName == "" {
		c.BlockHelperName = defaultBlockHelperName
	}
}

func normalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return defaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Option configures an Engine when it's created.
type Option func(*Engine)

// WithConfig replaces the Engine's settings with cfg.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithViews sets the directories page templates are resolved against.
func WithViews(dirs ...string) Option {
	return func(e *Engine) {
		e.cfg.Views = append([]string(nil), dirs...)
	}
}

// WithLayoutsDir sets the directory layouts are resolved against.
func WithLayoutsDir(dir string) Option {
	return func(e *Engine) {
		e.cfg.LayoutsDir = strings.TrimSpace(dir)
	}
}

// WithDefaultLayout sets the layout used when a page doesn't ask for one.
func WithDefaultLayout(layout string) Option {
	return func(e *Engine) {
		e.cfg.DefaultLayout = strings.TrimSpace(layout)
	}
}

// WithPartialsDir adds directories to scan for partials.
func WithPartialsDir(dirs ...string) Option {
	return func(e *Engine) {
		e.cfg.PartialsDirs = append(e.cfg.PartialsDirs, dirs...)
	}
}

// WithExtension sets the extension appended to template paths without one.
func WithExtension(ext string) Option {
	return func(e *Engine) {
		e.cfg.Extension = ext
	}
}

// WithRestrictLayoutsTo rejects layouts resolving outside of dir.
func WithRestrictLayoutsTo(dir string) Option {
	return func(e *Engine) {
		e.cfg.RestrictLayoutsTo = strings.TrimSpace(dir)
	}
}

// WithContentHelperName renames the contentFor helper.
func WithContentHelperName(name string) Option {
	return func(e *Engine) {
		e.cfg.ContentHelperName = strings.TrimSpace(name)
	}
}

// WithBlockHelperName renames the block helper.
func WithBlockHelperName(name string) Option {
	return func(e *Engine) {
		e.cfg.BlockHelperName = strings.TrimSpace(name)
	}
}

// WithBeautify turns pretty-printing of the rendered HTML on or off.
func WithBeautify(on bool) Option {
	return func(e *Engine) {
		e.cfg.Beautify = on
	}
}

// WithSource sets where the Engine reads templates from. Defaults to the
// local filesystem.
func WithSource(src Source) Option {
	return func(e *Engine) {
		if src != nil {
			e.source = src
		}
	}
}

// WithTracerProvider sets the provider the Engine gets its tracer from.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracerProvider = tp
		}
	}
}
