// Command hbsrender renders a single handlebars view, with its layouts and
// partials, to stdout or a file.
//
//	hbsrender -views ./views -layouts ./views/layouts -locals data.yaml index
//
// Templates can come from a directory, a SQLite or PostgreSQL table, or a
// Redis hash; see -source.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/natefinch/atomic"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"impractical.co/hbs"
	"impractical.co/hbs/source/redissource"
	"impractical.co/hbs/source/sqlsource"
)

type options struct {
	configPath string
	views      string
	layoutsDir string
	partials   string
	layout     string
	noLayout   bool
	localsPath string
	outPath    string
	source     string
	dsn        string
	importDir  string
	beautify   bool
	noCache    bool
	timeout    time.Duration
	logLevel   string
	template   string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	flags := flag.NewFlagSet("hbsrender", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.configPath, "config", "", "YAML engine config file")
	flags.StringVar(&opts.views, "views", "", "comma-separated views directories")
	flags.StringVar(&opts.layoutsDir, "layouts", "", "layouts directory")
	flags.StringVar(&opts.partials, "partials", "", "comma-separated partials directories")
	flags.StringVar(&opts.layout, "layout", "", "layout to render the view in, unless it declares one")
	flags.BoolVar(&opts.noLayout, "no-layout", false, "render the view without any layout")
	flags.StringVar(&opts.localsPath, "locals", "", "YAML file of values to render the view with")
	flags.StringVar(&opts.outPath, "out", "", "file to write the output to, atomically; defaults to stdout")
	flags.StringVar(&opts.source, "source", "dir", "where templates are read from: dir, sqlite, postgres, or redis")
	flags.StringVar(&opts.dsn, "dsn", "", "database file, connection string, or redis:// URL for -source")
	flags.StringVar(&opts.importDir, "import", "", "directory to copy into the sqlite or postgres table before rendering")
	flags.BoolVar(&opts.beautify, "beautify", false, "pretty-print the rendered HTML")
	flags.BoolVar(&opts.noCache, "no-cache", false, "compile every template on every use")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "how long to wait for the render")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn, or error")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	if flags.NArg() != 1 {
		return options{}, errors.New("expected exactly one template to render")
	}
	opts.template = flags.Arg(0)
	return opts, nil
}

func splitList(s string) []string {
	var res []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			res = append(res, part)
		}
	}
	return res
}

func newLogger(level string, out io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl})), nil
}

// openSource returns the hbs.Source -source and -dsn describe, and a func
// releasing it.
func openSource(ctx context.Context, opts options, logger *slog.Logger) (hbs.Source, func(), error) {
	switch opts.source {
	case "", "dir":
		return hbs.LocalSource{}, func() {}, nil
	case "sqlite", "postgres":
		if opts.dsn == "" {
			return nil, nil, fmt.Errorf("-dsn is required for -source %s", opts.source)
		}
		var db *sqlx.DB
		var err error
		if opts.source == "sqlite" {
			db, err = openSQLite(opts.dsn)
		} else {
			db, err = sqlx.Connect("postgres", opts.dsn)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("error opening %s database: %w", opts.source, err)
		}
		closer := func() { db.Close() } //nolint:errcheck
		store, err := sqlsource.New(db)
		if err != nil {
			closer()
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			closer()
			return nil, nil, err
		}
		if opts.importDir != "" {
			count, err := store.Import(ctx, hbs.LocalSource{}, opts.importDir)
			if err != nil {
				closer()
				return nil, nil, err
			}
			logger.InfoContext(ctx, "imported templates", "count", count, "dir", opts.importDir)
		}
		return store, closer, nil
	case "redis":
		redisOpts, err := redis.ParseURL(opts.dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("error parsing redis URL: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close() //nolint:errcheck
			return nil, nil, fmt.Errorf("error connecting to redis: %w", err)
		}
		return redissource.New(rdb), func() { rdb.Close() }, nil //nolint:errcheck
	default:
		return nil, nil, fmt.Errorf("unknown source %q", opts.source)
	}
}

func loadLocals(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	contents, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("error reading locals %q: %w", path, err)
	}
	locals := map[string]any{}
	if err := yaml.Unmarshal(contents, &locals); err != nil {
		return nil, fmt.Errorf("error parsing locals %q: %w", path, err)
	}
	return locals, nil
}

func engineOptions(opts options, src hbs.Source) ([]hbs.Option, error) {
	var res []hbs.Option
	if opts.configPath != "" {
		cfg, err := hbs.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		res = append(res, hbs.WithConfig(cfg))
	}
	if views := splitList(opts.views); len(views) > 0 {
		res = append(res, hbs.WithViews(views...))
	}
	if opts.layoutsDir != "" {
		res = append(res, hbs.WithLayoutsDir(opts.layoutsDir))
	}
	if partials := splitList(opts.partials); len(partials) > 0 {
		res = append(res, hbs.WithPartialsDir(partials...))
	}
	if opts.beautify {
		res = append(res, hbs.WithBeautify(true))
	}
	res = append(res, hbs.WithSource(src))
	return res, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	logger, err := newLogger(opts.logLevel, stderr)
	if err != nil {
		return err
	}
	ctx = hbs.LoggingContext(ctx, logger)
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	src, closeSource, err := openSource(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	engineOpts, err := engineOptions(opts, src)
	if err != nil {
		return err
	}
	engine, err := hbs.New(engineOpts...)
	if err != nil {
		return err
	}
	locals, err := loadLocals(opts.localsPath)
	if err != nil {
		return err
	}

	renderOpts := hbs.RenderOptions{
		Cache:  !opts.noCache,
		Locals: locals,
	}
	switch {
	case opts.noLayout:
		renderOpts.Layout = hbs.NoLayout()
	case opts.layout != "":
		renderOpts.Layout = hbs.Layout(opts.layout)
	}

	start := time.Now()
	out, err := engine.Render(ctx, opts.template, renderOpts)
	if err != nil {
		return err
	}

	if opts.outPath == "" {
		_, err = io.WriteString(stdout, out)
		return err
	}
	if err := atomic.WriteFile(opts.outPath, strings.NewReader(out)); err != nil {
		return fmt.Errorf("error writing %q: %w", opts.outPath, err)
	}
	logger.InfoContext(ctx, "wrote rendered template",
		"path", opts.outPath,
		"size", humanize.Bytes(uint64(len(out))),
		"duration", time.Since(start))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "hbsrender:", err)
		os.Exit(1)
	}
}
