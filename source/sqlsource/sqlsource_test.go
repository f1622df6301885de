package sqlsource_test

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"impractical.co/hbs"
	"impractical.co/hbs/source/sqlsource"
)

func newStore(t *testing.T) *sqlsource.Store {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("error opening database: %s", err)
	}
	// every connection to :memory: is its own database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})

	store, err := sqlsource.New(db)
	if err != nil {
		t.Fatalf("error creating store: %s", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("error migrating: %s", err)
	}
	return store
}

func TestStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	for path, body := range map[string]string{
		"/views/index.hbs":          "index",
		"/views/partials/a.hbs":     "a",
		"/views/partials/b/c.hbs":   "c",
		"/views/partialsX/nope.hbs": "nope",
	} {
		if err := store.Put(ctx, path, body); err != nil {
			t.Fatalf("error storing %q: %s", path, err)
		}
	}
	if err := store.Put(ctx, "/views/index.hbs", "updated"); err != nil {
		t.Fatalf("error replacing template: %s", err)
	}

	body, err := store.ReadFile(ctx, "/views/index.hbs")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(body) != "updated" {
		t.Errorf("expected %q, got %q", "updated", body)
	}

	_, err = store.ReadFile(ctx, "/views/missing.hbs")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected %v, got %v", fs.ErrNotExist, err)
	}

	ok, err := store.Exists(ctx, "/views/partials/a.hbs")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !ok {
		t.Error("expected /views/partials/a.hbs to exist")
	}

	listed, err := store.List(ctx, "/views/partials")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if diff := cmp.Diff([]string{"/views/partials/a.hbs", "/views/partials/b/c.hbs"}, listed); diff != "" {
		t.Errorf("unexpected listing (-wanted, +got): %s", diff)
	}

	if err := store.Delete(ctx, "/views/partials/a.hbs"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	ok, err = store.Exists(ctx, "/views/partials/a.hbs")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if ok {
		t.Error("expected /views/partials/a.hbs to be deleted")
	}
}

func TestStoreInvalidTable(t *testing.T) {
	t.Parallel()

	if _, err := sqlsource.New(nil, sqlsource.WithTable("templates; DROP TABLE users")); err == nil {
		t.Error("expected an error for an invalid table name, got nil")
	}
}

func TestStoreRender(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	imported, err := store.Import(ctx, hbs.FSSource{FS: fstest.MapFS{
		"views/index.hbs":          {Data: []byte("{{!< main}}{{> hello}}")},
		"views/layouts/main.hbs":   {Data: []byte("<main>{{{body}}}</main>")},
		"views/partials/hello.hbs": {Data: []byte("Hello {{name}}")},
	}}, "/views")
	if err != nil {
		t.Fatalf("error importing: %s", err)
	}
	if imported != 3 {
		t.Errorf("expected 3 templates imported, got %d", imported)
	}

	engine, err := hbs.New(
		hbs.WithViews("/views"),
		hbs.WithLayoutsDir("/views/layouts"),
		hbs.WithPartialsDir("/views/partials"),
		hbs.WithSource(store),
	)
	if err != nil {
		t.Fatalf("error creating engine: %s", err)
	}

	got, err := engine.Render(ctx, "index", hbs.RenderOptions{
		Locals: map[string]any{"name": "SQL"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if diff := cmp.Diff("<main>Hello SQL</main>", got); diff != "" {
		t.Errorf("unexpected output (-wanted, +got): %s", diff)
	}
}
