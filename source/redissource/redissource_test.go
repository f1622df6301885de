package redissource_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"impractical.co/hbs"
	"impractical.co/hbs/source/redissource"
)

// newStore returns a Store on a hash only this test uses, in the Redis at
// REDIS_URL. Tests are skipped without one.
func newStore(t *testing.T) *redissource.Store {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("error parsing REDIS_URL: %s", err)
	}
	rdb := redis.NewClient(opts)
	key := "hbs:test:" + uuid.NewString()
	t.Cleanup(func() {
		rdb.Del(context.Background(), key) //nolint:errcheck
		rdb.Close()                        //nolint:errcheck
	})
	return redissource.New(rdb, redissource.WithKey(key))
}

func TestStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	for path, body := range map[string]string{
		"/views/index.hbs":          "{{!< main}}{{> hello}}",
		"/views/layouts/main.hbs":   "<main>{{{body}}}</main>",
		"/views/partials/hello.hbs": "Hello {{name}}",
	} {
		if err := store.Put(ctx, path, body); err != nil {
			t.Fatalf("error storing %q: %s", path, err)
		}
	}

	listed, err := store.List(ctx, "/views/partials")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if diff := cmp.Diff([]string{"/views/partials/hello.hbs"}, listed); diff != "" {
		t.Errorf("unexpected listing (-wanted, +got): %s", diff)
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
		Locals: map[string]any{"name": "Redis"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if diff := cmp.Diff("<main>Hello Redis</main>", got); diff != "" {
		t.Errorf("unexpected output (-wanted, +got): %s", diff)
	}

	if err := store.Delete(ctx, "/views/index.hbs"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	_, err = store.ReadFile(ctx, "/views/index.hbs")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected %v, got %v", fs.ErrNotExist, err)
	}
	ok, err := store.Exists(ctx, "/views/index.hbs")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if ok {
		t.Error("expected deleted template not to exist")
	}
}
