package fiberview_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/gofiber/fiber/v2"
	"github.com/google/go-cmp/cmp"

	"impractical.co/hbs"
	"impractical.co/hbs/fiberview"
)

type profile struct {
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
}

func newApp(t *testing.T) *fiber.App {
	t.Helper()

	templates := fstest.MapFS{
		"views/index.hbs":        {Data: []byte("<p>Hi {{name}}{{#if admin}} (admin){{/if}}, {{lookupRole}}</p>")},
		"views/bare.hbs":         {Data: []byte("{{!< fancy}}bare {{name}}")},
		"views/layouts/main.hbs": {Data: []byte("<main>{{{body}}}</main>")},
		"views/layouts/alt.hbs":  {Data: []byte("<alt>{{{body}}}</alt>")},
		"views/layouts/fancy.hbs": {
			Data: []byte("<fancy>{{{body}}}</fancy>"),
		},
	}
	engine, err := hbs.New(
		hbs.WithViews("/views"),
		hbs.WithLayoutsDir("/views/layouts"),
		hbs.WithDefaultLayout("main"),
		hbs.WithSource(hbs.FSSource{FS: templates}),
	)
	if err != nil {
		t.Fatalf("error creating engine: %s", err)
	}
	err = engine.RegisterAsyncHelper("lookupRole", func(_ *hbs.HelperOptions, done hbs.DoneFunc) {
		go done("editor", nil)
	})
	if err != nil {
		t.Fatalf("error registering helper: %s", err)
	}

	app := fiber.New(fiber.Config{
		Views: fiberview.New(engine, fiberview.WithCache(true)),
	})
	app.Get("/map", func(c *fiber.Ctx) error {
		return c.Render("index", fiber.Map{"name": "Ann"})
	})
	app.Get("/struct", func(c *fiber.Ctx) error {
		return c.Render("index", profile{Name: "Bob", Admin: true})
	})
	app.Get("/layout", func(c *fiber.Ctx) error {
		return c.Render("index", fiber.Map{"name": "Cy"}, "alt")
	})
	app.Get("/no-layout", func(c *fiber.Ctx) error {
		return c.Render("index", fiber.Map{"name": "Di"}, "")
	})
	app.Get("/declared", func(c *fiber.Ctx) error {
		return c.Render("bare", fiber.Map{"name": "Ed"}, "alt")
	})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return c.Render("nope", nil)
	})
	return app
}

func TestViews(t *testing.T) {
	t.Parallel()

	app := newApp(t)

	cases := map[string]struct {
		path   string
		status int
		want   string
	}{
		"map":       {path: "/map", status: fiber.StatusOK, want: "<main><p>Hi Ann, editor</p></main>"},
		"struct":    {path: "/struct", status: fiber.StatusOK, want: "<main><p>Hi Bob (admin), editor</p></main>"},
		"layout":    {path: "/layout", status: fiber.StatusOK, want: "<alt><p>Hi Cy, editor</p></alt>"},
		"no-layout": {path: "/no-layout", status: fiber.StatusOK, want: "<p>Hi Di, editor</p>"},
		"declared":  {path: "/declared", status: fiber.StatusOK, want: "<fancy>bare Ed</fancy>"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, tc.path, nil))
			if err != nil {
				t.Fatalf("error making request: %s", err)
			}
			defer resp.Body.Close() //nolint:errcheck

			if resp.StatusCode != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, resp.StatusCode)
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("error reading body: %s", err)
			}
			if diff := cmp.Diff(tc.want, string(body)); diff != "" {
				t.Errorf("unexpected body (-wanted, +got): %s", diff)
			}
		})
	}
}

func TestViewsMissingTemplate(t *testing.T) {
	t.Parallel()

	app := newApp(t)
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/missing", nil))
	if err != nil {
		t.Fatalf("error making request: %s", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", fiber.StatusInternalServerError, resp.StatusCode)
	}
}
