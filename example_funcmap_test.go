package hbs_test

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"impractical.co/hbs"
)

func ExampleEngine_RegisterHelper() {
	// normally you'd use the local filesystem for this
	// for example purposes, we're just hardcoding values
	templates := staticFS{
		"views/home.hbs": `{{!< base}}Hello, {{name}}. This is my home page. I like {{humanize (applesAndOranges fruits)}}.`,
		"views/base.hbs": `
<!doctype html>
<html lang="en">
	<head>
		<title>{{title}}</title>
	</head>
	<body>
		{{{body}}}
	</body>
</html>`,
	}

	// usually the context comes from the request, but here we're building it from scratch and adding a logger
	ctx := hbs.LoggingContext(context.Background(), slog.Default())

	engine, err := hbs.New(hbs.WithViews("/views"), hbs.WithSource(templates.source()))
	if err != nil {
		panic(err)
	}

	// helpers are available to every template, layout, and partial
	err = engine.RegisterHelper("applesAndOranges", func(in []string) []string {
		for pos, fruit := range in {
			if strings.ToLower(fruit) == "apples" {
				in[pos] = "oranges"
			}
		}
		return in
	})
	if err != nil {
		panic(err)
	}
	err = engine.RegisterHelper("humanize", func(input []string) string {
		if len(input) < 1 {
			return ""
		}
		if len(input) < 2 {
			return strings.Join(input, " and ")
		}
		input[len(input)-1] = "and " + input[len(input)-1]
		return strings.Join(input, ", ")
	})
	if err != nil {
		panic(err)
	}

	out, err := engine.Render(ctx, "home", hbs.RenderOptions{
		Locals: map[string]any{
			"title":  "My Example Site",
			"name":   "Visitor",
			"fruits": []string{"apples", "bananas", "oranges"},
		},
	})
	if err != nil {
		panic(err)
	}
	fmt.Println(out)

	//Output:
	// <!doctype html>
	// <html lang="en">
	// 	<head>
	// 		<title>My Example Site</title>
	// 	</head>
	// 	<body>
	// 		Hello, Visitor. This is my home page. I like oranges, bananas, and oranges.
	// 	</body>
	// </html>
}
