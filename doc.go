// Package hbs provides a server-side HTML view engine built on top of the
// handlebars implementation in github.com/aymerick/raymond.
//
// hbs is organized around an Engine. Each server should have one Engine per
// configuration; it owns the compiled template cache, the partials found in
// the configured partial directories, the helpers registered on it, and the
// default layout. Nothing is shared between Engines, so several of them can be
// used side by side without stepping on each other.
//
// Templates can declare the layout they should be rendered in with a comment
// directive on any line:
//
//	{{!< layouts/main}}
//
// Layouts can declare their own parent layout the same way, building a chain
// that's resolved recursively. The page is rendered first, then each layout in
// turn, from the innermost to the outermost, with the previous output available
// to the layout as {{{body}}}.
//
// Helpers that need to do asynchronous work before producing output can be
// registered with RegisterAsyncHelper. While the template is executing, an
// async helper returns an opaque placeholder token; once the template is done
// executing, the Engine waits for every async helper invoked during that
// execution to finish and substitutes their results for the placeholders. A
// rendered page never contains unresolved placeholders: either every helper
// succeeds and every placeholder is replaced, or the render fails.
//
// Pages can push content into named blocks that a layout renders:
//
//	{{#contentFor "scripts"}}<script src="/page.js"></script>{{/contentFor}}
//
// and, in the layout:
//
//	{{{block "scripts"}}}
//
// Blocks belong to a single call to Render, so concurrent renders never see
// each other's content.
package hbs
