// Package beautify re-indents rendered HTML so it's easier to read.
package beautify

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Indent is what each level of nesting is indented with.
const Indent = "  "

// rawElements have their contents written out exactly as they were.
var rawElements = map[string]bool{
	"pre":      true,
	"script":   true,
	"style":    true,
	"textarea": true,
}

// voidElements never have an end tag, so they don't open a new level.
var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// HTML puts every tag, comment, and run of text in src on its own line,
// indented by how deeply it's nested. Whitespace-only text is dropped. The
// contents of pre, script, style, and textarea elements are left alone.
func HTML(src string) (string, error) {
	var out strings.Builder
	z := html.NewTokenizer(strings.NewReader(src))
	depth := 0
	raw := ""

	line := func(text []byte) {
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(strings.Repeat(Indent, depth))
		out.Write(text)
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return "", fmt.Errorf("error tokenizing HTML: %w", z.Err())
		}
		token := bytes.Clone(z.Raw())

		if raw != "" {
			name, _ := z.TagName()
			if tt == html.EndTagToken && string(name) == raw {
				out.Write(token)
				raw = ""
				depth--
				continue
			}
			out.Write(token)
			continue
		}

		switch tt {
		case html.TextToken:
			text := bytes.TrimSpace(token)
			if len(text) > 0 {
				line(text)
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			line(token)
			if voidElements[string(name)] {
				continue
			}
			depth++
			if rawElements[string(name)] {
				raw = string(name)
			}
		case html.EndTagToken:
			if depth > 0 {
				depth--
			}
			line(token)
		default:
			line(token)
		}
	}
	return out.String(), nil
}
