package hbs

import (
	"strings"
	"sync"

	"github.com/aymerick/raymond"
)

// blocks holds the named content pushed by contentFor during a single
// render, waiting for a layout to emit it with block.
type blocks struct {
	mu      sync.Mutex
	content map[string][]string
}

func newBlocks() *blocks {
	return &blocks{content: map[string][]string{}}
}

// push renders the helper's block in the current context and appends it to
// the named block.
func (b *blocks) push(name string, options *raymond.Options) string {
	rendered := options.Fn()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.content[name] = append(b.content[name], rendered)
	return ""
}

// take returns the content of the named block, one push per line, and
// clears it.
func (b *blocks) take(name string) raymond.SafeString {
	b.mu.Lock()
	defer b.mu.Unlock()
	val := strings.Join(b.content[name], "\n")
	delete(b.content, name)
	return raymond.SafeString(val) // #nosec G203
}
