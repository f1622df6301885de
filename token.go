package hbs

import (
	"math/rand/v2"
	"strings"

	"github.com/aymerick/raymond"
)

const (
	// TokenPrefix is the leading part of every placeholder token. It
	// survives HTML escaping unchanged, so finding it in rendered output
	// means a placeholder wasn't resolved, whether or not the rest of the
	// token was escaped.
	TokenPrefix = "__aSyNcId_"

	// tokenEscapeBreak follows the prefix. The HTML escaper rewrites it,
	// which is how an escaped placeholder is told apart from a raw one.
	tokenEscapeBreak = "<_"
	tokenSuffix      = "__"
	tokenIDLength    = 8
	tokenAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz_"
)

// Token is a placeholder written into a template's output in place of the
// value of an async helper that hasn't finished yet.
type Token string

// NewToken returns a new random placeholder token.
func NewToken() Token {
	return Token(TokenPrefix + tokenEscapeBreak + generateID(tokenIDLength) + tokenSuffix)
}

// Escaped returns the token as it appears after the template engine's HTML
// escaping, which is how it shows up when the helper was used in a {{double}}
// mustache.
func (t Token) Escaped() string {
	return raymond.Escape(string(t))
}

func (t Token) String() string {
	return string(t)
}

// HasTokens reports whether text still contains any placeholder token, raw or
// escaped.
func HasTokens(text string) bool {
	return strings.Contains(text, TokenPrefix)
}

func generateID(length int) string {
	var b strings.Builder
	b.Grow(length)
	for range length {
		b.WriteByte(tokenAlphabet[rand.IntN(len(tokenAlphabet))])
	}
	return b.String()
}
