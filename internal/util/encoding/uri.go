package encoding

import (
	"net/url"
	"strings"
)

//nolint:gochecknoglobals
var uriComponentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent escapes s the way ECMAScript's encodeURIComponent does:
// everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ) is percent-encoded as UTF-8.
func EncodeURIComponent(s string) string {
	return uriComponentReplacer.Replace(url.QueryEscape(s))
}

// DecodeURIComponent reverses EncodeURIComponent. Unlike url.QueryUnescape it
// leaves "+" alone.
func DecodeURIComponent(s string) (string, error) {
	//nolint:wrapcheck
	return url.PathUnescape(s)
}
