// Package filter decides which bookmark URLs the cache is willing to hold.
package filter

import (
	"slices"
	"strings"
)

// emptyData is the bare data: URL some browsers use as a placeholder.
const emptyData = "data:"

// Schemes is the allow-list of URL schemes, without the trailing colon.
var Schemes = []string{"https", "http", "ftp", "data", "javascript"}

// AcceptsBookmark reports whether a bookmark with the given URL can be cached.
// Only the scheme is inspected; the rest of the URL may be malformed. A URL
// that is exactly "data:" is rejected even though the data scheme is
// otherwise allowed.
func AcceptsBookmark(rawURL string) bool {
	if rawURL == emptyData {
		return false
	}
	scheme, ok := Scheme(rawURL)
	return ok && slices.Contains(Schemes, scheme)
}

// Scheme returns the lowercased scheme of rawURL: the text before the first
// colon, if it matches RFC 3986 (ALPHA *( ALPHA / DIGIT / "+" / "-" / "." )).
func Scheme(rawURL string) (string, bool) {
	scheme, _, found := strings.Cut(rawURL, ":")
	if !found || scheme == "" {
		return "", false
	}
	for i := 0; i < len(scheme); i++ {
		c := scheme[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
		case i > 0 && ('0' <= c && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return "", false
		}
	}
	return strings.ToLower(scheme), true
}
