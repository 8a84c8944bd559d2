package filter

import "testing"

func TestAcceptsBookmark(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/", true},
		{"http://example.com/path?q=1", true},
		{"HTTPS://EXAMPLE.COM", true},
		{"ftp://files.example.com/pub", true},
		{"javascript:void(0)", true},
		{"data:text/plain,hello", true},
		{"data:", false},
		{"", false},
		{"file:///etc/passwd", false},
		{"chrome://settings", false},
		{"place:sort=8&maxResults=10", false},
		{"about:blank", false},
		{"example.com", false},
		{":no-scheme", false},
		{"1http://example.com", false},
		{"ht tp://example.com", false},

		// Malformed past the scheme is still accepted.
		{"https://example.com/50%off", true},
		{"https://example.com/page#100%", true},
		{"javascript:alert('a')#50%", true},
		{"http://example.com/a b", true},
		{"http://[::1", true},
		{"https://example.com/\x7f", true},
	}

	for _, tt := range tests {
		if got := AcceptsBookmark(tt.url); got != tt.want {
			t.Errorf("AcceptsBookmark(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestScheme(t *testing.T) {
	tests := []struct {
		url    string
		want   string
		wantOK bool
	}{
		{"HTTPS://x", "https", true},
		{"svn+ssh://host/repo", "svn+ssh", true},
		{"x-web.search:q", "x-web.search", true},
		{"data:", "data", true},
		{"no-colon", "", false},
		{"+bad:x", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := Scheme(tt.url)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Scheme(%q) = %q, %v, want %q, %v", tt.url, got, ok, tt.want, tt.wantOK)
		}
	}
}
