package parse

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeURL produces the canonical form used as a crawl identity.
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https),
// ensures an empty path becomes "/", and removes the fragment.
// Path and query are kept verbatim: curriculum servers route documents by query string.
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	host, port, err := net.SplitHostPort(normalized.Host)
	if err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	if normalized.Path == "" && normalized.Opaque == "" && normalized.Host != "" {
		normalized.Path = "/"
		normalized.RawPath = ""
	}

	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}
