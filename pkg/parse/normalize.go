package parse

import (
	"net"
	"net/url"
	"strings"

	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

// NormalizeURL standardizes a page URL for use as a journal namespace and for logging.
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https),
// ensures an empty path becomes "/" and removes the fragment. The query is kept since
// two queries on one path are two different pages.
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	// Work on a copy
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

	if normalized.Path == "" {
		normalized.Path = "/"
	}
	normalized.Fragment = ""
	normalized.RawFragment = ""

	return normalized.String()
}

// ParseAndNormalize parses a page URL using the stricter url.ParseRequestURI and
// requires both scheme and host. Failures are reported as *utils.MalformedURLError.
// Returns the normalized string and the parsed URL object.
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := url.ParseRequestURI(strings.TrimSpace(urlStr))
	if err != nil {
		return "", nil, &utils.MalformedURLError{Raw: urlStr, Err: err}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", nil, &utils.MalformedURLError{Raw: urlStr}
	}
	return NormalizeURL(parsed), parsed, nil
}

// ParsePageURL is ParseAndNormalize for callers that derive names from the page:
// the returned URL is the normalized one, so equivalent spellings of a page
// (host case, default port, fragment) map to the same output names.
// The path is kept as written: "https://example.test" names "example-test",
// while the fetch string still gets the "/" request path.
func ParsePageURL(urlStr string) (string, *url.URL, error) {
	normalized, parsed, err := ParseAndNormalize(urlStr)
	if err != nil {
		return "", nil, err
	}
	page, err := url.Parse(normalized)
	if err != nil {
		return "", nil, &utils.MalformedURLError{Raw: urlStr, Err: err}
	}
	if parsed.Path == "" {
		page.Path = ""
		page.RawPath = ""
	}
	return normalized, page, nil
}
