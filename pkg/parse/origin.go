package parse

import (
	"net/url"
	"strings"

	"github.com/Sriram-PR/page-mirror/pkg/models"
	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

// OriginOf returns the scheme and host of rawURL.
// Fails with *utils.MalformedURLError when either is missing.
func OriginOf(rawURL string) (models.Origin, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.Origin{}, &utils.MalformedURLError{Raw: rawURL, Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return models.Origin{}, &utils.MalformedURLError{Raw: rawURL}
	}
	return models.Origin{Scheme: u.Scheme, Host: u.Host}, nil
}

// ToAbsolute resolves ref against base following RFC 3986.
// An absolute reference is returned unchanged; the fragment of a resolved reference is dropped.
func ToAbsolute(base *url.URL, ref string) (string, error) {
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", &utils.MalformedURLError{Raw: ref, Err: err}
	}
	if refURL.IsAbs() {
		return ref, nil
	}
	resolved := base.ResolveReference(refURL)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String(), nil
}

// Classify reports whether candidate belongs to the page's origin.
// A candidate without host is local. Non-HTTP(S) schemes are never local.
// An unparseable candidate returns *utils.MalformedURLError.
func Classify(candidate string, page *url.URL) (bool, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return false, nil
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return false, &utils.MalformedURLError{Raw: candidate, Err: err}
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return false, nil
	}
	if u.Host == "" {
		// "http:foo" style opaque values carry a scheme but nothing to fetch
		return u.Opaque == "", nil
	}
	return strings.EqualFold(u.Host, page.Host), nil
}

// IsLocal is Classify without the error: malformed candidates are not local.
func IsLocal(candidate string, page *url.URL) bool {
	local, err := Classify(candidate, page)
	return err == nil && local
}
